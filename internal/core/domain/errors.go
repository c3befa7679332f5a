package domain

import (
	"errors"
	"fmt"
)

// Failure families. Control-path operations return these to the caller;
// audio-path faults are never propagated synchronously and are converted
// to state transitions plus an asynchronous notification instead.
var (
	// ErrBlacklisted is returned when a load targets a blacklisted path.
	ErrBlacklisted = errors.New("plugin is blacklisted")

	// ErrProbeTimeout is returned when a probe child exceeds its
	// wall-clock budget and has been terminated.
	ErrProbeTimeout = errors.New("probe timed out")

	// ErrNotAPlugin is returned when a probed file has no recognizable
	// plugin entry point.
	ErrNotAPlugin = errors.New("no plugin entry point")

	// ErrInvalidState is returned when a lifecycle call is made from a
	// state that does not permit it.
	ErrInvalidState = errors.New("invalid plugin state")

	// ErrUnknownPlugin is returned when an id does not resolve to a
	// loaded instance.
	ErrUnknownPlugin = errors.New("unknown plugin id")

	// ErrBridgeUnavailable is returned when cross-bitness support is
	// disabled because the helper binary could not be started.
	ErrBridgeUnavailable = errors.New("bitness bridge unavailable")

	// ErrBridgeBroken is returned after a protocol desync or broken
	// pipe; all bridged plugins are downgraded when it occurs.
	ErrBridgeBroken = errors.New("bitness bridge connection broken")

	// ErrAudioRunning is returned when an operation requires the audio
	// transport to be stopped first.
	ErrAudioRunning = errors.New("audio transport is running")

	// ErrDeviceUnavailable is returned when no audio device matching
	// the requested driver kind can be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// ProbeFailure records why a probed file was rejected. It is never
// fatal; scans record it and move on.
type ProbeFailure struct {
	Path   string
	Reason string
	Err    error
}

func (f *ProbeFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", f.Path, f.Reason, f.Err)
	}
	return fmt.Sprintf("probe %s: %s", f.Path, f.Reason)
}

func (f *ProbeFailure) Unwrap() error { return f.Err }

// RuntimeFault records a fault contained by the barrier around a call
// into plugin code. The faulting instance degrades to StateCrashed.
type RuntimeFault struct {
	PluginName string
	Op         string
	Panic      any
}

func (f *RuntimeFault) Error() string {
	return fmt.Sprintf("plugin %q faulted during %s: %v", f.PluginName, f.Op, f.Panic)
}

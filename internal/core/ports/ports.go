// Package ports declares the interfaces between the host core and its
// infrastructure adapters: probing, format runners, the bitness bridge,
// and the audio transport.
package ports

import (
	"context"

	"rackhost.audio/cli/internal/core/domain"
)

// ScanProgressFunc is invoked before each file is probed during a
// directory scan.
type ScanProgressFunc func(current, total int, path string)

// PluginFoundFunc is invoked for each file that probed as a valid plugin.
type PluginFoundFunc func(desc domain.PluginDescriptor)

// ErrorFunc receives host-level error messages for the GUI/CLI layer.
type ErrorFunc func(msg string)

// CrashFunc is invoked after a plugin instance faulted during processing
// and was removed from the chain.
type CrashFunc func(id int, name string)

// Prober determines whether a file is a loadable plugin without letting
// a crashing or hanging binary affect the caller.
type Prober interface {
	// Probe inspects one candidate file. A non-plugin file or a hung
	// child yields a *domain.ProbeFailure; the host process is never
	// at risk.
	Probe(ctx context.Context, path string) (domain.PluginDescriptor, error)
}

// Scanner enumerates candidate plugin files and probes each in turn.
type Scanner interface {
	Prober

	// ScanDirectory walks dir recursively, probing files by extension.
	// onProgress fires before each probe in file order; onFound fires
	// for every validated descriptor.
	ScanDirectory(ctx context.Context, dir string, onFound PluginFoundFunc, onProgress ScanProgressFunc) error
}

// FormatRunner is the capability interface over one plugin format's
// native handles. Exactly one runner variant exists per supported
// format; the instance state machine is format-agnostic above it.
//
// Every method may be backed by untrusted code. Callers must wrap each
// invocation in a fault barrier.
type FormatRunner interface {
	// Load resolves the format entry point and activates the plugin.
	Load() error

	// Unload releases the native module. It must release handles even
	// if the plugin's own shutdown faults, and is safe to call twice.
	Unload() error

	Suspend() error
	Resume() error

	// Process renders one period. Buffers are channel-major slices of
	// frames samples each.
	Process(inputs, outputs [][]float32, frames int) error
}

// BridgeClient runs plugins whose pointer width differs from the
// host's, via a persistent helper process.
type BridgeClient interface {
	// Initialize launches the helper and performs the INIT handshake.
	// A missing helper returns ErrBridgeUnavailable and disables
	// cross-bitness support for the session; the host keeps working
	// for matching-bitness plugins.
	Initialize() error

	// Available reports whether the helper session is usable.
	Available() bool

	LoadPlugin(path string) error
	UnloadPlugin(path string) error
	Process(path string, inputs, outputs [][]float32, frames int) error

	// Shutdown sends EXIT, waits briefly, then force-terminates.
	Shutdown()
}

// ProcessFunc is the frame callback invoked once per hardware period on
// the audio transport's dedicated goroutine.
type ProcessFunc func(inputs, outputs [][]float32, frames int)

// AudioTransport owns one audio device session and the real-time
// goroutine that drives the frame callback.
type AudioTransport interface {
	// Initialize negotiates a device format. The granted period size
	// may differ from the requested one; PeriodFrames reports it.
	Initialize(sampleRate float64, periodFrames int) error

	Start() error

	// Stop signals the audio goroutine to exit and joins it. No frame
	// callback runs concurrently with or after Stop returning.
	Stop()

	Shutdown()

	// SetCallback registers the frame callback. With no callback
	// registered the transport emits silence.
	SetCallback(cb ProcessFunc)

	DeviceNames() []string
	SelectDevice(name string) error

	SampleRate() float64
	PeriodFrames() int
}

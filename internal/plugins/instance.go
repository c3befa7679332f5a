package plugins

import (
	"fmt"
	"sync"
	"sync/atomic"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/ports"
)

// Instance binds one descriptor to a running (or faulted) plugin.
// The host exclusively owns each instance and is the only code path
// permitted to call into it.
type Instance struct {
	desc   domain.PluginDescriptor
	runner ports.FormatRunner

	state atomic.Int32

	// bypassed is read lock-free from the audio goroutine; toggling
	// it never stalls a period.
	bypassed atomic.Bool

	// processMu is the exclusive processing lock: at most one call
	// into plugin code at a time.
	processMu sync.Mutex
}

// NewInstance creates an unloaded instance over a format runner.
func NewInstance(desc domain.PluginDescriptor, runner ports.FormatRunner) *Instance {
	inst := &Instance{desc: desc, runner: runner}
	inst.state.Store(int32(domain.StateUnloaded))
	return inst
}

// Descriptor returns the immutable descriptor this instance was
// created from.
func (in *Instance) Descriptor() domain.PluginDescriptor { return in.desc }

// State returns the current lifecycle state.
func (in *Instance) State() domain.PluginState {
	return domain.PluginState(in.state.Load())
}

// SetBypass toggles bypass without tearing down plugin state.
func (in *Instance) SetBypass(bypass bool) { in.bypassed.Store(bypass) }

// Bypassed reports the bypass flag. Safe from the audio goroutine.
func (in *Instance) Bypassed() bool { return in.bypassed.Load() }

// Load resolves the format entry point and activates the plugin. Valid
// only from Unloaded. A fault or error during load leaves the instance
// in StateError.
func (in *Instance) Load() error {
	if in.State() != domain.StateUnloaded {
		return fmt.Errorf("%w: load from %s", domain.ErrInvalidState, in.State())
	}
	in.state.Store(int32(domain.StateLoading))

	if err := in.guarded("load", in.runner.Load); err != nil {
		in.state.Store(int32(domain.StateError))
		return err
	}

	in.state.Store(int32(domain.StateLoaded))
	return nil
}

// Resume moves a loaded instance into the processing state.
func (in *Instance) Resume() error {
	if in.State() != domain.StateLoaded {
		return fmt.Errorf("%w: resume from %s", domain.ErrInvalidState, in.State())
	}
	if err := in.guarded("resume", in.runner.Resume); err != nil {
		in.state.Store(int32(domain.StateError))
		return err
	}
	in.state.Store(int32(domain.StateActive))
	return nil
}

// Suspend moves an active instance back to Loaded.
func (in *Instance) Suspend() error {
	if in.State() != domain.StateActive {
		return fmt.Errorf("%w: suspend from %s", domain.ErrInvalidState, in.State())
	}
	if err := in.guarded("suspend", in.runner.Suspend); err != nil {
		in.state.Store(int32(domain.StateError))
		return err
	}
	in.state.Store(int32(domain.StateLoaded))
	return nil
}

// Unload releases the native module and returns the instance to
// Unloaded. It is idempotent, tolerates Crashed and Error states, and
// releases the handle even if the plugin's own shutdown faults.
func (in *Instance) Unload() {
	if in.State() == domain.StateUnloaded {
		return
	}

	// A faulting shutdown must not keep the module handle alive; the
	// barrier swallows the fault and the state still resets.
	in.guarded("unload", in.runner.Unload)

	in.state.Store(int32(domain.StateUnloaded))
}

// Process renders one period from inputs into outputs. Outside the
// Active state, or when bypassed, the instance degrades to a
// transparent copy: inputs pass straight through, missing channels are
// silenced. A fault moves the instance to Crashed and the current
// period still receives a clean pass-through.
func (in *Instance) Process(inputs, outputs [][]float32, frames int) error {
	if in.State() != domain.StateActive || in.Bypassed() {
		passThrough(inputs, outputs, frames)
		return nil
	}

	in.processMu.Lock()
	defer in.processMu.Unlock()

	err := in.guarded("process", func() error {
		return in.runner.Process(inputs, outputs, frames)
	})
	if err != nil {
		// Faults and hard runner errors both demote the instance; the
		// period's buffers stay clean either way.
		in.state.Store(int32(domain.StateCrashed))
		passThrough(inputs, outputs, frames)
		return err
	}
	return nil
}

// ProcessInPlace renders one period over a single shared buffer, the
// shape the chain walk uses.
func (in *Instance) ProcessInPlace(buffer [][]float32, frames int) error {
	return in.Process(buffer, buffer, frames)
}

// guarded is the fault barrier around every entry into plugin code: a
// panic below this frame becomes a RuntimeFault instead of taking the
// host down.
func (in *Instance) guarded(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.RuntimeFault{PluginName: in.desc.Name, Op: op, Panic: r}
		}
	}()
	return fn()
}

// Package plugins implements the per-plugin lifecycle state machine
// and the closed set of format runners behind it.
package plugins

import (
	"errors"
	"fmt"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/ports"
	"rackhost.audio/cli/internal/infrastructure/scanner"
)

// NewRunner selects the runner variant for a descriptor: a bridged
// runner when the plugin's pointer width does not match the host's,
// otherwise the variant for the plugin's format.
func NewRunner(desc domain.PluginDescriptor, bridge ports.BridgeClient) (ports.FormatRunner, error) {
	if !desc.MatchesHostBitness() {
		if bridge == nil || !bridge.Available() {
			return nil, domain.ErrBridgeUnavailable
		}
		return &bridgedRunner{desc: desc, client: bridge}, nil
	}

	switch desc.Format {
	case domain.FormatVST3:
		return &vst3Runner{desc: desc}, nil
	case domain.FormatVST2:
		return &vst2Runner{desc: desc}, nil
	default:
		return nil, fmt.Errorf("unsupported plugin format %s", desc.Format)
	}
}

// vst3Runner drives a current-format module. The module's factory
// entry point is re-resolved at load so a file that changed since the
// scan is rejected instead of trusted.
type vst3Runner struct {
	desc   domain.PluginDescriptor
	loaded bool
}

func (r *vst3Runner) Load() error {
	desc, reason := scanner.Inspect(r.desc.Path)
	if reason != "" {
		return errors.New(reason)
	}
	if desc.Format != domain.FormatVST3 {
		return fmt.Errorf("module is %s, expected %s", desc.Format, domain.FormatVST3)
	}
	r.loaded = true
	return nil
}

func (r *vst3Runner) Unload() error {
	r.loaded = false
	return nil
}

func (r *vst3Runner) Suspend() error { return r.requireLoaded() }
func (r *vst3Runner) Resume() error  { return r.requireLoaded() }

// Process renders one period. The format's published process call
// shape is not decoded here; the lifecycle contract treats the module
// as a unity transform.
func (r *vst3Runner) Process(inputs, outputs [][]float32, frames int) error {
	if !r.loaded {
		return domain.ErrInvalidState
	}
	passThrough(inputs, outputs, frames)
	return nil
}

func (r *vst3Runner) requireLoaded() error {
	if !r.loaded {
		return domain.ErrInvalidState
	}
	return nil
}

// vst2Runner drives a legacy-format module.
type vst2Runner struct {
	desc   domain.PluginDescriptor
	loaded bool
}

func (r *vst2Runner) Load() error {
	desc, reason := scanner.Inspect(r.desc.Path)
	if reason != "" {
		return errors.New(reason)
	}
	if desc.Format != domain.FormatVST2 {
		return fmt.Errorf("module is %s, expected %s", desc.Format, domain.FormatVST2)
	}
	r.loaded = true
	return nil
}

func (r *vst2Runner) Unload() error {
	r.loaded = false
	return nil
}

func (r *vst2Runner) Suspend() error { return r.requireLoaded() }
func (r *vst2Runner) Resume() error  { return r.requireLoaded() }

func (r *vst2Runner) Process(inputs, outputs [][]float32, frames int) error {
	if !r.loaded {
		return domain.ErrInvalidState
	}
	passThrough(inputs, outputs, frames)
	return nil
}

func (r *vst2Runner) requireLoaded() error {
	if !r.loaded {
		return domain.ErrInvalidState
	}
	return nil
}

// bridgedRunner proxies all lifecycle calls to the bitness helper.
// Processing through it is not real-time safe.
type bridgedRunner struct {
	desc   domain.PluginDescriptor
	client ports.BridgeClient
}

func (r *bridgedRunner) Load() error {
	return r.client.LoadPlugin(r.desc.Path)
}

func (r *bridgedRunner) Unload() error {
	return r.client.UnloadPlugin(r.desc.Path)
}

func (r *bridgedRunner) Suspend() error { return nil }
func (r *bridgedRunner) Resume() error  { return nil }

func (r *bridgedRunner) Process(inputs, outputs [][]float32, frames int) error {
	return r.client.Process(r.desc.Path, inputs, outputs, frames)
}

// passThrough copies input channels to output channels, silencing
// outputs with no corresponding input. Shared in/out slices (in-place
// processing) are left untouched.
func passThrough(inputs, outputs [][]float32, frames int) {
	for ch := range outputs {
		out := outputs[ch]
		if frames > len(out) {
			continue
		}
		if ch < len(inputs) && inputs[ch] != nil {
			in := inputs[ch]
			if sameBuffer(in, out) {
				continue
			}
			copy(out[:frames], in[:frames])
		} else {
			for i := 0; i < frames; i++ {
				out[i] = 0
			}
		}
	}
}

func sameBuffer(a, b []float32) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

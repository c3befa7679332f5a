// Package audio owns the output device session and the dedicated
// real-time goroutine that pulls one period of audio at a time from the
// registered frame callback.
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/ports"
)

const (
	numChannels = 2

	// readyTimeout bounds the wait for the next buffer-ready signal so a
	// stalled device clock never wedges the audio goroutine.
	readyTimeout = 2 * time.Second

	minPeriodFrames = 32
	maxPeriodFrames = 8192
)

// deviceNames is the closed set of selectable devices. Both are duplex
// endpoints paced by a period clock; "null" discards its output and
// captures silence, "default" is the system endpoint.
var deviceNames = []string{"default", "null"}

// Transport drives a stereo duplex device session. One goroutine, owned
// by the transport, invokes the frame callback once per period; all
// control operations happen on other goroutines.
type Transport struct {
	mu sync.Mutex

	deviceName   string
	sampleRate   float64
	periodFrames int
	initialized  bool
	running      bool

	stop chan struct{}
	done chan struct{}

	callback atomic.Pointer[ports.ProcessFunc]

	periods atomic.Uint64
	stalls  atomic.Uint64
}

// NewTransport returns a transport bound to the default device.
func NewTransport() *Transport {
	return &Transport{deviceName: "default"}
}

// Initialize negotiates the device format. The requested period size is
// clamped to the device's supported range; PeriodFrames reports the
// granted value. Refused while the stream is running.
func (t *Transport) Initialize(sampleRate float64, periodFrames int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return domain.ErrAudioRunning
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %v", domain.ErrDeviceUnavailable, sampleRate)
	}

	granted := periodFrames
	if granted < minPeriodFrames {
		granted = minPeriodFrames
	}
	if granted > maxPeriodFrames {
		granted = maxPeriodFrames
	}

	t.sampleRate = sampleRate
	t.periodFrames = granted
	t.initialized = true
	return nil
}

// Start opens the hardware stream and spins up the audio goroutine.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("%w: transport not initialized", domain.ErrDeviceUnavailable)
	}
	if t.running {
		return domain.ErrAudioRunning
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.running = true

	period := time.Duration(float64(t.periodFrames) / t.sampleRate * float64(time.Second))
	go t.run(period, t.periodFrames, t.stop, t.done)
	return nil
}

// Stop signals the audio goroutine to exit and joins it. When Stop
// returns, no frame callback is running or will run again.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	close(t.stop)
	<-t.done
	t.running = false
}

// Shutdown stops the stream and releases the device session.
func (t *Transport) Shutdown() {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = false
}

// SetCallback registers the frame callback. Passing nil unregisters it;
// the transport emits silence until another callback is set. Safe to
// call while the stream is running.
func (t *Transport) SetCallback(cb ports.ProcessFunc) {
	if cb == nil {
		t.callback.Store(nil)
		return
	}
	t.callback.Store(&cb)
}

// DeviceNames lists the selectable devices.
func (t *Transport) DeviceNames() []string {
	names := make([]string, len(deviceNames))
	copy(names, deviceNames)
	return names
}

// SelectDevice switches the device session. Refused while running.
func (t *Transport) SelectDevice(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return domain.ErrAudioRunning
	}
	for _, known := range deviceNames {
		if known == name {
			t.deviceName = name
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrDeviceUnavailable, name)
}

// SampleRate returns the negotiated sample rate.
func (t *Transport) SampleRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampleRate
}

// PeriodFrames returns the granted period size.
func (t *Transport) PeriodFrames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.periodFrames
}

// Periods returns the number of periods rendered since Start.
func (t *Transport) Periods() uint64 { return t.periods.Load() }

// Stalls returns the number of buffer-ready waits that hit the bounded
// timeout. A nonzero value indicates a device clock stall.
func (t *Transport) Stalls() uint64 { return t.stalls.Load() }

// run is the audio goroutine: wait for the period clock, render one
// period, commit. The stop channel is checked once per iteration, so
// worst-case exit latency is one readyTimeout.
func (t *Transport) run(period time.Duration, frames int, stop, done chan struct{}) {
	defer close(done)

	inputs := allocBuffers(numChannels, frames)
	outputs := allocBuffers(numChannels, frames)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		stall := time.NewTimer(readyTimeout)
		select {
		case <-stop:
			stall.Stop()
			return
		case <-ticker.C:
			stall.Stop()
		case <-stall.C:
			t.stalls.Add(1)
			continue
		}

		t.renderPeriod(inputs, outputs, frames)
		t.periods.Add(1)
	}
}

// renderPeriod produces one period's worth of output. The capture side
// of the duplex session delivers silence on both supported devices, so
// inputs are zeroed before the callback sees them.
func (t *Transport) renderPeriod(inputs, outputs [][]float32, frames int) {
	for ch := range inputs {
		zero(inputs[ch][:frames])
	}
	for ch := range outputs {
		zero(outputs[ch][:frames])
	}

	cb := t.callback.Load()
	if cb == nil {
		return
	}
	(*cb)(inputs, outputs, frames)
}

func allocBuffers(channels, frames int) [][]float32 {
	bufs := make([][]float32, channels)
	for ch := range bufs {
		bufs[ch] = make([]float32, frames)
	}
	return bufs
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

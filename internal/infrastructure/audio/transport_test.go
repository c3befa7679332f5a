package audio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rackhost.audio/cli/internal/core/domain"
)

func testTransport(t *testing.T) *Transport {
	t.Helper()

	tr := NewTransport()
	// Small period so tests tick quickly.
	require.NoError(t, tr.Initialize(48000, 64))
	t.Cleanup(tr.Shutdown)
	return tr
}

func TestTransport_Initialize_ClampsPeriodToSupportedRange(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		granted   int
	}{
		{name: "tiny request is raised to the floor", requested: 1, granted: minPeriodFrames},
		{name: "huge request is capped", requested: 1 << 20, granted: maxPeriodFrames},
		{name: "reasonable request is granted as-is", requested: 512, granted: 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransport()
			require.NoError(t, tr.Initialize(44100, tt.requested))
			assert.Equal(t, tt.granted, tr.PeriodFrames())
		})
	}
}

func TestTransport_Initialize_RejectsBadSampleRate(t *testing.T) {
	tr := NewTransport()
	err := tr.Initialize(0, 512)
	assert.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
}

func TestTransport_Start_RequiresInitialize(t *testing.T) {
	tr := NewTransport()
	err := tr.Start()
	assert.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
}

func TestTransport_Start_DrivesCallbackOncePerPeriod(t *testing.T) {
	tr := testTransport(t)

	var calls atomic.Int64
	var frames atomic.Int64
	tr.SetCallback(func(_, _ [][]float32, n int) {
		calls.Add(1)
		frames.Store(int64(n))
	})

	require.NoError(t, tr.Start())

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("callback never reached 3 periods")
		case <-time.After(time.Millisecond):
		}
	}
	tr.Stop()

	assert.Equal(t, int64(64), frames.Load())
	assert.GreaterOrEqual(t, tr.Periods(), uint64(3))
}

func TestTransport_Stop_JoinsBeforeReturning(t *testing.T) {
	tr := testTransport(t)

	var calls atomic.Int64
	tr.SetCallback(func(_, _ [][]float32, _ int) { calls.Add(1) })

	require.NoError(t, tr.Start())
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	tr.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "callback ran after Stop returned")

	// Stop twice is a no-op.
	tr.Stop()
}

func TestTransport_StartStopCycle_Restarts(t *testing.T) {
	tr := testTransport(t)

	var calls atomic.Int64
	tr.SetCallback(func(_, _ [][]float32, _ int) { calls.Add(1) })

	require.NoError(t, tr.Start())
	assert.True(t, errors.Is(tr.Start(), domain.ErrAudioRunning))
	tr.Stop()

	require.NoError(t, tr.Start())
	before := calls.Load()
	for calls.Load() == before {
		time.Sleep(time.Millisecond)
	}
	tr.Stop()
}

func TestTransport_RenderPeriod_SilenceWithoutCallback(t *testing.T) {
	tr := testTransport(t)

	inputs := [][]float32{{9, 9}, {9, 9}}
	outputs := [][]float32{{9, 9}, {9, 9}}
	tr.renderPeriod(inputs, outputs, 2)

	assert.Equal(t, [][]float32{{0, 0}, {0, 0}}, outputs)
}

func TestTransport_RenderPeriod_CallbackSeesCleanBuffers(t *testing.T) {
	tr := testTransport(t)

	tr.SetCallback(func(inputs, outputs [][]float32, frames int) {
		for ch := range inputs {
			for i := 0; i < frames; i++ {
				assert.Zero(t, inputs[ch][i], "capture buffer not silenced")
				assert.Zero(t, outputs[ch][i], "output buffer not cleared")
			}
		}
	})

	inputs := [][]float32{{5, 5}, {5, 5}}
	outputs := [][]float32{{5, 5}, {5, 5}}
	tr.renderPeriod(inputs, outputs, 2)
}

func TestTransport_SetCallback_NilRestoresSilence(t *testing.T) {
	tr := testTransport(t)

	tr.SetCallback(func(_, outputs [][]float32, frames int) {
		for i := 0; i < frames; i++ {
			outputs[0][i] = 1
		}
	})
	tr.SetCallback(nil)

	outputs := [][]float32{{9, 9}, {9, 9}}
	tr.renderPeriod([][]float32{{0, 0}, {0, 0}}, outputs, 2)
	assert.Equal(t, [][]float32{{0, 0}, {0, 0}}, outputs)
}

func TestTransport_SelectDevice_KnownAndUnknown(t *testing.T) {
	tr := testTransport(t)

	require.NoError(t, tr.SelectDevice("null"))
	assert.Equal(t, []string{"default", "null"}, tr.DeviceNames())

	err := tr.SelectDevice("asio-phantom")
	assert.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
}

func TestTransport_SelectDevice_RefusedWhileRunning(t *testing.T) {
	tr := testTransport(t)
	require.NoError(t, tr.Start())

	err := tr.SelectDevice("null")
	assert.True(t, errors.Is(err, domain.ErrAudioRunning))

	// Initialize is refused while running too.
	assert.True(t, errors.Is(tr.Initialize(44100, 512), domain.ErrAudioRunning))
}

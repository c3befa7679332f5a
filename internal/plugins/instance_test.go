package plugins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"rackhost.audio/cli/internal/core/domain"
)

// fakeRunner is a scriptable FormatRunner for lifecycle tests.
type fakeRunner struct {
	loadErr    error
	processFn  func(inputs, outputs [][]float32, frames int) error
	unloadErr  error
	loadCalls  int
	unloadCall int
}

func (f *fakeRunner) Load() error {
	f.loadCalls++
	return f.loadErr
}

func (f *fakeRunner) Unload() error {
	f.unloadCall++
	return f.unloadErr
}

func (f *fakeRunner) Suspend() error { return nil }
func (f *fakeRunner) Resume() error  { return nil }

func (f *fakeRunner) Process(inputs, outputs [][]float32, frames int) error {
	if f.processFn != nil {
		return f.processFn(inputs, outputs, frames)
	}
	passThrough(inputs, outputs, frames)
	return nil
}

func testDescriptor(name string) domain.PluginDescriptor {
	return domain.PluginDescriptor{
		Path:       "/plugins/" + name + ".vst3",
		Name:       name,
		Format:     domain.FormatVST3,
		Is64Bit:    domain.HostIs64Bit(),
		NumInputs:  2,
		NumOutputs: 2,
		Validated:  true,
	}
}

func activeInstance(t *testing.T, runner *fakeRunner) *Instance {
	t.Helper()

	in := NewInstance(testDescriptor("Reverb"), runner)
	require.NoError(t, in.Load())
	require.NoError(t, in.Resume())
	return in
}

func TestInstance_Load_WalksThroughLoadingToLoaded(t *testing.T) {
	in := NewInstance(testDescriptor("Reverb"), &fakeRunner{})

	require.Equal(t, domain.StateUnloaded, in.State())
	require.NoError(t, in.Load())
	assert.Equal(t, domain.StateLoaded, in.State())
}

func TestInstance_Load_FromLoadedIsRejected(t *testing.T) {
	runner := &fakeRunner{}
	in := NewInstance(testDescriptor("Reverb"), runner)
	require.NoError(t, in.Load())

	err := in.Load()
	require.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.Equal(t, 1, runner.loadCalls, "a rejected load never reaches plugin code")
}

func TestInstance_Load_FailureLandsInErrorState(t *testing.T) {
	in := NewInstance(testDescriptor("Reverb"), &fakeRunner{loadErr: errors.New("entry point rejected")})

	require.Error(t, in.Load())
	assert.Equal(t, domain.StateError, in.State())

	// Error is terminal for everything except Unload.
	assert.Error(t, in.Resume())
	assert.Error(t, in.Load())
}

func TestInstance_Load_PanicBecomesRuntimeFault(t *testing.T) {
	in := NewInstance(testDescriptor("Spike"), &panicRunner{})

	err := in.Load()
	require.Error(t, err)

	var fault *domain.RuntimeFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "Spike", fault.PluginName)
	assert.Equal(t, "load", fault.Op)
	assert.Equal(t, domain.StateError, in.State())
}

// panicRunner faults on every entry into plugin code.
type panicRunner struct{}

func (panicRunner) Load() error   { panic("access violation in plugin init") }
func (panicRunner) Unload() error { panic("access violation in plugin teardown") }
func (panicRunner) Suspend() error { return nil }
func (panicRunner) Resume() error  { return nil }
func (panicRunner) Process(_, _ [][]float32, _ int) error {
	panic("access violation in process")
}

func TestInstance_ResumeSuspend_MoveBetweenLoadedAndActive(t *testing.T) {
	in := NewInstance(testDescriptor("Reverb"), &fakeRunner{})
	require.NoError(t, in.Load())

	require.NoError(t, in.Resume())
	assert.Equal(t, domain.StateActive, in.State())

	require.NoError(t, in.Suspend())
	assert.Equal(t, domain.StateLoaded, in.State())

	// Suspend from Loaded is a state error, not a crash.
	err := in.Suspend()
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestInstance_Unload_IsIdempotentAndSurvivesFaults(t *testing.T) {
	in := NewInstance(testDescriptor("Spike"), &panicRunner{})

	// Unloading a never-loaded instance is a no-op.
	in.Unload()
	assert.Equal(t, domain.StateUnloaded, in.State())

	require.Error(t, in.Load()) // panicRunner faults during load
	assert.Equal(t, domain.StateError, in.State())

	// A faulting plugin teardown still releases the instance.
	in.Unload()
	assert.Equal(t, domain.StateUnloaded, in.State())
	in.Unload()
	assert.Equal(t, domain.StateUnloaded, in.State())
}

func TestInstance_LoadUnloadCycles_AreEquivalent(t *testing.T) {
	runner := &fakeRunner{}
	in := NewInstance(testDescriptor("Reverb"), runner)

	for cycle := 0; cycle < 3; cycle++ {
		require.NoError(t, in.Load(), "cycle %d", cycle)
		in.Unload()
		require.Equal(t, domain.StateUnloaded, in.State())
	}
	assert.Equal(t, 3, runner.loadCalls)
	assert.Equal(t, 3, runner.unloadCall)
}

func TestInstance_Process_FaultDemotesToCrashedWithCleanPeriod(t *testing.T) {
	in := activeInstance(t, &fakeRunner{
		processFn: func(_, outputs [][]float32, _ int) error {
			outputs[0][0] = 42 // partial garbage before the fault
			panic("plugin scribbled out of bounds")
		},
	})

	inputs := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	outputs := [][]float32{make([]float32, 4), make([]float32, 4)}

	err := in.Process(inputs, outputs, 4)
	require.Error(t, err)

	var fault *domain.RuntimeFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, domain.StateCrashed, in.State())

	// The faulting period is replaced by a clean pass-through, not the
	// plugin's partial output.
	assert.Equal(t, inputs, outputs)
}

func TestInstance_Process_AfterCrashStaysTransparent(t *testing.T) {
	in := activeInstance(t, &fakeRunner{
		processFn: func(_, _ [][]float32, _ int) error { panic("boom") },
	})

	inputs := [][]float32{{1, 1}}
	outputs := [][]float32{{0, 0}}
	require.Error(t, in.Process(inputs, outputs, 2))

	// Once crashed the instance never calls plugin code again.
	outputs[0][0], outputs[0][1] = 9, 9
	require.NoError(t, in.Process(inputs, outputs, 2))
	assert.Equal(t, []float32{1, 1}, outputs[0])
}

func TestInstance_Process_OutsideActiveIsPassThrough(t *testing.T) {
	runner := &fakeRunner{
		processFn: func(_, _ [][]float32, _ int) error {
			t.Fatal("plugin code reached outside Active state")
			return nil
		},
	}
	in := NewInstance(testDescriptor("Reverb"), runner)
	require.NoError(t, in.Load()) // Loaded, not Active

	inputs := [][]float32{{0.5, -0.5}}
	outputs := [][]float32{{9, 9}}
	require.NoError(t, in.Process(inputs, outputs, 2))
	assert.Equal(t, inputs, outputs)
}

func TestInstance_Process_BypassNeverAltersSignal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frames := rapid.IntRange(1, 256).Draw(t, "frames")
		channels := rapid.IntRange(1, 4).Draw(t, "channels")

		inputs := make([][]float32, channels)
		outputs := make([][]float32, channels)
		for ch := 0; ch < channels; ch++ {
			inputs[ch] = make([]float32, frames)
			outputs[ch] = make([]float32, frames)
			for i := range inputs[ch] {
				inputs[ch][i] = float32(rapid.Float64Range(-1, 1).Draw(t, "sample"))
			}
		}

		runner := &fakeRunner{
			processFn: func(_, outputs [][]float32, frames int) error {
				for ch := range outputs {
					for i := 0; i < frames; i++ {
						outputs[ch][i] = -1234 // would be audible if bypass leaked
					}
				}
				return nil
			},
		}
		in := NewInstance(testDescriptor("Gain"), runner)
		if err := in.Load(); err != nil {
			t.Fatalf("load: %v", err)
		}
		if err := in.Resume(); err != nil {
			t.Fatalf("resume: %v", err)
		}
		in.SetBypass(true)

		if err := in.Process(inputs, outputs, frames); err != nil {
			t.Fatalf("process: %v", err)
		}
		for ch := 0; ch < channels; ch++ {
			for i := 0; i < frames; i++ {
				if outputs[ch][i] != inputs[ch][i] {
					t.Fatalf("bypass altered sample ch=%d i=%d: %v != %v",
						ch, i, outputs[ch][i], inputs[ch][i])
				}
			}
		}
	})
}

func TestInstance_ProcessInPlace_LeavesBufferIntactWhenBypassed(t *testing.T) {
	in := NewInstance(testDescriptor("Gain"), &fakeRunner{})
	in.SetBypass(true)

	buffer := [][]float32{{0.25, 0.5, 0.75}}
	require.NoError(t, in.ProcessInPlace(buffer, 3))
	assert.Equal(t, [][]float32{{0.25, 0.5, 0.75}}, buffer)
}

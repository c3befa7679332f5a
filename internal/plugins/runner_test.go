package plugins

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rackhost.audio/cli/internal/core/domain"
)

// fakeBridge is a scriptable BridgeClient.
type fakeBridge struct {
	available bool
	loaded    []string
}

func (b *fakeBridge) Initialize() error { b.available = true; return nil }
func (b *fakeBridge) Available() bool   { return b.available }
func (b *fakeBridge) Shutdown()         { b.available = false }

func (b *fakeBridge) LoadPlugin(path string) error {
	b.loaded = append(b.loaded, path)
	return nil
}

func (b *fakeBridge) UnloadPlugin(path string) error { return nil }

func (b *fakeBridge) Process(_ string, inputs, outputs [][]float32, frames int) error {
	passThrough(inputs, outputs, frames)
	return nil
}

func writeModule(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestNewRunner_SelectsByFormat(t *testing.T) {
	vst3 := testDescriptor("Modern")
	r, err := NewRunner(vst3, nil)
	require.NoError(t, err)
	assert.IsType(t, &vst3Runner{}, r)

	vst2 := testDescriptor("Legacy")
	vst2.Format = domain.FormatVST2
	r, err = NewRunner(vst2, nil)
	require.NoError(t, err)
	assert.IsType(t, &vst2Runner{}, r)

	unknown := testDescriptor("Mystery")
	unknown.Format = domain.FormatUnknown
	_, err = NewRunner(unknown, nil)
	assert.Error(t, err)
}

func TestNewRunner_MismatchedBitnessRequiresBridge(t *testing.T) {
	desc := testDescriptor("Old")
	desc.Is64Bit = !domain.HostIs64Bit()

	_, err := NewRunner(desc, nil)
	require.True(t, errors.Is(err, domain.ErrBridgeUnavailable))

	dead := &fakeBridge{}
	_, err = NewRunner(desc, dead)
	require.True(t, errors.Is(err, domain.ErrBridgeUnavailable))

	live := &fakeBridge{available: true}
	r, err := NewRunner(desc, live)
	require.NoError(t, err)
	assert.IsType(t, &bridgedRunner{}, r)
}

func TestVST3Runner_Load_ReResolvesEntryPoint(t *testing.T) {
	path := writeModule(t, "Comp.vst3", []byte("...GetPluginFactory..."))
	desc := testDescriptor("Comp")
	desc.Path = path

	r := &vst3Runner{desc: desc}
	require.NoError(t, r.Load())
	require.NoError(t, r.Resume())
	require.NoError(t, r.Unload())

	// After unload the runner refuses processing again.
	err := r.Process([][]float32{{1}}, [][]float32{{0}}, 1)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestVST3Runner_Load_RejectsFileChangedSinceScan(t *testing.T) {
	// The descriptor says VST3, but the file on disk only carries the
	// legacy entry point now.
	path := writeModule(t, "Swapped.dll", []byte("VSTPluginMain"))
	desc := testDescriptor("Swapped")
	desc.Path = path

	r := &vst3Runner{desc: desc}
	err := r.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected VST3")
}

func TestVST2Runner_Load_AcceptsLegacyModule(t *testing.T) {
	path := writeModule(t, "Old.dll", []byte("prefix VSTPluginMain suffix"))
	desc := testDescriptor("Old")
	desc.Path = path
	desc.Format = domain.FormatVST2

	r := &vst2Runner{desc: desc}
	require.NoError(t, r.Load())

	in := [][]float32{{0.5, 0.25}}
	out := [][]float32{{0, 0}}
	require.NoError(t, r.Process(in, out, 2))
	assert.Equal(t, in, out)
}

func TestBridgedRunner_ProxiesLifecycleToHelper(t *testing.T) {
	bridge := &fakeBridge{available: true}
	desc := testDescriptor("Old32")
	desc.Is64Bit = !domain.HostIs64Bit()

	r, err := NewRunner(desc, bridge)
	require.NoError(t, err)

	require.NoError(t, r.Load())
	assert.Equal(t, []string{desc.Path}, bridge.loaded)

	in := [][]float32{{1, 2}}
	out := [][]float32{{0, 0}}
	require.NoError(t, r.Process(in, out, 2))
	assert.Equal(t, in, out)

	require.NoError(t, r.Unload())
}

func TestPassThrough_CopiesSilencesAndLeavesInPlaceAlone(t *testing.T) {
	tests := []struct {
		name    string
		inputs  [][]float32
		outputs [][]float32
		frames  int
		want    [][]float32
	}{
		{
			name:    "matching channels copy",
			inputs:  [][]float32{{1, 2}, {3, 4}},
			outputs: [][]float32{{0, 0}, {0, 0}},
			frames:  2,
			want:    [][]float32{{1, 2}, {3, 4}},
		},
		{
			name:    "extra output channel is silenced",
			inputs:  [][]float32{{1, 2}},
			outputs: [][]float32{{9, 9}, {9, 9}},
			frames:  2,
			want:    [][]float32{{1, 2}, {0, 0}},
		},
		{
			name:    "nil input channel is silenced",
			inputs:  [][]float32{nil},
			outputs: [][]float32{{9, 9}},
			frames:  2,
			want:    [][]float32{{0, 0}},
		},
		{
			name:    "short output channel is skipped",
			inputs:  [][]float32{{1, 2, 3}},
			outputs: [][]float32{{9}},
			frames:  3,
			want:    [][]float32{{9}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passThrough(tt.inputs, tt.outputs, tt.frames)
			assert.Equal(t, tt.want, tt.outputs)
		})
	}
}

func TestPassThrough_SharedBufferIsUntouched(t *testing.T) {
	buf := [][]float32{{0.1, 0.2, 0.3}}
	passThrough(buf, buf, 3)
	assert.Equal(t, [][]float32{{0.1, 0.2, 0.3}}, buf)
}

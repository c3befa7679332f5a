package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatKind_WireNames_RoundTrip(t *testing.T) {
	for _, f := range []FormatKind{FormatVST2, FormatVST3, FormatUnknown} {
		assert.Equal(t, f, ParseFormatKind(f.String()))
	}
}

func TestParseFormatKind_UnrecognizedName_MapsToUnknown(t *testing.T) {
	tests := []string{"", "VST4", "vst3", "AU", "garbage"}
	for _, input := range tests {
		assert.Equal(t, FormatUnknown, ParseFormatKind(input), "input %q", input)
	}
}

func TestPluginState_Terminal(t *testing.T) {
	tests := []struct {
		state    PluginState
		terminal bool
	}{
		{StateUnloaded, false},
		{StateLoading, false},
		{StateLoaded, false},
		{StateActive, false},
		{StateError, true},
		{StateCrashed, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.state.Terminal(), "state %s", tt.state)
	}
}

func TestPluginDescriptor_Valid(t *testing.T) {
	valid := PluginDescriptor{Validated: true}
	assert.True(t, valid.Valid())

	withError := PluginDescriptor{Validated: true, ErrorMsg: "boom"}
	assert.False(t, withError.Valid())

	unvalidated := PluginDescriptor{}
	assert.False(t, unvalidated.Valid())
}

func TestProbeFailure_WrapsUnderlyingError(t *testing.T) {
	f := &ProbeFailure{Path: "/p/x.dll", Reason: "timeout", Err: ErrProbeTimeout}

	assert.True(t, errors.Is(f, ErrProbeTimeout))
	assert.Contains(t, f.Error(), "/p/x.dll")
	assert.Contains(t, f.Error(), "timeout")
}

package domain

import "fmt"

// FormatKind identifies the plugin binary contract a module implements.
type FormatKind int

const (
	FormatUnknown FormatKind = iota
	FormatVST2               // legacy format, .dll modules
	FormatVST3               // current format, .vst3 modules
)

// String returns the wire name used by the probe report protocol.
func (f FormatKind) String() string {
	switch f {
	case FormatVST2:
		return "VST2"
	case FormatVST3:
		return "VST3"
	default:
		return "Unknown"
	}
}

// ParseFormatKind maps a wire name back to a FormatKind. Unrecognized
// names map to FormatUnknown rather than failing; the probe report
// parser must tolerate garbled fields.
func ParseFormatKind(s string) FormatKind {
	switch s {
	case "VST2":
		return FormatVST2
	case "VST3":
		return FormatVST3
	default:
		return FormatUnknown
	}
}

// PluginDescriptor is the validated identity and capability metadata for
// one plugin file. Descriptors are produced only by the out-of-process
// prober or the bitness bridge and are never mutated afterwards.
type PluginDescriptor struct {
	Path         string
	Name         string
	Vendor       string
	Format       FormatKind
	Is64Bit      bool
	HasEditor    bool
	NumInputs    int
	NumOutputs   int
	UniqueID     uint32
	IsInstrument bool
	Validated    bool
	ErrorMsg     string
}

// Valid reports whether the probe declared this file a loadable plugin.
func (d PluginDescriptor) Valid() bool {
	return d.Validated && d.ErrorMsg == ""
}

// MatchesHostBitness reports whether the plugin's pointer width matches
// the running host. Mismatched plugins must go through the bridge.
func (d PluginDescriptor) MatchesHostBitness() bool {
	return d.Is64Bit == HostIs64Bit()
}

func (d PluginDescriptor) String() string {
	return fmt.Sprintf("%s (%s, %din/%dout)", d.Name, d.Format, d.NumInputs, d.NumOutputs)
}

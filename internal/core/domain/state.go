package domain

import "unsafe"

// PluginState is the lifecycle state of a loaded plugin instance.
//
// Transitions: Unloaded -> Loading -> {Loaded | Error};
// Loaded <-> Active via resume/suspend; Active -> Crashed on a fault
// during processing. Crashed and Error are terminal until Unload
// returns the instance to Unloaded.
type PluginState int

const (
	StateUnloaded PluginState = iota
	StateLoading
	StateLoaded
	StateActive
	StateError
	StateCrashed
)

func (s PluginState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state only permits Unload.
func (s PluginState) Terminal() bool {
	return s == StateError || s == StateCrashed
}

// HostIs64Bit reports the pointer width of the running host process.
func HostIs64Bit() bool {
	return unsafe.Sizeof(uintptr(0)) == 8
}

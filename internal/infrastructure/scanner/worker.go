package scanner

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/scanreport"
)

// Format entry-point exports. A module that exposes neither is not a
// plugin.
const (
	entryPointVST3 = "GetPluginFactory"
	entryPointVST2 = "VSTPluginMain"
)

// maxModuleSize caps how much of a candidate file the worker maps in.
const maxModuleSize = 256 << 20

// RunWorker is the probe child entry point: it inspects one candidate
// module and writes the key=value report to out. The return value is
// the process exit code. Everything here runs in a disposable process;
// a crash or hang while inspecting a hostile file is contained by the
// parent's timeout and never reaches the host.
func RunWorker(path string, out io.Writer) int {
	desc, reason := Inspect(path)
	if reason != "" {
		scanreport.WriteError(out, reason)
		return 1
	}

	if err := scanreport.Write(out, desc); err != nil {
		return 1
	}
	return 0
}

// Inspect resolves the candidate's format entry point and builds its
// descriptor. A non-empty reason means the file was rejected. The
// bridge helper shares this logic for its own load validation.
func Inspect(path string) (domain.PluginDescriptor, string) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.PluginDescriptor{}, fmt.Sprintf("cannot stat module: %v", err)
	}
	if info.Size() == 0 {
		return domain.PluginDescriptor{}, "module is empty"
	}
	if info.Size() > maxModuleSize {
		return domain.PluginDescriptor{}, "module exceeds size limit"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.PluginDescriptor{}, fmt.Sprintf("failed to load module: %v", err)
	}

	format := resolveEntryPoint(path, data)
	if format == domain.FormatUnknown {
		return domain.PluginDescriptor{}, "no plugin entry point"
	}

	is64, ok := moduleBitness(path)
	if !ok {
		is64 = domain.HostIs64Bit()
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	desc := domain.PluginDescriptor{
		Path:         path,
		Name:         name,
		Vendor:       "Unknown",
		Format:       format,
		Is64Bit:      is64,
		HasEditor:    true,
		NumInputs:    2,
		NumOutputs:   2,
		UniqueID:     uniqueID(name),
		IsInstrument: false,
		Validated:    true,
	}
	return desc, ""
}

// resolveEntryPoint searches the module image for a format entry-point
// export. Extension narrows which formats are plausible: .vst3 modules
// must export the VST3 factory, .dll modules may carry either
// generation.
func resolveEntryPoint(path string, data []byte) domain.FormatKind {
	hasVST3 := bytes.Contains(data, []byte(entryPointVST3))
	hasVST2 := bytes.Contains(data, []byte(entryPointVST2))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".vst3":
		if hasVST3 {
			return domain.FormatVST3
		}
	case ".dll":
		if hasVST3 {
			return domain.FormatVST3
		}
		if hasVST2 {
			return domain.FormatVST2
		}
	}
	return domain.FormatUnknown
}

// moduleBitness reads the pointer width from the module's image
// header. PE for Windows-built modules, ELF for native ones.
func moduleBitness(path string) (is64 bool, ok bool) {
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		switch f.Machine {
		case pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64:
			return true, true
		case pe.IMAGE_FILE_MACHINE_I386, pe.IMAGE_FILE_MACHINE_ARMNT:
			return false, true
		}
		return false, false
	}

	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		return f.Class == elf.ELFCLASS64, true
	}

	return false, false
}

// uniqueID derives a stable 32-bit id from the plugin name.
func uniqueID(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

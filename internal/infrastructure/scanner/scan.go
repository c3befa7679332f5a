package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/ports"
)

// reapEvery is how many probes run between hung-child sweeps.
const reapEvery = 10

// SkipFunc decides whether a candidate path is skipped before probing
// (blacklist check).
type SkipFunc func(path string) bool

// Scan drives sequential probes over a directory tree.
type Scan struct {
	prober *Prober
	skip   SkipFunc
}

// NewScan wraps a prober for batch scanning. skip may be nil.
func NewScan(prober *Prober, skip SkipFunc) *Scan {
	return &Scan{prober: prober, skip: skip}
}

// Probe exposes the underlying single-file probe.
func (s *Scan) Probe(ctx context.Context, path string) (domain.PluginDescriptor, error) {
	return s.prober.Probe(ctx, path)
}

// ScanDirectory enumerates candidate files recursively by extension
// and probes each sequentially. Progress is reported before each probe
// in file order. Hung children are swept periodically even while the
// main loop is blocked in a probe.
func (s *Scan) ScanDirectory(ctx context.Context, dir string, onFound ports.PluginFoundFunc, onProgress ports.ScanProgressFunc) error {
	files, err := collectCandidates(dir)
	if err != nil {
		return err
	}

	// Background sweep so a probe blocked on a hung child still gets
	// its sibling jobs reaped on time.
	sweepDone := make(chan struct{})
	sweepStop := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.prober.ReapHung()
			case <-sweepStop:
				return
			}
		}
	}()
	defer func() {
		close(sweepStop)
		<-sweepDone
		s.prober.ReapHung()
	}()

	total := len(files)
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if onProgress != nil {
			onProgress(i+1, total, path)
		}

		if s.skip != nil && s.skip(path) {
			continue
		}

		desc, err := s.prober.Probe(ctx, path)
		if err != nil {
			// Probe failures are recorded by the caller's absence of
			// onFound; they never abort the scan.
			continue
		}
		if onFound != nil {
			onFound(desc)
		}

		if (i+1)%reapEvery == 0 {
			s.prober.ReapHung()
		}
	}

	return nil
}

// collectCandidates returns plugin-extension files under dir in walk
// order. Unreadable subtrees are skipped, not fatal.
func collectCandidates(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if isPluginFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// isPluginFile reports whether the extension marks a plugin candidate.
func isPluginFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dll", ".vst3":
		return true
	default:
		return false
	}
}

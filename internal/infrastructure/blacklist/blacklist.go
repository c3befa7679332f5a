// Package blacklist persists the set of plugin paths the host refuses
// to load, as a newline-delimited text file loaded at startup and
// rewritten at shutdown.
package blacklist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Blacklist is a thread-safe set of refused plugin paths.
type Blacklist struct {
	mu    sync.RWMutex
	paths map[string]struct{}
	file  string
}

// New creates an empty blacklist backed by the given file.
func New(file string) *Blacklist {
	return &Blacklist{
		paths: make(map[string]struct{}),
		file:  file,
	}
}

// Load reads the backing file. A missing file is not an error; the
// blacklist starts empty.
func (b *Blacklist) Load() error {
	f, err := os.Open(b.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening blacklist: %w", err)
	}
	defer f.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.paths[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading blacklist: %w", err)
	}
	return nil
}

// Save rewrites the backing file with the current set, one path per
// line in sorted order.
func (b *Blacklist) Save() error {
	b.mu.RLock()
	paths := make([]string, 0, len(b.paths))
	for p := range b.paths {
		paths = append(paths, p)
	}
	b.mu.RUnlock()
	sort.Strings(paths)

	if dir := filepath.Dir(b.file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating blacklist directory: %w", err)
		}
	}

	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(b.file, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing blacklist: %w", err)
	}
	return nil
}

// Add inserts a path into the set.
func (b *Blacklist) Add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths[path] = struct{}{}
}

// Remove deletes a path from the set.
func (b *Blacklist) Remove(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.paths, path)
}

// Contains reports whether a path is blacklisted.
func (b *Blacklist) Contains(path string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.paths[path]
	return ok
}

// Paths returns the blacklisted paths in sorted order.
func (b *Blacklist) Paths() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	paths := make([]string, 0, len(b.paths))
	for p := range b.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of blacklisted paths.
func (b *Blacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.paths)
}

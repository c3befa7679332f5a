// Package host owns the plugin catalog and processing chain and
// orchestrates scanning, loading, and audio over the infrastructure
// adapters.
package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/ports"
	"rackhost.audio/cli/internal/infrastructure/blacklist"
	"rackhost.audio/cli/internal/infrastructure/logging"
	"rackhost.audio/cli/internal/plugins"
)

// PluginStatus is the control-path view of one loaded instance.
type PluginStatus struct {
	ID       int
	Name     string
	Path     string
	Format   domain.FormatKind
	State    domain.PluginState
	Bypassed bool
	InChain  bool
}

// Options carries the adapters and initial audio format for a host.
type Options struct {
	Scanner      ports.Scanner
	Bridge       ports.BridgeClient
	Transport    ports.AudioTransport
	ErrorLog     *logging.ErrorLog
	Blacklist    *blacklist.Blacklist
	SampleRate   float64
	PeriodFrames int
}

// Host is the explicitly owned context object for all runtime state:
// catalog, chain, blacklist, and the id counter. All mutable state sits
// behind one lock; the audio goroutine takes that same lock exactly
// once per period, for the duration of the chain walk.
type Host struct {
	scanner   ports.Scanner
	bridge    ports.BridgeClient
	transport ports.AudioTransport
	errorLog  *logging.ErrorLog
	blacklist *blacklist.Blacklist

	// newRunner builds the format runner for a descriptor. Swapped in
	// tests to stand in for faulty plugin code.
	newRunner func(domain.PluginDescriptor, ports.BridgeClient) (ports.FormatRunner, error)

	mu        sync.Mutex
	catalog   map[int]*plugins.Instance
	chain     []int
	available map[string]domain.PluginDescriptor
	nextID    int

	audioRunning bool
	sampleRate   float64
	periodFrames int

	onError ports.ErrorFunc
	onCrash ports.CrashFunc
}

// New assembles a host from its adapters. Call Initialize before use.
func New(opts Options) *Host {
	return &Host{
		scanner:      opts.Scanner,
		bridge:       opts.Bridge,
		transport:    opts.Transport,
		errorLog:     opts.ErrorLog,
		blacklist:    opts.Blacklist,
		newRunner:    plugins.NewRunner,
		catalog:      make(map[int]*plugins.Instance),
		available:    make(map[string]domain.PluginDescriptor),
		nextID:       1,
		sampleRate:   opts.SampleRate,
		periodFrames: opts.PeriodFrames,
	}
}

// SetErrorFunc registers the host-level error observer.
func (h *Host) SetErrorFunc(fn ports.ErrorFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = fn
}

// SetCrashFunc registers the plugin crash observer.
func (h *Host) SetCrashFunc(fn ports.CrashFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCrash = fn
}

// Initialize brings the host up in a fixed order: blacklist, bridge
// helper, audio transport. The error log is opened by the caller before
// the host exists, so startup failures are loggable too. A missing
// bridge helper is tolerated and only disables cross-bitness loads.
func (h *Host) Initialize() error {
	if err := h.blacklist.Load(); err != nil {
		h.reportError(fmt.Sprintf("blacklist load failed: %v", err))
	}

	if h.bridge != nil {
		if err := h.bridge.Initialize(); err != nil {
			h.reportError(fmt.Sprintf("bitness bridge disabled: %v", err))
		}
	}

	if err := h.transport.Initialize(h.sampleRate, h.periodFrames); err != nil {
		return fmt.Errorf("audio transport: %w", err)
	}
	h.transport.SetCallback(h.ProcessBlock)

	h.mu.Lock()
	h.periodFrames = h.transport.PeriodFrames()
	h.sampleRate = h.transport.SampleRate()
	h.mu.Unlock()
	return nil
}

// Shutdown tears the host down in reverse order: stop audio, unload
// every plugin, stop the bridge helper, persist the blacklist, close
// the log. Always safe to call once after Initialize.
func (h *Host) Shutdown() {
	h.StopAudio()
	h.transport.Shutdown()
	h.UnloadAll()

	if h.bridge != nil {
		h.bridge.Shutdown()
	}
	if err := h.blacklist.Save(); err != nil {
		h.errorLog.LogError(fmt.Sprintf("blacklist save failed: %v", err))
	}
	h.errorLog.Close()
}

// Scan probes every candidate file under each directory, recording the
// validated descriptors. Blacklisted paths are skipped before their
// probe starts. Probe failures are logged and scanning continues.
func (h *Host) Scan(ctx context.Context, dirs []string, onProgress ports.ScanProgressFunc) error {
	found := 0
	for _, dir := range dirs {
		err := h.scanner.ScanDirectory(ctx, dir,
			func(desc domain.PluginDescriptor) {
				h.mu.Lock()
				h.available[desc.Path] = desc
				h.mu.Unlock()
				found++
			},
			onProgress,
		)
		if err != nil {
			h.reportError(fmt.Sprintf("scan %s: %v", dir, err))
			if ctx.Err() != nil {
				return err
			}
		}
	}

	h.errorLog.LogError(fmt.Sprintf("scan complete: %d plugin(s) found in %d directorie(s)", found, len(dirs)))
	return nil
}

// Probe inspects one candidate file through the isolated prober.
func (h *Host) Probe(ctx context.Context, path string) (domain.PluginDescriptor, error) {
	return h.scanner.Probe(ctx, path)
}

// GetAvailablePlugins lists every validated descriptor from past scans,
// ordered by path.
func (h *Host) GetAvailablePlugins() []domain.PluginDescriptor {
	h.mu.Lock()
	defer h.mu.Unlock()

	descs := make([]domain.PluginDescriptor, 0, len(h.available))
	for _, d := range h.available {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Path < descs[j].Path })
	return descs
}

// LoadPlugin re-validates path, creates an instance, and activates it.
// The id is published into the catalog only after the load succeeds; a
// failed load leaves catalog and chain untouched.
func (h *Host) LoadPlugin(ctx context.Context, path string) (int, error) {
	if h.blacklist.Contains(path) {
		return 0, fmt.Errorf("%w: %s", domain.ErrBlacklisted, path)
	}

	// The file may have changed since the scan that found it.
	desc, err := h.scanner.Probe(ctx, path)
	if err != nil {
		h.errorLog.LogError(fmt.Sprintf("load rejected: %v", err))
		return 0, err
	}

	runner, err := h.newRunner(desc, h.bridge)
	if err != nil {
		h.errorLog.LogError(fmt.Sprintf("load %s: %v", desc.Name, err))
		return 0, err
	}

	inst := plugins.NewInstance(desc, runner)
	if err := inst.Load(); err != nil {
		h.errorLog.LogError(fmt.Sprintf("load %s: %v", desc.Name, err))
		return 0, err
	}
	if err := inst.Resume(); err != nil {
		inst.Unload()
		h.errorLog.LogError(fmt.Sprintf("activate %s: %v", desc.Name, err))
		return 0, err
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++ // ids are never reused, even after unload
	h.catalog[id] = inst
	h.mu.Unlock()
	return id, nil
}

// UnloadPlugin removes id from the chain, then the catalog, then tears
// the instance down. Teardown faults are logged and swallowed; unload
// never fails destructively.
func (h *Host) UnloadPlugin(id int) error {
	h.mu.Lock()
	inst, ok := h.catalog[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %d", domain.ErrUnknownPlugin, id)
	}
	h.removeFromChainLocked(id)
	delete(h.catalog, id)
	h.mu.Unlock()

	inst.Unload()
	return nil
}

// UnloadAll tears down every loaded instance, used by Shutdown.
func (h *Host) UnloadAll() {
	h.mu.Lock()
	insts := make([]*plugins.Instance, 0, len(h.catalog))
	for id, inst := range h.catalog {
		insts = append(insts, inst)
		delete(h.catalog, id)
	}
	h.chain = h.chain[:0]
	h.mu.Unlock()

	for _, inst := range insts {
		inst.Unload()
	}
}

// AddToChain appends a loaded plugin to the end of the chain. An id
// already in the chain is not added twice.
func (h *Host) AddToChain(id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.catalog[id]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownPlugin, id)
	}
	for _, existing := range h.chain {
		if existing == id {
			return nil
		}
	}
	h.chain = append(h.chain, id)
	return nil
}

// RemoveFromChain removes id from the chain. Ids not in the chain are
// tolerated. Once this returns, no later period processes the id.
func (h *Host) RemoveFromChain(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromChainLocked(id)
}

// MoveInChain moves id to position pos. Out-of-range positions clamp to
// the end of the chain.
func (h *Host) MoveInChain(id, pos int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	at := -1
	for i, existing := range h.chain {
		if existing == id {
			at = i
			break
		}
	}
	if at == -1 {
		return fmt.Errorf("%w: %d not in chain", domain.ErrUnknownPlugin, id)
	}

	h.chain = append(h.chain[:at], h.chain[at+1:]...)
	if pos < 0 || pos > len(h.chain) {
		pos = len(h.chain)
	}
	h.chain = append(h.chain[:pos], append([]int{id}, h.chain[pos:]...)...)
	return nil
}

// ChainIDs returns the chain order as a copy.
func (h *Host) ChainIDs() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.chain...)
}

// SetBypass toggles bypass on a loaded plugin. Lock-free on the
// instance side, so flipping it never stalls a running period.
func (h *Host) SetBypass(id int, bypass bool) error {
	h.mu.Lock()
	inst, ok := h.catalog[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownPlugin, id)
	}
	inst.SetBypass(bypass)
	return nil
}

// GetPluginInfo returns the status of one loaded plugin.
func (h *Host) GetPluginInfo(id int) (PluginStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	inst, ok := h.catalog[id]
	if !ok {
		return PluginStatus{}, fmt.Errorf("%w: %d", domain.ErrUnknownPlugin, id)
	}
	return h.statusLocked(id, inst), nil
}

// LoadedPlugins lists every catalog entry ordered by id.
func (h *Host) LoadedPlugins() []PluginStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]PluginStatus, 0, len(h.catalog))
	for id, inst := range h.catalog {
		out = append(out, h.statusLocked(id, inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Host) statusLocked(id int, inst *plugins.Instance) PluginStatus {
	desc := inst.Descriptor()
	inChain := false
	for _, cid := range h.chain {
		if cid == id {
			inChain = true
			break
		}
	}
	return PluginStatus{
		ID:       id,
		Name:     desc.Name,
		Path:     desc.Path,
		Format:   desc.Format,
		State:    inst.State(),
		Bypassed: inst.Bypassed(),
		InChain:  inChain,
	}
}

// ProcessBlock is the audio transport's frame callback: copy hardware
// input to output as the chain's initial signal, then walk the chain in
// order, each stage processing the output buffer in place. A faulting
// stage is demoted, removed from the chain, and skipped; the period
// keeps the previous stage's signal.
func (h *Host) ProcessBlock(inputs, outputs [][]float32, frames int) {
	for ch := range outputs {
		if ch < len(inputs) && inputs[ch] != nil {
			copy(outputs[ch][:frames], inputs[ch][:frames])
		} else {
			for i := 0; i < frames; i++ {
				outputs[ch][i] = 0
			}
		}
	}

	type crashed struct {
		id   int
		name string
	}
	var crashes []crashed
	var onCrash ports.CrashFunc

	h.mu.Lock()
	for _, id := range h.chain {
		inst := h.catalog[id]
		if inst == nil {
			continue
		}
		if err := inst.ProcessInPlace(outputs, frames); err != nil {
			crashes = append(crashes, crashed{id: id, name: inst.Descriptor().Name})
		}
	}
	for _, c := range crashes {
		h.removeFromChainLocked(c.id)
	}
	onCrash = h.onCrash
	h.mu.Unlock()

	// Logging and observer notification stay off the chain-walk lock.
	for _, c := range crashes {
		h.errorLog.LogPluginCrash(c.name, fmt.Sprintf("fault during processing, removed from chain (id %d)", c.id))
		h.reportError(fmt.Sprintf("Plugin '%s' has crashed and been disabled.", c.name))
		if onCrash != nil {
			onCrash(c.id, c.name)
		}
	}
}

// StartAudio selects the driver and starts the stream. Failures leave
// the audio subsystem stopped.
func (h *Host) StartAudio(driver string) error {
	if driver != "" {
		if err := h.transport.SelectDevice(driver); err != nil {
			return err
		}
	}
	if err := h.transport.Start(); err != nil {
		h.errorLog.LogAudioError(fmt.Sprintf("start failed: %v", err))
		return err
	}

	h.mu.Lock()
	h.audioRunning = true
	h.mu.Unlock()
	return nil
}

// StopAudio stops the stream and joins the audio goroutine.
func (h *Host) StopAudio() {
	h.transport.Stop()

	h.mu.Lock()
	h.audioRunning = false
	h.mu.Unlock()
}

// DeviceNames lists the transport's selectable devices.
func (h *Host) DeviceNames() []string {
	return h.transport.DeviceNames()
}

// AudioRunning reports whether the stream is live.
func (h *Host) AudioRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.audioRunning
}

// SetSampleRate renegotiates the device format at a new sample rate,
// restarting the stream if it was running.
func (h *Host) SetSampleRate(sampleRate float64) error {
	return h.reformat(sampleRate, h.PeriodFrames())
}

// SetPeriodFrames renegotiates the device format at a new period size,
// restarting the stream if it was running.
func (h *Host) SetPeriodFrames(frames int) error {
	return h.reformat(h.SampleRate(), frames)
}

func (h *Host) reformat(sampleRate float64, frames int) error {
	wasRunning := h.AudioRunning()
	if wasRunning {
		h.StopAudio()
	}

	if err := h.transport.Initialize(sampleRate, frames); err != nil {
		return err
	}

	h.mu.Lock()
	h.sampleRate = h.transport.SampleRate()
	h.periodFrames = h.transport.PeriodFrames()
	h.mu.Unlock()

	if wasRunning {
		return h.StartAudio("")
	}
	return nil
}

// SampleRate returns the negotiated sample rate.
func (h *Host) SampleRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sampleRate
}

// PeriodFrames returns the granted period size.
func (h *Host) PeriodFrames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.periodFrames
}

// RecentErrors returns up to count recent log entries, oldest first.
func (h *Host) RecentErrors(count int) []string {
	return h.errorLog.RecentErrors(count)
}

// ClearErrors truncates the error log and its in-memory ring.
func (h *Host) ClearErrors() error {
	return h.errorLog.Clear()
}

// BlacklistAdd blacklists a path and persists the list immediately.
func (h *Host) BlacklistAdd(path string) error {
	h.blacklist.Add(path)
	return h.blacklist.Save()
}

// BlacklistRemove un-blacklists a path and persists the list.
func (h *Host) BlacklistRemove(path string) error {
	h.blacklist.Remove(path)
	return h.blacklist.Save()
}

// BlacklistPaths lists the blacklisted paths, sorted.
func (h *Host) BlacklistPaths() []string {
	return h.blacklist.Paths()
}

func (h *Host) removeFromChainLocked(id int) {
	for i, existing := range h.chain {
		if existing == id {
			h.chain = append(h.chain[:i], h.chain[i+1:]...)
			return
		}
	}
}

func (h *Host) reportError(msg string) {
	h.errorLog.LogError(msg)

	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

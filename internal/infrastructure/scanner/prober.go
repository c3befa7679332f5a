// Package scanner implements out-of-process plugin probing. Each
// candidate file is inspected by a disposable child process so that a
// crashing or hanging binary costs one child, never the host.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"rackhost.audio/cli/internal/core/domain"
	"rackhost.audio/cli/internal/core/scanreport"
)

// DefaultTimeout is the wall-clock budget for one probe child.
const DefaultTimeout = 5 * time.Second

// ScanJob is the transient record of one in-flight probe. It lives
// only for the duration of the probe or until the reaper declares the
// child hung.
type ScanJob struct {
	Path      string
	StartTime time.Time
	cmd       *exec.Cmd
	done      chan struct{}
}

// Prober launches a child process per candidate file and reads back a
// key=value report.
type Prober struct {
	// WorkerCommand is the command line prefix for the probe child;
	// the candidate path is appended as the final argument. Defaults
	// to re-executing the current binary with the probe-worker
	// subcommand.
	WorkerCommand []string

	// Timeout is the per-probe wall-clock budget.
	Timeout time.Duration

	mu   sync.Mutex
	jobs map[*ScanJob]struct{}
}

// NewProber returns a prober that re-executes the current binary as
// its probe child.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	return &Prober{
		WorkerCommand: []string{self, "probe-worker"},
		Timeout:       timeout,
		jobs:          make(map[*ScanJob]struct{}),
	}
}

// Probe inspects one candidate file in a child process. A child that
// exceeds the timeout is forcibly terminated and the probe reports a
// timeout failure.
func (p *Prober) Probe(ctx context.Context, path string) (domain.PluginDescriptor, error) {
	if len(p.WorkerCommand) == 0 {
		return domain.PluginDescriptor{}, fmt.Errorf("prober has no worker command")
	}

	args := append(append([]string(nil), p.WorkerCommand[1:]...), path)
	cmd := exec.Command(p.WorkerCommand[0], args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return domain.PluginDescriptor{}, &domain.ProbeFailure{
			Path: path, Reason: "failed to start probe child", Err: err,
		}
	}

	job := &ScanJob{
		Path:      path,
		StartTime: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}
	p.register(job)
	defer p.unregister(job)

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(job.done)
	}()

	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()

	var exitErr error
	select {
	case exitErr = <-waitErr:
	case <-deadline.C:
		cmd.Process.Kill()
		<-waitErr
		return domain.PluginDescriptor{}, &domain.ProbeFailure{
			Path: path, Reason: "probe timed out", Err: domain.ErrProbeTimeout,
		}
	case <-ctx.Done():
		cmd.Process.Kill()
		<-waitErr
		return domain.PluginDescriptor{}, ctx.Err()
	}

	desc, err := scanreport.Parse(&stdout)
	if err != nil {
		return domain.PluginDescriptor{}, &domain.ProbeFailure{
			Path: path, Reason: "unreadable probe report", Err: err,
		}
	}
	if desc.Path == "" {
		desc.Path = path
	}

	if desc.ErrorMsg != "" {
		return domain.PluginDescriptor{}, &domain.ProbeFailure{Path: path, Reason: desc.ErrorMsg}
	}
	if exitErr != nil || !desc.Valid() {
		// Partial or garbled output, or a child killed before
		// reporting, is a failure, never a validated descriptor.
		reason := "probe child reported no valid plugin"
		if exitErr != nil {
			reason = fmt.Sprintf("probe child exited: %v", exitErr)
		}
		return domain.PluginDescriptor{}, &domain.ProbeFailure{Path: path, Reason: reason}
	}

	return desc, nil
}

// ActiveJobs returns the number of in-flight probes.
func (p *Prober) ActiveJobs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// ReapHung force-terminates any registered probe child that has
// exceeded the timeout, even if the probing loop is blocked elsewhere.
// It returns the number of children reaped.
func (p *Prober) ReapHung() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	reaped := 0
	for job := range p.jobs {
		select {
		case <-job.done:
			delete(p.jobs, job)
			continue
		default:
		}
		if now.Sub(job.StartTime) > p.Timeout {
			job.cmd.Process.Kill()
			delete(p.jobs, job)
			reaped++
		}
	}
	return reaped
}

// Shutdown terminates all in-flight probe children.
func (p *Prober) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for job := range p.jobs {
		select {
		case <-job.done:
		default:
			job.cmd.Process.Kill()
		}
		delete(p.jobs, job)
	}
}

func (p *Prober) register(job *ScanJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs[job] = struct{}{}
}

func (p *Prober) unregister(job *ScanJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.jobs, job)
}

// Package bridge runs plugins whose pointer width differs from the
// host's in a single persistent helper process, speaking a
// line-oriented command/response protocol over the helper's stdio.
package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"rackhost.audio/cli/internal/core/domain"
)

// Protocol commands. Every command except EXIT expects exactly one
// response line before the next command may be sent.
const (
	cmdInit    = "INIT"
	cmdLoad    = "LOAD"
	cmdUnload  = "UNLOAD"
	cmdProcess = "PROCESS"
	cmdExit    = "EXIT"

	respOK = "OK"
)

// shutdownGrace is how long Shutdown waits for the helper to exit
// after EXIT before force-terminating it.
const shutdownGrace = 5 * time.Second

// Session is the single long-lived connection to the bitness helper.
// One session serves all cross-bitness loads; every call is funneled
// through one lock because the wire protocol has no pipelining.
type Session struct {
	// HelperCommand launches the helper. Defaults to re-executing the
	// current binary with the bridge-worker subcommand.
	HelperCommand []string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	responses *bufio.Scanner
	available bool
	broken    bool
}

// NewSession returns an uninitialized bridge session that re-executes
// the current binary as its helper.
func NewSession() *Session {
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	return &Session{HelperCommand: []string{self, "bridge-worker"}}
}

// Initialize launches the helper and performs the INIT handshake. A
// missing helper binary returns ErrBridgeUnavailable and leaves
// cross-bitness support disabled; the host keeps working for
// matching-bitness plugins.
func (s *Session) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available {
		return nil
	}
	if len(s.HelperCommand) == 0 {
		return domain.ErrBridgeUnavailable
	}

	if _, err := exec.LookPath(s.HelperCommand[0]); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBridgeUnavailable, err)
	}

	cmd := exec.Command(s.HelperCommand[0], s.HelperCommand[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: command pipe: %v", domain.ErrBridgeUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("%w: response pipe: %v", domain.ErrBridgeUnavailable, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("%w: %v", domain.ErrBridgeUnavailable, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.responses = bufio.NewScanner(stdout)
	s.available = true
	s.broken = false

	if _, err := s.roundTripLocked(cmdInit); err != nil {
		s.teardownLocked()
		return fmt.Errorf("%w: handshake failed: %v", domain.ErrBridgeUnavailable, err)
	}
	return nil
}

// Available reports whether the helper session is usable.
func (s *Session) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available && !s.broken
}

// LoadPlugin asks the helper to load a plugin module.
func (s *Session) LoadPlugin(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.roundTripLocked(cmdLoad + " " + path)
	if err != nil {
		return err
	}
	if resp != respOK {
		return fmt.Errorf("bridge refused %s: %s", path, resp)
	}
	return nil
}

// UnloadPlugin asks the helper to unload a plugin module. Unknown
// paths are tolerated.
func (s *Session) UnloadPlugin(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.roundTripLocked(cmdUnload + " " + path)
	return err
}

// Process renders one period through a bridged plugin. Audio payloads
// do not cross the pipe; the PROCESS round trip validates that the
// helper and the loaded module are alive while the period's signal
// passes input through to output on the host side. One pipe round trip
// per call means bridged processing is not real-time safe and must not
// run on the audio goroutine directly.
func (s *Session) Process(path string, inputs, outputs [][]float32, frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.roundTripLocked(cmdProcess + " " + path)
	if err != nil {
		return err
	}
	if resp != respOK {
		return fmt.Errorf("bridge cannot process %s: %s", path, resp)
	}

	for ch := range outputs {
		if ch < len(inputs) && inputs[ch] != nil {
			copy(outputs[ch][:frames], inputs[ch][:frames])
		} else {
			zero(outputs[ch][:frames])
		}
	}
	return nil
}

// Shutdown sends EXIT, waits briefly for a graceful exit, then
// force-terminates the helper.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return
	}

	if s.stdin != nil {
		fmt.Fprintf(s.stdin, "%s\n", cmdExit)
	}

	done := make(chan struct{})
	go func(cmd *exec.Cmd) {
		cmd.Wait()
		close(done)
	}(s.cmd)

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.cmd.Process.Kill()
		<-done
	}

	s.teardownLocked()
}

// roundTripLocked writes one command and reads exactly one response
// line. Any pipe failure is fatal for the session: the protocol has no
// resync point, so all bridged plugins are downgraded.
func (s *Session) roundTripLocked(command string) (string, error) {
	if !s.available || s.broken {
		return "", domain.ErrBridgeBroken
	}

	if _, err := fmt.Fprintf(s.stdin, "%s\n", command); err != nil {
		s.broken = true
		return "", fmt.Errorf("%w: %v", domain.ErrBridgeBroken, err)
	}

	if !s.responses.Scan() {
		s.broken = true
		err := s.responses.Err()
		if err == nil {
			err = errors.New("helper closed response pipe")
		}
		return "", fmt.Errorf("%w: %v", domain.ErrBridgeBroken, err)
	}

	return strings.TrimSpace(s.responses.Text()), nil
}

func (s *Session) teardownLocked() {
	if s.stdin != nil {
		s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.ProcessState == nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.cmd = nil
	s.responses = nil
	s.available = false
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

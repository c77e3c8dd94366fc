package web

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"jarvis/internal/ipc"
)

// Supervisor runs the assistant daemon as a child process.
type Supervisor struct {
	argv   []string
	socket string
	grace  time.Duration

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewSupervisor(argv []string, socket string, grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Supervisor{argv: argv, socket: socket, grace: grace}
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Supervisor) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Start launches the daemon unless it is already running.
func (s *Supervisor) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return nil
	}
	if len(s.argv) == 0 {
		return errors.New("no daemon command configured")
	}

	cmd := exec.Command(s.argv[0], s.argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}
	log.Info("Daemon started", "pid", cmd.Process.Pid, "cmd", s.argv)

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		log.Info("Daemon exited", "pid", cmd.Process.Pid, "err", err)
		close(done)
	}()
	s.cmd, s.done = cmd, done
	return nil
}

// Stop asks the daemon to stop over the control socket, then interrupts it,
// then kills it, waiting up to the grace period between steps.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	running := s.runningLocked()
	s.mu.Unlock()

	if _, err := ipc.Send(ctx, s.socket, ipc.ControlMessage{Cmd: ipc.CmdStop}); err != nil {
		log.Debug("IPC stop failed", "err", err)
	}
	if !running {
		return nil
	}

	if s.wait(ctx, done) {
		return nil
	}
	log.Warn("Daemon ignored stop request, interrupting", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt daemon: %w", err)
	}
	if s.wait(ctx, done) {
		return nil
	}
	log.Warn("Daemon ignored interrupt, killing", "pid", cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill daemon: %w", err)
	}
	<-done
	return nil
}

func (s *Supervisor) wait(ctx context.Context, done <-chan struct{}) bool {
	t := time.NewTimer(s.grace)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

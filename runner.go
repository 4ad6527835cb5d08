package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProgressEvent is one observation of a supervised child process.
type ProgressEvent struct {
	Percent int
	Message string
}

// RunSpec describes one child process run under a Supervisor.
type RunSpec struct {
	// Command is the prepared, not yet started child process.
	Command *exec.Cmd

	// ProgressFile, when set, is polled while the child runs and fed
	// through ParseEvent.
	ProgressFile string
	ParseEvent   func(raw string) (ProgressEvent, bool)

	// PartialPaths are removed when the run fails or is cancelled, so a
	// half-written output never survives.
	PartialPaths []string

	// Events receives progress observations. Sends never block; a slow
	// consumer just misses intermediate updates.
	Events chan<- ProgressEvent
}

// Supervisor runs external tools one at a time. Each kind of long-running
// operation owns a Supervisor, so two extractions can never race each other
// while an unrelated transcode still can proceed.
type Supervisor struct {
	mu sync.Mutex

	// PollInterval defaults to one second.
	PollInterval time.Duration
}

// Run starts the child, polls its progress file until it exits and enforces
// single-occupancy per Supervisor. Cancelling ctx kills the child and removes
// the partial outputs before returning.
func (s *Supervisor) Run(ctx context.Context, rs RunSpec) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()

	name := filepath.Base(rs.Command.Path)
	if err := rs.Command.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	log.WithFields(log.Fields{"tool": name, "pid": rs.Command.Process.Pid}).Debug("child started")

	done := make(chan error, 1)
	go func() { done <- rs.Command.Wait() }()

	interval := s.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := rs.Command.Process.Kill(); err != nil {
				log.WithError(err).Warn("could not kill child process")
			}
			<-done
			s.removePartials(rs)
			return ctx.Err()
		case err := <-done:
			s.poll(rs)
			if err != nil {
				s.removePartials(rs)
				return fmt.Errorf("%s exited: %w", name, err)
			}
			return nil
		case <-ticker.C:
			s.poll(rs)
		}
	}
}

func (s *Supervisor) poll(rs RunSpec) {
	if rs.ProgressFile == "" || rs.ParseEvent == nil {
		return
	}
	raw, err := os.ReadFile(rs.ProgressFile)
	if err != nil {
		return
	}
	ev, ok := rs.ParseEvent(string(raw))
	if !ok {
		return
	}
	if rs.Events != nil {
		select {
		case rs.Events <- ev:
		default:
		}
	}
}

func (s *Supervisor) removePartials(rs RunSpec) {
	for _, p := range rs.PartialPaths {
		if p == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			log.WithError(err).WithField("path", p).Warn("could not remove partial output")
		}
	}
}

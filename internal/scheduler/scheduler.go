// Package scheduler runs a background job on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Status is a snapshot of a scheduler's run history.
type Status struct {
	Name      string     `json:"name"`
	Running   bool       `json:"running"`
	Interval  string     `json:"interval"`
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

type Scheduler struct {
	name     string
	interval time.Duration
	job      Job

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu   sync.Mutex
	runs      int64
	failures  int64
	lastRunAt time.Time
	lastErr   error
}

func New(name string, interval time.Duration, job Job) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("scheduler started", "job", s.name, "interval", s.interval.String())

		s.safeRun(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("scheduler stopping", "job", s.name)
				return
			case <-ticker.C:
				s.safeRun(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("scheduler stopped", "job", s.name)
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// RunOnce runs the job synchronously, outside the ticker loop.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.safeRun(ctx)
}

func (s *Scheduler) Status() Status {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	st := Status{
		Name:     s.name,
		Running:  s.IsRunning(),
		Interval: s.interval.String(),
		Runs:     s.runs,
		Failures: s.failures,
	}
	if !s.lastRunAt.IsZero() {
		t := s.lastRunAt
		st.LastRunAt = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler job panic recovered", "job", s.name, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", s.name, r)
		}
		s.record(start, err)
	}()

	err = s.job(ctx)
	if err != nil {
		slog.Error("scheduler job failed", "job", s.name, "error", err)
		return err
	}
	slog.Info("scheduler job completed", "job", s.name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Scheduler) record(at time.Time, err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.runs++
	s.lastRunAt = at.UTC()
	s.lastErr = err
	if err != nil {
		s.failures++
	}
}

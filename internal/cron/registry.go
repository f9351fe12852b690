package cron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is one unit of scheduled maintenance. Runs must be safe to repeat.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type schedule struct {
	job   Job
	every time.Duration
	next  time.Time
}

// Registry holds jobs with their own cadence. A job is due when it has never
// succeeded or its interval has elapsed since the last success; failed jobs
// stay due and are retried on the next cycle.
type Registry struct {
	mu      sync.Mutex
	entries []*schedule
	byName  map[string]*schedule
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*schedule{}}
}

// Register adds job to run at most once per every. every <= 0 runs it on each cycle.
func (r *Registry) Register(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("cron job required")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q already registered", name)
	}
	entry := &schedule{job: job, every: every}
	r.entries = append(r.entries, entry)
	r.byName[name] = entry
	return nil
}

// Due returns the jobs to run at now, in registration order.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, entry := range r.entries {
		if entry.next.IsZero() || !now.Before(entry.next) {
			due = append(due, entry.job)
		}
	}
	return due
}

// Succeeded pushes the next run of name one interval past at.
func (r *Registry) Succeeded(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.byName[name]; ok {
		entry.next = at.Add(entry.every)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

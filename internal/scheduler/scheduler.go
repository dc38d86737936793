// Package scheduler runs the recurring maintenance jobs on cron
// schedules.
package scheduler

import (
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"growrack/internal/logging"
)

// Scheduler wraps a cron runner with named, replaceable jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	jobMu sync.RWMutex
	jobs  map[string]cron.EntryID
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  logging.WithComponent("scheduler"),
		jobs: make(map[string]cron.EntryID),
	}
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.JobCount()).Msg("scheduler started")
}

// Stop halts dispatch and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddJob registers fn under the given name and cron spec. Registering
// an existing name replaces the previous schedule.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return err
	}
	s.jobs[name] = entryID
	s.log.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

// RemoveJob unschedules the named job if present.
func (s *Scheduler) RemoveJob(name string) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.log.Info().Str("job", name).Msg("job removed")
	}
}

// JobCount reports how many jobs are scheduled.
func (s *Scheduler) JobCount() int {
	s.jobMu.RLock()
	defer s.jobMu.RUnlock()
	return len(s.jobs)
}

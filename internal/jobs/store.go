package jobs

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/google/uuid"
)

// DefaultTTL is how long finished jobs are kept.
const DefaultTTL = time.Hour

// Store is a concurrency-safe job registry.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[uuid.UUID]*Job),
		now:  time.Now,
	}
}

// Add registers a job. An existing job with the same id is replaced.
func (s *Store) Add(j Job) {
	if j.CreatedAt.IsZero() {
		j.CreatedAt = s.now()
	}
	if j.Status == "" {
		j.Status = StatusProcessing
	}
	s.mu.Lock()
	s.jobs[j.ID] = &j
	s.mu.Unlock()
}

// Get returns a snapshot of the job.
func (s *Store) Get(id uuid.UUID) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// Authorize returns the job if owner may access it. Jobs created without
// an owner are visible to everyone.
func (s *Store) Authorize(id uuid.UUID, owner string) (Job, error) {
	j, ok := s.Get(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if j.Owner != "" && j.Owner != owner {
		return Job{}, ErrNotOwner
	}
	return j, nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) update(id uuid.UUID, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(j)
	return true
}

// SetProgress records the current stage. Progress is clamped to 0..100 and
// never moves backwards; finished jobs are left alone.
func (s *Store) SetProgress(id uuid.UUID, stage string, progress int) {
	progress = min(100, max(0, progress))
	s.update(id, func(j *Job) {
		if j.Status.Finished() {
			return
		}
		j.Stage = stage
		j.Progress = max(j.Progress, progress)
	})
}

// Complete marks the job completed with its archive and statistics.
func (s *Store) Complete(id uuid.UUID, archivePath string, stats classify.Stats) {
	now := s.now()
	s.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Stage = "completed"
		j.Progress = 100
		j.ArchivePath = archivePath
		j.Stats = &stats
		j.CompletedAt = &now
	})
}

// Fail marks the job failed with a user-facing message.
func (s *Store) Fail(id uuid.UUID, msg string) {
	now := s.now()
	s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = msg
		j.CompletedAt = &now
	})
}

// Sweep deletes finished jobs that completed more than ttl ago, along with
// their work directories, and returns how many were removed. Running jobs
// are never swept.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	var expired []*Job
	for id, j := range s.jobs {
		if j.Status.Finished() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			expired = append(expired, j)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, j := range expired {
		if j.WorkDir == "" {
			continue
		}
		if err := os.RemoveAll(j.WorkDir); err != nil {
			slog.Warn("failed to remove job files", "job_id", j.ID, "dir", j.WorkDir, "error", err)
		}
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = ttl / 4
	}
	slog.Info("job sweeper started", "interval", interval, "ttl", ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job sweeper stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(ttl); n > 0 {
				slog.Info("expired jobs removed", "jobs", n, "remaining", s.Len())
			}
		}
	}
}

// Package jobs runs pipelines in the background and tracks their state.
//
// A Store holds every job keyed by id with its owner, status and result
// paths; it is created by the caller and passed in, never global. A Manager
// admits uploads through a Limiter, runs each pipeline under a deadline and
// records the outcome in the Store. A sweeper removes finished jobs and
// their files once they outlive the TTL.
package jobs

import (
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/google/uuid"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Finished reports whether the job reached a terminal state.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a snapshot of one upload's processing state.
type Job struct {
	ID          uuid.UUID       `json:"job_id"`
	Owner       string          `json:"-"`
	FileName    string          `json:"file_name"`
	Status      Status          `json:"status"`
	Stage       string          `json:"stage,omitempty"`
	Progress    int             `json:"progress"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Stats       *classify.Stats `json:"stats,omitempty"`

	// WorkDir holds the input, the export bundle and the archive.
	WorkDir     string `json:"-"`
	InputPath   string `json:"-"`
	ArchivePath string `json:"-"`
}

// clone copies the job so callers never share pointers with the store.
func (j *Job) clone() Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Stats != nil {
		s := *j.Stats
		c.Stats = &s
	}
	return c
}

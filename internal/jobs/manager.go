package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/classify"
	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/JonMunkholm/moodlelogsmart/internal/export"
	"github.com/JonMunkholm/moodlelogsmart/internal/pipeline"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single pipeline run.
const DefaultTimeout = 600 * time.Second

// Runner executes one pipeline. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error)
}

// EventSink stores classified events of a completed job.
// *export.PostgresSink satisfies it.
type EventSink interface {
	Write(ctx context.Context, jobID uuid.UUID, events []core.EnrichedEvent) (int64, error)
}

// Recorder receives job metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	JobSubmitted()
	JobFinished(status string, d time.Duration)
	EventsProcessed(stats classify.Stats, dropped int)
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted()                       {}
func (nopRecorder) JobFinished(string, time.Duration)   {}
func (nopRecorder) EventsProcessed(classify.Stats, int) {}

// Config configures a Manager.
type Config struct {
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
	WorkDir       string
}

// Manager starts and tracks background pipeline runs.
type Manager struct {
	store    *Store
	limiter  *Limiter
	runner   Runner
	sink     EventSink
	recorder Recorder
	timeout  time.Duration
	workDir  string
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithSink stores every completed job's events in sink.
func WithSink(sink EventSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithRecorder reports job metrics to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager recording into store.
func NewManager(store *Store, runner Runner, cfg Config, opts ...Option) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "moodlelogsmart")
	}
	m := &Manager{
		store:    store,
		limiter:  NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		runner:   runner,
		recorder: nopRecorder{},
		timeout:  cfg.Timeout,
		workDir:  cfg.WorkDir,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the manager's job store.
func (m *Manager) Store() *Store {
	return m.store
}

// Active returns the number of running pipelines.
func (m *Manager) Active() int {
	return m.limiter.Active()
}

// Submit copies the upload into the job's work directory and starts the
// pipeline in the background. It waits for a free slot and fails with
// ErrTooManyJobs if none frees up in time.
func (m *Manager) Submit(ctx context.Context, owner, fileName string, r io.Reader) (Job, error) {
	if err := m.limiter.Acquire(ctx); err != nil {
		return Job{}, err
	}

	id := uuid.New()
	dir := filepath.Join(m.workDir, id.String())
	input := filepath.Join(dir, "input.csv")
	if err := saveInput(input, r); err != nil {
		m.limiter.Release()
		os.RemoveAll(dir)
		return Job{}, err
	}

	job := Job{
		ID:        id,
		Owner:     owner,
		FileName:  fileName,
		Status:    StatusProcessing,
		WorkDir:   dir,
		InputPath: input,
	}
	m.store.Add(job)
	m.recorder.JobSubmitted()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.limiter.Release()
		m.run(id, dir, input)
	}()

	j, _ := m.store.Get(id)
	return j, nil
}

func saveInput(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create input: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("save upload: %w", err)
	}
	return f.Close()
}

func (m *Manager) run(id uuid.UUID, dir, input string) {
	start := time.Now()
	logger := m.logger.With("job_id", id)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	req := pipeline.Request{
		Path:        input,
		OutDir:      filepath.Join(dir, "results"),
		ArchivePath: filepath.Join(dir, export.ArchiveName(start)),
	}
	res, err := m.runner.Run(ctx, req, func(stage pipeline.Stage, pct int) {
		m.store.SetProgress(id, string(stage), pct)
	})
	if err == nil && m.sink != nil {
		var n int64
		if n, err = m.sink.Write(ctx, id, res.Events); err == nil {
			logger.Info("events stored", "rows", n)
		}
	}

	if err != nil {
		msg := core.FormatUserError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = core.FormatUserError(fmt.Errorf("processing timed out after %s", m.timeout))
		}
		m.store.Fail(id, msg)
		m.recorder.JobFinished(string(StatusFailed), time.Since(start))
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		return
	}

	m.store.Complete(id, res.ArchivePath, res.Stats)
	m.recorder.JobFinished(string(StatusCompleted), time.Since(start))
	m.recorder.EventsProcessed(res.Stats, res.Dropped)
	logger.Info("job completed", "events", res.Stats.TotalEvents, "duration", time.Since(start))
}

// Status returns the job if owner may see it.
func (m *Manager) Status(id uuid.UUID, owner string) (Job, error) {
	return m.store.Authorize(id, owner)
}

// Archive returns the result ZIP path of a completed job.
func (m *Manager) Archive(id uuid.UUID, owner string) (string, error) {
	j, err := m.store.Authorize(id, owner)
	if err != nil {
		return "", err
	}
	if j.Status != StatusCompleted || j.ArchivePath == "" {
		return "", ErrJobNotCompleted
	}
	return j.ArchivePath, nil
}

// Wait blocks until every started job has finished. Tests use it.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// WaitForDrain blocks until no pipeline is running or ctx is done.
func (m *Manager) WaitForDrain(ctx context.Context) error {
	return m.limiter.WaitForDrain(ctx)
}

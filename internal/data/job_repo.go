package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/sous-os/sous-core/internal/domain/job"
	"github.com/sous-os/sous-core/internal/domain/model"
)

const defaultMaxAttempts = 3

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	// DefaultMaxAttempts applies when an enqueue request leaves MaxAttempts at zero.
	DefaultMaxAttempts int
	Backoff            *job.BackoffPolicy
	Logger             *slog.Logger
	TimeProvider       TimeProvider

	// OnLeaseExpiryDeadLetter is called after commit for each job that a
	// lease-expiry sweep moved to dead_lettered. The Fail path notifies
	// through the service layer; this is the only way those sweeps surface.
	OnLeaseExpiryDeadLetter func(ctx context.Context, job *model.Job)
}

// JobRepo provides database operations for the durable job queue.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

func (r *JobRepo) maxAttempts(requested int) int {
	if requested > 0 {
		return requested
	}
	if r.cfg.DefaultMaxAttempts > 0 {
		return r.cfg.DefaultMaxAttempts
	}
	return defaultMaxAttempts
}

const jobColumns = `
  id,
  queue,
  kind,
  status,
  payload,
  organization_id,
  attempts,
  max_attempts,
  last_error,
  scheduled_at,
  lease_expires_at,
  completed_at,
  created_at,
  updated_at
`

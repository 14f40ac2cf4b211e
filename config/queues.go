package config

import "time"

// WorkerConfig contains one queue worker's configuration.
type WorkerConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease a job.
	JobLease time.Duration `env:"JOB_LEASE" envDefault:"30s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.JobLease < 5*time.Second {
		w.JobLease = 5 * time.Second
	}
}

// QueuesConfig contains job queue configuration shared by all workers plus
// per-queue worker settings.
type QueuesConfig struct {
	// DefaultMaxAttempts is the attempt budget for jobs that don't request one.
	DefaultMaxAttempts int `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`

	// MaxDepth is the pending-depth admission ceiling per queue (0 = unbounded).
	MaxDepth int `env:"QUEUE_MAX_DEPTH" envDefault:"10000"`

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"30s"`

	// BackoffCap is the upper bound on the retry delay.
	BackoffCap time.Duration `env:"QUEUE_BACKOFF_CAP" envDefault:"15m"`

	// Per-queue worker configuration.
	Ingestion    WorkerConfig `envPrefix:"INGESTION_WORKER_"`
	Intelligence WorkerConfig `envPrefix:"INTELLIGENCE_WORKER_"`
	Sales        WorkerConfig `envPrefix:"SALES_WORKER_"`
	Support      WorkerConfig `envPrefix:"SUPPORT_WORKER_"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueuesConfig) Sanitize() {
	if q.DefaultMaxAttempts < 1 {
		q.DefaultMaxAttempts = 1
	}
	if q.MaxDepth < 0 {
		q.MaxDepth = 0
	}
	if q.BackoffBase <= 0 {
		q.BackoffBase = 30 * time.Second
	}
	if q.BackoffCap < q.BackoffBase {
		q.BackoffCap = q.BackoffBase
	}

	q.Ingestion.Sanitize()
	q.Intelligence.Sanitize()
	q.Sales.Sanitize()
	q.Support.Sanitize()
}

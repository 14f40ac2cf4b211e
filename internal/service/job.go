package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sous-os/sous-core/internal/core"
	domainjob "github.com/sous-os/sous-core/internal/domain/job"
	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
	"github.com/sous-os/sous-core/internal/observability/notify"
	"github.com/sous-os/sous-core/internal/service/failurenotifier"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	DefaultLease    time.Duration             // Required: default lease duration for jobs
	MaxQueueDepth   int                       // Optional: enqueue admission limit per queue (0 = unbounded)
	Logger          *slog.Logger              // Optional: structured logger
	FailureNotifier *failurenotifier.Service  // Optional: failure notification fan-out
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService provides business logic for the durable job queue.
//
// This service manages:
// - Enqueue admission and payload screening
// - Job reservation and lease management
// - Pub/sub notification for job availability
// - Dead-letter inspection and operator requeue
// - Graceful shutdown of background listeners.
type JobService struct {
	repo            core.JobRepository
	leasePolicy     *domainjob.LeasePolicy
	notifier        domainjob.Notifier
	maxQueueDepth   int
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var leasePolicy *domainjob.LeasePolicy
	switch {
	case opts.LeasePolicy != nil:
		leasePolicy = opts.LeasePolicy
	case opts.DefaultLease > 0:
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	default:
		return nil, errors.New("DefaultLease must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized",
			"default_lease", leasePolicy.Default(),
			"max_queue_depth", opts.MaxQueueDepth,
		)
	}

	return &JobService{
		repo:            opts.Repo,
		leasePolicy:     leasePolicy,
		notifier:        notifier,
		maxQueueDepth:   opts.MaxQueueDepth,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Enqueue admits a new job after screening its kind and payload. A queue at
// its depth limit rejects the request instead of absorbing it.
func (s *JobService) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("enqueue request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := ValidateEnqueue(req); err != nil {
		return nil, err
	}

	if s.maxQueueDepth > 0 {
		depth, err := s.repo.PendingDepth(ctx, req.Queue)
		if err != nil {
			return nil, fmt.Errorf("check queue depth: %w", err)
		}
		if depth >= s.maxQueueDepth {
			return nil, apperrors.QueueSaturated(
				fmt.Sprintf("queue %s is at capacity (%d pending)", req.Queue, depth))
		}
	}

	job, err := s.repo.Enqueue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(
			ctx,
			"job enqueued",
			"id",
			job.ID,
			"queue",
			job.Queue,
			"kind",
			job.Kind,
		)
	}

	return job, nil
}

// ReserveNext leases the next eligible job on the given queue for processing.
func (s *JobService) ReserveNext(
	ctx context.Context,
	queue model.QueueName,
	lease time.Duration,
) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested,
			"queue", queue)
	}

	job, err := s.repo.ReserveNext(ctx, queue, decision.Seconds)
	if err != nil {
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil && job != nil {
		s.logger.DebugContext(
			ctx,
			"job leased",
			"id",
			job.ID,
			"queue",
			queue,
			"kind",
			job.Kind,
			"attempt",
			job.Attempts,
			"lease_seconds",
			decision.Seconds,
		)
	}

	return job, nil
}

// Subscribe creates a subscription for job notifications on the given queue.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe(queue model.QueueName) (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe(queue)
}

// WaitForNotification waits for a notification indicating new jobs are available.
func (s *JobService) WaitForNotification(ctx context.Context, queue model.QueueName) error {
	return s.repo.WaitForNotification(ctx, queue)
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() && s.logger != nil {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested,
			"job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}

	return updated, nil
}

// Complete marks a job as completed successfully.
func (s *JobService) Complete(ctx context.Context, id string) (bool, error) {
	completed, err := s.repo.Complete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", id)
	}

	return completed, nil
}

// JobFailureDetails captures optional context for failure notifications.
type JobFailureDetails struct {
	// Permanent routes the job straight to the dead-letter surface without
	// consuming remaining attempts.
	Permanent  bool
	ErrorClass string
	Metadata   map[string]string
	Severity   string
	OccurredAt time.Time
}

// Fail records a failed attempt with the given error message.
func (s *JobService) Fail(ctx context.Context, id, errMsg string) (*model.Job, error) {
	return s.FailWithDetails(ctx, id, errMsg, JobFailureDetails{})
}

// FailWithDetails records a failed attempt and propagates optional metadata
// to the notifier. Dead-lettered outcomes fan out to the failure sinks.
func (s *JobService) FailWithDetails(
	ctx context.Context,
	id, errMsg string,
	details JobFailureDetails,
) (*model.Job, error) {
	if errMsg == "" {
		return nil, errors.New("error message required")
	}

	job, err := s.repo.Fail(ctx, core.FailJobParams{
		ID:        id,
		ErrMsg:    errMsg,
		Permanent: details.Permanent,
	})
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job failed",
			"id", id,
			"status", job.Status,
			"attempt", job.Attempts,
			"error", errMsg,
		)
	}

	if s.failureNotifier != nil {
		s.failureNotifier.NotifyJobFailure(ctx, buildJobFailurePayload(job, errMsg, details))
	}

	return job, nil
}

func buildJobFailurePayload(
	job *model.Job,
	errMsg string,
	details JobFailureDetails,
) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:          job.ID,
		Queue:          string(job.Queue),
		Kind:           string(job.Kind),
		OrganizationID: job.OrganizationID,
		DeadLettered:   job.Status == model.JobStatusDeadLettered,
		Error:          errMsg,
		ErrorClass:     details.ErrorClass,
		Severity:       details.Severity,
		Attempts:       job.Attempts,
		MaxAttempts:    job.MaxAttempts,
		OccurredAt:     details.OccurredAt,
		Metadata:       copyMetadata(details.Metadata),
	}

	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}

	payload.Metadata = mergeMetadata(payload.Metadata, map[string]string{
		"attempts":     strconv.Itoa(job.Attempts),
		"max_attempts": strconv.Itoa(job.MaxAttempts),
		"status":       string(job.Status),
	})
	if payload.ErrorClass != "" {
		payload.Metadata = mergeMetadata(payload.Metadata, map[string]string{
			"error_class": payload.ErrorClass,
		})
	}

	return payload
}

func copyMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" || v == "" {
			continue
		}
		dst[k] = v
	}
	return dst
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	out := copyMetadata(base)
	if out == nil && len(extra) == 0 {
		return nil
	}
	if out == nil {
		out = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Stats returns counts of jobs per state for the given queue.
func (s *JobService) Stats(ctx context.Context, queue model.QueueName) (*model.QueueStats, error) {
	stats, err := s.repo.Stats(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("get stats for queue %s: %w", queue, err)
	}
	return stats, nil
}

// GetStatus returns the externally visible status of a job.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	return &model.JobStatusResponse{
		Status:      job.Status,
		Attempts:    job.Attempts,
		CompletedAt: job.CompletedAt,
		LastError:   job.LastError,
	}, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

// ListDeadLettered returns the most recently dead-lettered jobs on a queue
// for operator inspection.
func (s *JobService) ListDeadLettered(
	ctx context.Context,
	queue model.QueueName,
	limit int,
) ([]*model.Job, error) {
	jobs, err := s.repo.ListDeadLettered(ctx, queue, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead-lettered jobs for queue %s: %w", queue, err)
	}
	return jobs, nil
}

// Requeue returns a dead-lettered job to its queue with a fresh attempt budget.
func (s *JobService) Requeue(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, errors.New("job id is required")
	}

	job, err := s.repo.Requeue(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("requeue job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "dead-lettered job requeued", "id", id, "queue", job.Queue)
	}

	return job, nil
}

// StopAllListeners stops all active job notification listeners.
// This should be called during graceful shutdown to clean up goroutines.
func (s *JobService) StopAllListeners() {
	if s.logger != nil {
		s.logger.Info("stopping all job listeners")
	}

	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

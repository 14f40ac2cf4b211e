// Package failurenotifier fans job failure notifications out to configured
// sinks such as Slack or PagerDuty.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration

	// DeadLetterOnly suppresses notifications for failures that still have
	// retries left; only dead-lettered jobs page anyone.
	DeadLetterOnly bool
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger         *slog.Logger
	sinks          []SinkRegistration
	deadLetterOnly bool
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger:         logger,
		sinks:          sinks,
		deadLetterOnly: opts.DeadLetterOnly,
	}
}

// NotifyJobFailure fan-outs the job failure payload to all sinks.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if s.deadLetterOnly && !payload.DeadLettered {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "skipping notification for retryable failure",
				"job_id", payload.JobID,
				"queue", payload.Queue,
				"kind", payload.Kind,
			)
		}
		return
	}

	if payload.Severity == "" {
		if payload.DeadLettered {
			payload.Severity = notify.SeverityCritical
		} else {
			payload.Severity = notify.SeverityWarning
		}
	}

	s.dispatch(ctx, payload)
}

// NotifyCriticalTicket pages sinks about a critical support report. Ticket
// alerts always page; the DeadLetterOnly gate applies to job retries, not to
// reports a customer already escalated.
func (s *Service) NotifyCriticalTicket(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}
	payload.Severity = notify.SeverityCritical
	s.dispatch(ctx, payload)
}

func (s *Service) dispatch(ctx context.Context, payload notify.JobFailurePayload) {
	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"queue", payload.Queue,
					"kind", payload.Kind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// LeaseExpiryHook adapts the notifier to the job repository's lease-expiry
// dead-letter callback, so jobs that die holding an expired lease page the
// same sinks the explicit fail path does. Returns nil when no sinks are
// configured.
func (s *Service) LeaseExpiryHook() func(ctx context.Context, job *model.Job) {
	if s == nil || !s.Enabled() {
		return nil
	}
	return func(ctx context.Context, job *model.Job) {
		errMsg := "lease expired after final attempt"
		if job.LastError != nil && *job.LastError != "" {
			errMsg = *job.LastError
		}
		s.NotifyJobFailure(ctx, notify.JobFailurePayload{
			JobID:          job.ID,
			Queue:          string(job.Queue),
			Kind:           string(job.Kind),
			OrganizationID: job.OrganizationID,
			DeadLettered:   true,
			Error:          errMsg,
			Attempts:       job.Attempts,
			MaxAttempts:    job.MaxAttempts,
			OccurredAt:     time.Now(),
		})
	}
}

package failurenotifier

import (
	"context"
	"errors"
	"testing"

	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/observability/notify"
)

func TestServiceNotifyJobFailure(t *testing.T) {
	ctx := context.Background()

	var received []notify.JobFailurePayload
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					received = append(received, payload)
					return nil
				}),
			},
		},
	})

	svc.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:        "123",
		Queue:        "intelligence",
		Kind:         "calculate-recipe-cost",
		DeadLettered: true,
	})

	if len(received) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", received[0].Severity)
	}
}

func TestServiceRetryableDefaultsToWarning(t *testing.T) {
	var received []notify.JobFailurePayload
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					received = append(received, payload)
					return nil
				}),
			},
		},
	})

	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{
		JobID: "456",
		Queue: "sales",
		Kind:  "calculate-commission",
	})

	if len(received) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityWarning {
		t.Fatalf("expected severity to default to warning, got %s", received[0].Severity)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
}

func TestServiceLogsErrors(t *testing.T) {
	// Ensure we don't panic when sink returns an error.
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					return errors.New("boom")
				}),
			},
		},
	})

	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "123"})
}

func TestServiceLeaseExpiryHook(t *testing.T) {
	var received []notify.JobFailurePayload
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					received = append(received, payload)
					return nil
				}),
			},
		},
	})

	hook := svc.LeaseExpiryHook()
	if hook == nil {
		t.Fatal("expected hook for a notifier with sinks")
	}

	lastErr := "lease expired after final attempt"
	hook(context.Background(), &model.Job{
		ID:          "789",
		Queue:       "support",
		Kind:        "triage-ticket",
		Status:      model.JobStatusDeadLettered,
		Attempts:    3,
		MaxAttempts: 3,
		LastError:   &lastErr,
	})

	if len(received) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(received))
	}
	if !received[0].DeadLettered {
		t.Fatal("expected lease-expiry payload to be marked dead-lettered")
	}
	if received[0].Error != lastErr {
		t.Fatalf("expected error %q, got %q", lastErr, received[0].Error)
	}

	if NewService(Options{}).LeaseExpiryHook() != nil {
		t.Fatal("expected nil hook when no sinks registered")
	}
}

func TestServiceDeadLetterOnlySkipsRetryable(t *testing.T) {
	ctx := context.Background()
	var called bool
	svc := NewService(Options{
		DeadLetterOnly: true,
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					called = true
					return nil
				}),
			},
		},
	})

	svc.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:        "retry-1",
		Queue:        "ingestion",
		Kind:         "sync-sales",
		DeadLettered: false,
	})
	if called {
		t.Fatal("expected sink not to be invoked for retryable failure")
	}

	svc.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:        "dead-1",
		Queue:        "ingestion",
		Kind:         "sync-sales",
		DeadLettered: true,
	})
	if !called {
		t.Fatal("expected sink to be invoked for dead-lettered failure")
	}
}

package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/sous-os/sous-core/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID:          "123",
		Queue:          "intelligence",
		Kind:           "calculate-recipe-cost",
		OrganizationID: "org-1",
		Error:          "boom",
		ErrorClass:     "test_error",
		Attempts:       2,
		MaxAttempts:    3,
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{"Job failure", "123", "calculate-recipe-cost", "intelligence", "org-1", "2/3", "boom", "test_error"},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageDeadLetteredHeader(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID:        "j-1",
		Kind:         "sync-sales",
		DeadLettered: true,
		Error:        "lease expired after final attempt",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !strings.Contains(text, "Job dead-lettered") {
		t.Fatalf("expected dead-lettered header, got: %s", text)
	}
}

func TestFormatMessageEscapesError(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID: "j-2",
		Error: "bad value & <payload>",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "bad value &amp; &lt;payload&gt;") {
		t.Fatalf("expected escaped error text, got: %s", text)
	}
}

func TestFormatMessageMetadataSorted(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID: "j-3",
		Metadata: map[string]string{
			"component": "sales_runner",
			"attempts":  "1",
		},
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	attemptsIdx := strings.Index(text, "attempts")
	componentIdx := strings.Index(text, "component")
	if attemptsIdx < 0 || componentIdx < 0 {
		t.Fatalf("expected metadata keys in text: %s", text)
	}
	if attemptsIdx > componentIdx {
		t.Fatalf("expected metadata keys sorted, got: %s", text)
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}

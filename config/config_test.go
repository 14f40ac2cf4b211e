package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - ingestion-worker",
			input: "ingestion-worker",
			expected: map[ServiceMode]bool{
				ServiceModeIngestionWorker: true,
			},
		},
		{
			name:  "single service - reaper",
			input: "reaper",
			expected: map[ServiceMode]bool{
				ServiceModeReaper: true,
			},
		},
		{
			name:  "multiple services",
			input: "intelligence-worker,sales-worker,realtime",
			expected: map[ServiceMode]bool{
				ServiceModeIntelligenceWorker: true,
				ServiceModeSalesWorker:        true,
				ServiceModeRealtime:           true,
			},
		},
		{
			name:  "whitespace tolerated",
			input: " ingestion-worker , support-worker ",
			expected: map[ServiceMode]bool{
				ServiceModeIngestionWorker: true,
				ServiceModeSupportWorker:   true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "ingestion-worker,http",
			expectError: true,
		},
		{
			name:        "only separators",
			input:       ", ,",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_GetEnabledServices(t *testing.T) {
	tests := []struct {
		name        string
		services    string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single worker",
			services: "sales-worker",
			expected: map[ServiceMode]bool{
				ServiceModeSalesWorker: true,
			},
		},
		{
			name:     "workers plus reaper",
			services: "ingestion-worker,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeIngestionWorker: true,
				ServiceModeReaper:          true,
			},
		},
		{
			name:        "invalid configuration",
			services:    "invalid-service",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			result, err := cfg.GetEnabledServices()

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "realtime,reaper"}
	if !cfg.IsRealtimeEnabled() {
		t.Error("IsRealtimeEnabled(): expected true")
	}
	if !cfg.IsReaperEnabled() {
		t.Error("IsReaperEnabled(): expected true")
	}

	cfg = AppConfig{Services: "ingestion-worker"}
	if cfg.IsRealtimeEnabled() {
		t.Error("IsRealtimeEnabled(): expected false")
	}
	if cfg.IsReaperEnabled() {
		t.Error("IsReaperEnabled(): expected false")
	}

	// All methods should return false when configuration is invalid
	cfg = AppConfig{Services: "invalid-service"}
	if cfg.IsRealtimeEnabled() {
		t.Error("IsRealtimeEnabled() with invalid config: expected false")
	}
	if cfg.IsReaperEnabled() {
		t.Error("IsReaperEnabled() with invalid config: expected false")
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{
		ServiceModeIngestionWorker,
		ServiceModeIntelligenceWorker,
		ServiceModeSalesWorker,
		ServiceModeSupportWorker,
		ServiceModeRealtime,
		ServiceModeReaper,
	}

	if len(modes) != len(expected) {
		t.Errorf("expected %d service modes, got %d", len(expected), len(modes))
	}

	for i, mode := range modes {
		if mode != expected[i] {
			t.Errorf("expected service mode %s at index %d, got %s", expected[i], i, mode)
		}
	}
}

func TestAppConfig_ParseQueueEnv(t *testing.T) {
	t.Setenv("QUEUE_DEFAULT_MAX_ATTEMPTS", "5")
	t.Setenv("QUEUE_MAX_DEPTH", "500")
	t.Setenv("QUEUE_BACKOFF_BASE", "10s")
	t.Setenv("INGESTION_WORKER_CONCURRENCY", "4")
	t.Setenv("INGESTION_WORKER_JOB_LEASE", "45s")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Queues.DefaultMaxAttempts != 5 {
		t.Errorf("expected DefaultMaxAttempts 5, got %d", cfg.Queues.DefaultMaxAttempts)
	}
	if cfg.Queues.MaxDepth != 500 {
		t.Errorf("expected MaxDepth 500, got %d", cfg.Queues.MaxDepth)
	}
	if cfg.Queues.BackoffBase != 10*time.Second {
		t.Errorf("expected BackoffBase 10s, got %v", cfg.Queues.BackoffBase)
	}
	if cfg.Queues.Ingestion.Concurrency != 4 {
		t.Errorf("expected ingestion concurrency 4, got %d", cfg.Queues.Ingestion.Concurrency)
	}
	if cfg.Queues.Ingestion.JobLease != 45*time.Second {
		t.Errorf("expected ingestion lease 45s, got %v", cfg.Queues.Ingestion.JobLease)
	}
	// Untouched queues keep their defaults after sanitize
	if cfg.Queues.Sales.Concurrency < 1 {
		t.Errorf("expected sales concurrency >= 1, got %d", cfg.Queues.Sales.Concurrency)
	}
}

func TestQueuesConfig_Sanitize(t *testing.T) {
	cfg := QueuesConfig{
		DefaultMaxAttempts: 0,
		MaxDepth:           -1,
		BackoffBase:        -time.Second,
		BackoffCap:         time.Second,
		Ingestion:          WorkerConfig{Concurrency: 0, JobLease: time.Second},
	}

	cfg.Sanitize()

	if cfg.DefaultMaxAttempts != 1 {
		t.Errorf("expected DefaultMaxAttempts clamped to 1, got %d", cfg.DefaultMaxAttempts)
	}
	if cfg.MaxDepth != 0 {
		t.Errorf("expected MaxDepth clamped to 0, got %d", cfg.MaxDepth)
	}
	if cfg.BackoffBase != 30*time.Second {
		t.Errorf("expected BackoffBase default, got %v", cfg.BackoffBase)
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		t.Errorf("expected BackoffCap >= BackoffBase, got %v", cfg.BackoffCap)
	}
	if cfg.Ingestion.Concurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", cfg.Ingestion.Concurrency)
	}
	if cfg.Ingestion.JobLease != 5*time.Second {
		t.Errorf("expected lease clamped to 5s, got %v", cfg.Ingestion.JobLease)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{
		Interval:         time.Second,
		CompletedMaxAge:  time.Minute,
		DeadLetterMaxAge: time.Hour,
		BatchSize:        100000,
	}

	cfg.Sanitize()

	if cfg.Interval != time.Minute {
		t.Errorf("expected interval clamped to 1m, got %v", cfg.Interval)
	}
	if cfg.CompletedMaxAge != time.Hour {
		t.Errorf("expected completed max age clamped to 1h, got %v", cfg.CompletedMaxAge)
	}
	if cfg.DeadLetterMaxAge != 24*time.Hour {
		t.Errorf("expected dead-letter max age clamped to 24h, got %v", cfg.DeadLetterMaxAge)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch size clamped to 10000, got %d", cfg.BatchSize)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled: true,
		Timeout: 0,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
			Channel:    "  ",
			Username:   "",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " ",
			Source:     "",
			Component:  "",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled without a routing key")
	}
	if cfg.PagerDuty.Source != "sous-core" {
		t.Fatalf("expected pagerduty source default, got %q", cfg.PagerDuty.Source)
	}
	if cfg.PagerDuty.Component != "sous-core" {
		t.Fatalf("expected pagerduty component default, got %q", cfg.PagerDuty.Component)
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "abc",
		},
	}
	cfg.Sanitize()

	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled when top-level notifications disabled")
	}
}

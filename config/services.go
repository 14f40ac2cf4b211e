package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeIngestionWorker runs the ingestion queue worker.
	ServiceModeIngestionWorker ServiceMode = "ingestion-worker"
	// ServiceModeIntelligenceWorker runs the intelligence (costing) queue worker.
	ServiceModeIntelligenceWorker ServiceMode = "intelligence-worker"
	// ServiceModeSalesWorker runs the sales (commission) queue worker.
	ServiceModeSalesWorker ServiceMode = "sales-worker"
	// ServiceModeSupportWorker runs the support triage queue worker.
	ServiceModeSupportWorker ServiceMode = "support-worker"
	// ServiceModeRealtime runs the realtime broadcaster bridge.
	ServiceModeRealtime ServiceMode = "realtime"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeIngestionWorker,
		ServiceModeIntelligenceWorker,
		ServiceModeSalesWorker,
		ServiceModeSupportWorker,
		ServiceModeRealtime,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeIngestionWorker,
			ServiceModeIntelligenceWorker,
			ServiceModeSalesWorker,
			ServiceModeSupportWorker,
			ServiceModeRealtime,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: ingestion-worker, intelligence-worker, sales-worker, support-worker, realtime, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// DeadLetterMaxAge is the maximum age for dead-lettered jobs before
	// deletion. Dead-lettered jobs stay inspectable within this window.
	DeadLetterMaxAge time.Duration `env:"REAPER_DEAD_LETTER_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.DeadLetterMaxAge < 24*time.Hour {
		r.DeadLetterMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

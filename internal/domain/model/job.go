// Package model defines the core data types shared across the sous-core job
// orchestration and realtime subsystems.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// QueueName identifies a named work queue. Each domain owns one queue.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type QueueName string

// JobKind identifies the unit of work a job represents within its queue.
type JobKind string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// QueueIngestion carries POS catalog/sales synchronization work.
	QueueIngestion QueueName = "ingestion"
	// QueueIntelligence carries recipe cost computation work.
	QueueIntelligence QueueName = "intelligence"
	// QueueSales carries commission posting work.
	QueueSales QueueName = "sales"
	// QueueSupport carries support ticket triage work.
	QueueSupport QueueName = "support"

	// KindCalculateRecipeCost recomputes a recipe's cost snapshot.
	KindCalculateRecipeCost JobKind = "calculate-recipe-cost"
	// KindCalculateCommission posts a commission ledger entry for a payment.
	KindCalculateCommission JobKind = "calculate-commission"
	// KindSyncSales pulls and normalizes sales records from a POS driver.
	KindSyncSales JobKind = "sync-sales"
	// KindSyncCatalog pulls and normalizes the product catalog from a POS driver.
	KindSyncCatalog JobKind = "sync-catalog"
	// KindTriageTicket classifies and records an inbound support report.
	KindTriageTicket JobKind = "triage-ticket"

	// JobStatusPending indicates a job is waiting to be leased.
	JobStatusPending JobStatus = "pending"
	// JobStatusLeased indicates a job is held by a worker under an active lease.
	JobStatusLeased JobStatus = "leased"
	// JobStatusCompleted indicates a job finished successfully. Terminal.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the last attempt failed and a retry is scheduled.
	JobStatusFailed JobStatus = "failed"
	// JobStatusDeadLettered indicates the job exhausted its attempts or hit a
	// permanent error. Terminal; kept for operator inspection.
	JobStatusDeadLettered JobStatus = "dead_lettered"
)

// ErrNoJobsAvailable is returned when no jobs are eligible for leasing.
var ErrNoJobsAvailable = errors.New("no jobs available")

// UnmarshalText implements encoding.TextUnmarshaler for QueueName to allow env parsing.
func (q *QueueName) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	qn := QueueName(v)
	if qn.Valid() {
		*q = qn
		return nil
	}
	return fmt.Errorf("invalid QueueName: %q", v)
}

// Valid returns true if the QueueName is one of the known queues.
func (q QueueName) Valid() bool {
	return q == QueueIngestion || q == QueueIntelligence || q == QueueSales || q == QueueSupport
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusLeased || s == JobStatusCompleted ||
		s == JobStatusFailed || s == JobStatusDeadLettered
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusDeadLettered
}

// Job represents a unit of deferred work with its lease and retry bookkeeping.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	Queue          QueueName       `json:"queue"                      db:"queue"`
	Kind           JobKind         `json:"kind"                       db:"kind"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	OrganizationID string          `json:"organization_id"            db:"organization_id"`
	Attempts       int             `json:"attempts"                   db:"attempts"`
	MaxAttempts    int             `json:"max_attempts"               db:"max_attempts"`
	LastError      *string         `json:"last_error,omitempty"       db:"last_error"`
	ScheduledAt    time.Time       `json:"scheduled_at"               db:"scheduled_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// EnqueueRequest represents a request to enqueue a new job.
type EnqueueRequest struct {
	Queue          QueueName       `json:"queue"`
	Kind           JobKind         `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	OrganizationID string          `json:"organization_id"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	MaxAttempts    int             `json:"max_attempts"`
}

// Validate validates the structural EnqueueRequest fields. Kind registration
// and payload schema are the queue registry's concern.
func (r *EnqueueRequest) Validate() error {
	if !r.Queue.Valid() {
		return errors.New("invalid queue name")
	}
	if r.Kind == "" {
		return errors.New("job kind is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.OrganizationID == "" {
		return errors.New("organization id is required")
	}
	if r.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	return nil
}

// QueueStats represents counts of jobs per state for one queue.
type QueueStats struct {
	Pending      int `json:"pending"`
	Leased       int `json:"leased"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
}

// JobStatusResponse represents the externally visible status of a job.
type JobStatusResponse struct {
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
}

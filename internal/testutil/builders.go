package testutil

import (
	"encoding/json"
	"time"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// EnqueueRequestBuilder provides a fluent interface for building
// EnqueueRequest objects for testing.
type EnqueueRequestBuilder struct {
	req *model.EnqueueRequest
}

// NewEnqueueRequest creates a new EnqueueRequestBuilder with sensible
// defaults: a recipe cost job on the intelligence queue.
func NewEnqueueRequest() *EnqueueRequestBuilder {
	return &EnqueueRequestBuilder{
		req: &model.EnqueueRequest{
			Queue:          model.QueueIntelligence,
			Kind:           model.KindCalculateRecipeCost,
			Payload:        json.RawMessage(`{"recipe_id": "00000000-0000-0000-0000-000000000001"}`),
			OrganizationID: "org-test",
			MaxAttempts:    3,
		},
	}
}

// WithQueue sets the target queue.
func (b *EnqueueRequestBuilder) WithQueue(queue model.QueueName) *EnqueueRequestBuilder {
	b.req.Queue = queue
	return b
}

// WithKind sets the job kind.
func (b *EnqueueRequestBuilder) WithKind(kind model.JobKind) *EnqueueRequestBuilder {
	b.req.Kind = kind
	return b
}

// WithPayload sets the job payload.
func (b *EnqueueRequestBuilder) WithPayload(payload json.RawMessage) *EnqueueRequestBuilder {
	b.req.Payload = payload
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *EnqueueRequestBuilder) WithPayloadString(payload string) *EnqueueRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithOrganizationID sets the owning organization.
func (b *EnqueueRequestBuilder) WithOrganizationID(orgID string) *EnqueueRequestBuilder {
	b.req.OrganizationID = orgID
	return b
}

// WithScheduledAt sets the earliest run time.
func (b *EnqueueRequestBuilder) WithScheduledAt(scheduledAt time.Time) *EnqueueRequestBuilder {
	b.req.ScheduledAt = &scheduledAt
	return b
}

// WithMaxAttempts sets the per-job attempt ceiling.
func (b *EnqueueRequestBuilder) WithMaxAttempts(maxAttempts int) *EnqueueRequestBuilder {
	b.req.MaxAttempts = maxAttempts
	return b
}

// Build returns the constructed EnqueueRequest.
func (b *EnqueueRequestBuilder) Build() *model.EnqueueRequest {
	return b.req
}

// CommissionRequest builds an EnqueueRequest for a commission posting on the
// sales queue.
func CommissionRequest(orgID, paymentRef string, amount int64) *model.EnqueueRequest {
	payload, _ := json.Marshal(map[string]any{
		"payment_ref": paymentRef,
		"amount":      amount,
	})
	return NewEnqueueRequest().
		WithQueue(model.QueueSales).
		WithKind(model.KindCalculateCommission).
		WithOrganizationID(orgID).
		WithPayload(payload).
		Build()
}

// TicketRequest builds an EnqueueRequest for a support triage job.
func TicketRequest(orgID, subject, body string) *model.EnqueueRequest {
	payload, _ := json.Marshal(map[string]any{
		"subject": subject,
		"body":    body,
	})
	return NewEnqueueRequest().
		WithQueue(model.QueueSupport).
		WithKind(model.KindTriageTicket).
		WithOrganizationID(orgID).
		WithPayload(payload).
		Build()
}

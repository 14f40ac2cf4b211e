package service

import (
	"encoding/json"
	"time"

	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// RecipeCostPayload schedules a cost recomputation for one recipe.
type RecipeCostPayload struct {
	RecipeID string `json:"recipe_id"`
}

// CommissionPayload schedules a commission posting for one payment.
type CommissionPayload struct {
	PaymentRef string `json:"payment_ref"`
	Amount     int64  `json:"amount"`
}

// SalesSyncPayload schedules a pull of sales from a POS vendor.
type SalesSyncPayload struct {
	Vendor string    `json:"vendor"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// CatalogSyncPayload schedules a pull of the product catalog from a POS vendor.
type CatalogSyncPayload struct {
	Vendor string `json:"vendor"`
}

// TicketPayload schedules triage of an inbound support report.
type TicketPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// queueKinds maps each queue to the job kinds it accepts. Enqueue requests
// outside this table are rejected before they reach storage.
var queueKinds = map[model.QueueName]map[model.JobKind]bool{
	model.QueueIngestion: {
		model.KindSyncSales:   true,
		model.KindSyncCatalog: true,
	},
	model.QueueIntelligence: {
		model.KindCalculateRecipeCost: true,
	},
	model.QueueSales: {
		model.KindCalculateCommission: true,
	},
	model.QueueSupport: {
		model.KindTriageTicket: true,
	},
}

// QueueForKind returns the queue that owns a job kind.
func QueueForKind(kind model.JobKind) (model.QueueName, bool) {
	for queue, kinds := range queueKinds {
		if kinds[kind] {
			return queue, true
		}
	}
	return "", false
}

// ValidateEnqueue checks that the request's kind belongs to its queue and
// that the payload decodes into the kind's schema.
func ValidateEnqueue(req *model.EnqueueRequest) error {
	kinds, ok := queueKinds[req.Queue]
	if !ok {
		return apperrors.Validationf("unknown queue %q", req.Queue)
	}
	if !kinds[req.Kind] {
		return apperrors.InvalidPayload(
			"job kind " + string(req.Kind) + " is not registered on queue " + string(req.Queue))
	}
	return validatePayload(req.Kind, req.Payload)
}

func validatePayload(kind model.JobKind, raw json.RawMessage) error {
	switch kind {
	case model.KindCalculateRecipeCost:
		_, err := DecodeRecipeCostPayload(raw)
		return err
	case model.KindCalculateCommission:
		_, err := DecodeCommissionPayload(raw)
		return err
	case model.KindSyncSales:
		_, err := DecodeSalesSyncPayload(raw)
		return err
	case model.KindSyncCatalog:
		_, err := DecodeCatalogSyncPayload(raw)
		return err
	case model.KindTriageTicket:
		_, err := DecodeTicketPayload(raw)
		return err
	default:
		return apperrors.UnsupportedJobKind("no payload schema for kind " + string(kind))
	}
}

func strictDecode(raw json.RawMessage, dst any, kind model.JobKind) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.InvalidPayloadf("decode %s payload: %v", kind, err)
	}
	return nil
}

// DecodeRecipeCostPayload decodes and validates a recipe cost payload.
func DecodeRecipeCostPayload(raw json.RawMessage) (*RecipeCostPayload, error) {
	var p RecipeCostPayload
	if err := strictDecode(raw, &p, model.KindCalculateRecipeCost); err != nil {
		return nil, err
	}
	if p.RecipeID == "" {
		return nil, apperrors.InvalidPayload("recipe_id is required")
	}
	return &p, nil
}

// DecodeCommissionPayload decodes and validates a commission payload. Amount
// sign is the commission engine's call; only the shape is checked here.
func DecodeCommissionPayload(raw json.RawMessage) (*CommissionPayload, error) {
	var p CommissionPayload
	if err := strictDecode(raw, &p, model.KindCalculateCommission); err != nil {
		return nil, err
	}
	if p.PaymentRef == "" {
		return nil, apperrors.InvalidPayload("payment_ref is required")
	}
	return &p, nil
}

// DecodeSalesSyncPayload decodes and validates a sales sync payload.
func DecodeSalesSyncPayload(raw json.RawMessage) (*SalesSyncPayload, error) {
	var p SalesSyncPayload
	if err := strictDecode(raw, &p, model.KindSyncSales); err != nil {
		return nil, err
	}
	if p.Vendor == "" {
		return nil, apperrors.InvalidPayload("vendor is required")
	}
	if !p.End.IsZero() && !p.Start.IsZero() && p.End.Before(p.Start) {
		return nil, apperrors.InvalidPayload("sync range end precedes start")
	}
	return &p, nil
}

// DecodeCatalogSyncPayload decodes and validates a catalog sync payload.
func DecodeCatalogSyncPayload(raw json.RawMessage) (*CatalogSyncPayload, error) {
	var p CatalogSyncPayload
	if err := strictDecode(raw, &p, model.KindSyncCatalog); err != nil {
		return nil, err
	}
	if p.Vendor == "" {
		return nil, apperrors.InvalidPayload("vendor is required")
	}
	return &p, nil
}

// DecodeTicketPayload decodes and validates a ticket payload.
func DecodeTicketPayload(raw json.RawMessage) (*TicketPayload, error) {
	var p TicketPayload
	if err := strictDecode(raw, &p, model.KindTriageTicket); err != nil {
		return nil, err
	}
	if p.Subject == "" {
		return nil, apperrors.InvalidPayload("subject is required")
	}
	return &p, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/data"
	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// CommissionServiceOptions groups dependencies for CommissionService.
type CommissionServiceOptions struct {
	Ledger       core.LedgerRepository      // Required
	Attributions core.AttributionRepository // Required
	Logger       *slog.Logger
}

// CommissionService converts payments into commission ledger postings.
// Posting is idempotent per (organization, payment reference): replays and
// concurrent duplicates resolve to the single existing entry.
type CommissionService struct {
	ledger       core.LedgerRepository
	attributions core.AttributionRepository
	logger       *slog.Logger
}

// NewCommissionService constructs a new CommissionService.
func NewCommissionService(opts CommissionServiceOptions) (*CommissionService, error) {
	if opts.Ledger == nil {
		return nil, errors.New("LedgerRepository is required")
	}
	if opts.Attributions == nil {
		return nil, errors.New("AttributionRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "commission_service")
	}

	return &CommissionService{
		ledger:       opts.Ledger,
		attributions: opts.Attributions,
		logger:       logger,
	}, nil
}

// CommissionBase is the basis-point divisor for commission math.
const CommissionBase = 10_000

// CommissionAmount returns the commission in minor units for a payment
// amount at the given basis points, rounding down.
func CommissionAmount(amount int64, bps int) int64 {
	return amount * int64(bps) / CommissionBase
}

// CalculateCommission posts a commission ledger entry for one payment. A nil
// entry with nil error means there was nothing to post: no attribution, zero
// rate, or zero commission.
func (s *CommissionService) CalculateCommission(
	ctx context.Context,
	organizationID, paymentRef string,
	amount int64,
) (*model.LedgerEntry, error) {
	if paymentRef == "" {
		return nil, apperrors.InvalidPayload("payment_ref is required")
	}
	if amount < 0 {
		return nil, apperrors.InvalidAmount(
			fmt.Sprintf("payment amount must not be negative, got %d", amount))
	}

	if existing, err := s.ledger.GetByReference(ctx, organizationID, paymentRef); err == nil {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "commission already posted",
				"organization_id", organizationID,
				"payment_ref", paymentRef,
				"entry_id", existing.ID,
			)
		}
		return existing, nil
	} else if !errors.Is(err, data.ErrLedgerEntryNotFound) {
		return nil, fmt.Errorf("check existing commission: %w", err)
	}

	attribution, err := s.attributions.GetByOrganization(ctx, organizationID)
	if err != nil {
		if errors.Is(err, data.ErrAttributionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load commission attribution: %w", err)
	}
	if attribution.SalesmanID == "" || attribution.Bps <= 0 {
		return nil, nil
	}

	commission := CommissionAmount(amount, attribution.Bps)
	if commission == 0 {
		return nil, nil
	}

	entry, err := s.ledger.Create(ctx, &model.LedgerEntry{
		OrganizationID: organizationID,
		ReferenceID:    paymentRef,
		Amount:         commission,
		Kind:           model.LedgerEntryCommission,
	})
	if err != nil {
		// A concurrent worker won the insert race; the existing entry is
		// the posting.
		if errors.Is(err, data.ErrLedgerEntryExists) {
			return s.ledger.GetByReference(ctx, organizationID, paymentRef)
		}
		return nil, fmt.Errorf("post commission: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "commission posted",
			"organization_id", organizationID,
			"payment_ref", paymentRef,
			"amount", commission,
			"bps", attribution.Bps,
		)
	}

	return entry, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sous-os/sous-core/internal/core"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/drivers"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// IngestionServiceOptions groups dependencies for IngestionService.
type IngestionServiceOptions struct {
	Drivers     *drivers.Registry                 // Required
	Normalizers map[string]*drivers.Normalizer    // Required: per-vendor field mappings
	Catalog     core.CatalogRepository            // Required for catalog sync
	Enqueuer    core.Enqueuer                     // Required: downstream commission scheduling
	Logger      *slog.Logger
}

// IngestionService pulls vendor data through POS drivers, normalizes it to
// canonical shapes, and hands it downstream. A malformed vendor record is
// skipped and counted, never fatal to the sync.
type IngestionService struct {
	drivers     *drivers.Registry
	normalizers map[string]*drivers.Normalizer
	catalog     core.CatalogRepository
	enqueuer    core.Enqueuer
	logger      *slog.Logger
}

// NewIngestionService constructs a new IngestionService.
func NewIngestionService(opts IngestionServiceOptions) (*IngestionService, error) {
	if opts.Drivers == nil {
		return nil, errors.New("driver registry is required")
	}
	if len(opts.Normalizers) == 0 {
		return nil, errors.New("at least one vendor normalizer is required")
	}
	if opts.Enqueuer == nil {
		return nil, errors.New("enqueuer is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "ingestion_service")
	}

	return &IngestionService{
		drivers:     opts.Drivers,
		normalizers: opts.Normalizers,
		catalog:     opts.Catalog,
		enqueuer:    opts.Enqueuer,
		logger:      logger,
	}, nil
}

func (s *IngestionService) vendor(name string) (drivers.POSDriver, *drivers.Normalizer, error) {
	driver, err := s.drivers.POS(name)
	if err != nil {
		return nil, nil, err
	}
	normalizer, ok := s.normalizers[name]
	if !ok {
		return nil, nil, apperrors.Validationf("no record mapping configured for vendor %q", name)
	}
	return driver, normalizer, nil
}

// SyncSales pulls sales in the range from the vendor, normalizes them, and
// enqueues a commission posting for every order carrying a payment reference.
func (s *IngestionService) SyncSales(
	ctx context.Context,
	organizationID, vendor string,
	rng drivers.DateRange,
) (*model.SyncResult, error) {
	driver, normalizer, err := s.vendor(vendor)
	if err != nil {
		return nil, err
	}

	records, err := driver.FetchSales(ctx, organizationID, rng)
	if err != nil {
		return nil, fmt.Errorf("fetch sales from %s: %w", vendor, err)
	}

	result := &model.SyncResult{Fetched: len(records)}
	for _, raw := range records {
		order, normErr := normalizer.Order(organizationID, raw)
		if normErr != nil {
			result.Skipped++
			if s.logger != nil {
				s.logger.WarnContext(ctx, "skipping malformed sale record",
					"vendor", vendor,
					"organization_id", organizationID,
					"error", normErr,
				)
			}
			continue
		}
		result.Normalized++

		if order.PaymentRef == "" {
			continue
		}
		if enqErr := s.enqueueCommission(ctx, order); enqErr != nil {
			return result, enqErr
		}
		result.Enqueued++
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sales sync finished",
			"vendor", vendor,
			"organization_id", organizationID,
			"fetched", result.Fetched,
			"normalized", result.Normalized,
			"skipped", result.Skipped,
			"enqueued", result.Enqueued,
		)
	}

	return result, nil
}

func (s *IngestionService) enqueueCommission(ctx context.Context, order *model.Order) error {
	payload, err := json.Marshal(CommissionPayload{
		PaymentRef: order.PaymentRef,
		Amount:     order.Total,
	})
	if err != nil {
		return fmt.Errorf("marshal commission payload: %w", err)
	}

	_, err = s.enqueuer.Enqueue(ctx, &model.EnqueueRequest{
		Queue:          model.QueueSales,
		Kind:           model.KindCalculateCommission,
		Payload:        payload,
		OrganizationID: order.OrganizationID,
	})
	if err != nil {
		return fmt.Errorf("enqueue commission for payment %s: %w", order.PaymentRef, err)
	}
	return nil
}

// SyncCatalog pulls the vendor's product catalog and upserts normalized items.
func (s *IngestionService) SyncCatalog(
	ctx context.Context,
	organizationID, vendor string,
) (*model.SyncResult, error) {
	if s.catalog == nil {
		return nil, errors.New("catalog repository not configured")
	}

	driver, normalizer, err := s.vendor(vendor)
	if err != nil {
		return nil, err
	}

	records, err := driver.FetchCatalog(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog from %s: %w", vendor, err)
	}

	result := &model.SyncResult{Fetched: len(records)}
	for _, raw := range records {
		item, normErr := normalizer.CatalogItem(organizationID, raw)
		if normErr != nil {
			result.Skipped++
			if s.logger != nil {
				s.logger.WarnContext(ctx, "skipping malformed catalog record",
					"vendor", vendor,
					"organization_id", organizationID,
					"error", normErr,
				)
			}
			continue
		}

		if upsertErr := s.catalog.Upsert(ctx, item); upsertErr != nil {
			return result, fmt.Errorf("upsert catalog item %s: %w", item.ExternalID, upsertErr)
		}
		result.Normalized++
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "catalog sync finished",
			"vendor", vendor,
			"organization_id", organizationID,
			"fetched", result.Fetched,
			"normalized", result.Normalized,
			"skipped", result.Skipped,
		)
	}

	return result, nil
}

// SubscribeOrders consumes the vendor's live order stream until ctx is done,
// enqueueing commission postings as orders arrive. A saturated sales queue
// drops the posting with a warning; the periodic sales sync backfills it.
func (s *IngestionService) SubscribeOrders(
	ctx context.Context,
	organizationID, vendor string,
) error {
	driver, normalizer, err := s.vendor(vendor)
	if err != nil {
		return err
	}

	stream, err := driver.SubscribeToOrders(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("subscribe to %s orders: %w", vendor, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-stream:
			if !ok {
				return nil
			}
			s.handleStreamedOrder(ctx, organizationID, vendor, normalizer, raw)
		}
	}
}

func (s *IngestionService) handleStreamedOrder(
	ctx context.Context,
	organizationID, vendor string,
	normalizer *drivers.Normalizer,
	raw []byte,
) {
	order, err := normalizer.Order(organizationID, raw)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "skipping malformed streamed order",
				"vendor", vendor, "error", err)
		}
		return
	}
	if order.PaymentRef == "" {
		return
	}

	if err := s.enqueueCommission(ctx, order); err != nil {
		if apperrors.IsQueueSaturated(err) {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "sales queue saturated, dropping streamed commission",
					"vendor", vendor,
					"payment_ref", order.PaymentRef,
				)
			}
			return
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "enqueue streamed commission failed",
				"vendor", vendor,
				"payment_ref", order.PaymentRef,
				"error", err,
			)
		}
	}
}

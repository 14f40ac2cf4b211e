package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/drivers"
	apperrors "github.com/sous-os/sous-core/internal/errors"
	"github.com/sous-os/sous-core/internal/mocks"
)

func squareNormalizer(t *testing.T) *drivers.Normalizer {
	t.Helper()
	n, err := drivers.NewNormalizer("square", drivers.RecordMapping{
		OrderExternalID:   "id",
		Total:             "total_money.amount",
		PaymentRef:        "tenders[0].payment_id",
		PlacedAt:          "created_at",
		CatalogExternalID: "id",
		Name:              "item_data.name",
		Price:             "item_data.price_money.amount",
		SKU:               "item_data.sku",
	})
	require.NoError(t, err)
	return n
}

type ingestionFixture struct {
	driver   *drivers.StaticPOSDriver
	catalog  *mocks.MockCatalogRepository
	enqueuer *mocks.MockEnqueuer
	svc      *IngestionService
}

func newIngestionFixture(t *testing.T, ctrl *gomock.Controller) *ingestionFixture {
	t.Helper()

	registry := drivers.NewRegistry()
	driver := drivers.NewStaticPOSDriver("square")
	registry.RegisterPOS(driver)

	f := &ingestionFixture{
		driver:   driver,
		catalog:  mocks.NewMockCatalogRepository(ctrl),
		enqueuer: mocks.NewMockEnqueuer(ctrl),
	}
	svc, err := NewIngestionService(IngestionServiceOptions{
		Drivers:     registry,
		Normalizers: map[string]*drivers.Normalizer{"square": squareNormalizer(t)},
		Catalog:     f.catalog,
		Enqueuer:    f.enqueuer,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func weekRange() drivers.DateRange {
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	return drivers.DateRange{Start: end.AddDate(0, 0, -7), End: end}
}

func TestSyncSales(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes and enqueues commissions", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newIngestionFixture(t, ctrl)
		f.driver.SeedSales(
			[]byte(`{"id": "s-1", "total_money": {"amount": 1200}, "tenders": [{"payment_id": "ord-1"}], "created_at": "2026-03-05T12:00:00Z"}`),
			[]byte(`{"id": "s-2", "total_money": {"amount": 800}, "tenders": [{"payment_id": "ord-2"}], "created_at": "2026-03-06T09:30:00Z"}`),
		)

		var enqueued []*model.EnqueueRequest
		f.enqueuer.EXPECT().Enqueue(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, req *model.EnqueueRequest) (*model.Job, error) {
				enqueued = append(enqueued, req)
				return &model.Job{ID: "j-1"}, nil
			}).Times(2)

		result, err := f.svc.SyncSales(ctx, "org-1", "square", weekRange())
		require.NoError(t, err)
		assert.Equal(t, 2, result.Fetched)
		assert.Equal(t, 2, result.Normalized)
		assert.Equal(t, 0, result.Skipped)
		assert.Equal(t, 2, result.Enqueued)

		require.Len(t, enqueued, 2)
		assert.Equal(t, model.QueueSales, enqueued[0].Queue)
		assert.Equal(t, model.KindCalculateCommission, enqueued[0].Kind)

		payload, err := DecodeCommissionPayload(enqueued[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, "ord-1", payload.PaymentRef)
		assert.Equal(t, int64(1200), payload.Amount)
	})

	t.Run("malformed record is skipped not fatal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newIngestionFixture(t, ctrl)
		f.driver.SeedSales(
			[]byte(`{"total_money": {"amount": 1200}}`),
			[]byte(`{"id": "s-2", "total_money": {"amount": 800}, "tenders": [{"payment_id": "ord-2"}], "created_at": "2026-03-06T09:30:00Z"}`),
		)

		f.enqueuer.EXPECT().Enqueue(ctx, gomock.Any()).Return(&model.Job{ID: "j-1"}, nil)

		result, err := f.svc.SyncSales(ctx, "org-1", "square", weekRange())
		require.NoError(t, err)
		assert.Equal(t, 2, result.Fetched)
		assert.Equal(t, 1, result.Normalized)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 1, result.Enqueued)
	})

	t.Run("order without payment ref is not enqueued", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newIngestionFixture(t, ctrl)
		f.driver.SeedSales(
			[]byte(`{"id": "s-1", "total_money": {"amount": 1200}, "created_at": "2026-03-05T12:00:00Z"}`),
		)

		result, err := f.svc.SyncSales(ctx, "org-1", "square", weekRange())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Normalized)
		assert.Equal(t, 0, result.Enqueued)
	})

	t.Run("unknown vendor", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newIngestionFixture(t, ctrl)
		_, err := f.svc.SyncSales(ctx, "org-1", "clover", weekRange())
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestSyncCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts normalized items", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newIngestionFixture(t, ctrl)
		f.driver.SeedCatalog(
			[]byte(`{"id": "sq-margherita", "item_data": {"name": "Margherita", "price_money": {"amount": 1200}, "sku": "PZ-001"}}`),
			[]byte(`{"id": "sq-espresso", "item_data": {"name": "Espresso", "price_money": {"amount": 300}, "sku": "DR-001"}}`),
		)

		var items []*model.CatalogItem
		f.catalog.EXPECT().Upsert(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, item *model.CatalogItem) error {
				items = append(items, item)
				return nil
			}).Times(2)

		result, err := f.svc.SyncCatalog(ctx, "org-1", "square")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Normalized)

		require.Len(t, items, 2)
		assert.Equal(t, "sq-margherita", items[0].ExternalID)
		assert.Equal(t, "Margherita", items[0].Name)
		assert.Equal(t, int64(1200), items[0].Price)
		assert.Equal(t, "PZ-001", items[0].SKU)
		assert.Equal(t, "org-1", items[0].OrganizationID)
	})

	t.Run("malformed catalog record skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newIngestionFixture(t, ctrl)
		f.driver.SeedCatalog(
			[]byte(`not json`),
			[]byte(`{"id": "sq-espresso", "item_data": {"name": "Espresso", "price_money": {"amount": 300}}}`),
		)

		f.catalog.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)

		result, err := f.svc.SyncCatalog(ctx, "org-1", "square")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Normalized)
		assert.Equal(t, 1, result.Skipped)
	})
}

func TestSubscribeOrders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newIngestionFixture(t, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enqueued := make(chan *model.EnqueueRequest, 1)
	f.enqueuer.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.EnqueueRequest) (*model.Job, error) {
			enqueued <- req
			return &model.Job{ID: "j-1"}, nil
		})

	done := make(chan error, 1)
	go func() {
		done <- f.svc.SubscribeOrders(ctx, "org-1", "square")
	}()

	f.driver.EmitOrder([]byte(`{"id": "s-1", "total_money": {"amount": 500}, "tenders": [{"payment_id": "ord-9"}], "created_at": "2026-03-05T12:00:00Z"}`))

	select {
	case req := <-enqueued:
		payload, err := DecodeCommissionPayload(req.Payload)
		require.NoError(t, err)
		assert.Equal(t, "ord-9", payload.PaymentRef)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed commission enqueue")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription to stop")
	}
}

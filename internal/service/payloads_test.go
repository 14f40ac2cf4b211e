package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

func TestQueueForKind(t *testing.T) {
	tests := []struct {
		kind  model.JobKind
		queue model.QueueName
	}{
		{model.KindCalculateRecipeCost, model.QueueIntelligence},
		{model.KindCalculateCommission, model.QueueSales},
		{model.KindSyncSales, model.QueueIngestion},
		{model.KindSyncCatalog, model.QueueIngestion},
		{model.KindTriageTicket, model.QueueSupport},
	}
	for _, tt := range tests {
		queue, ok := QueueForKind(tt.kind)
		require.True(t, ok, "kind %s", tt.kind)
		assert.Equal(t, tt.queue, queue)
	}

	_, ok := QueueForKind(model.JobKind("bake-bread"))
	assert.False(t, ok)
}

func TestValidateEnqueue(t *testing.T) {
	t.Run("accepts registered kind with valid payload", func(t *testing.T) {
		err := ValidateEnqueue(&model.EnqueueRequest{
			Queue:   model.QueueIntelligence,
			Kind:    model.KindCalculateRecipeCost,
			Payload: json.RawMessage(`{"recipe_id": "r-1"}`),
		})
		require.NoError(t, err)
	})

	t.Run("rejects unknown queue", func(t *testing.T) {
		err := ValidateEnqueue(&model.EnqueueRequest{
			Queue: model.QueueName("billing"),
			Kind:  model.KindCalculateCommission,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("rejects kind on wrong queue", func(t *testing.T) {
		err := ValidateEnqueue(&model.EnqueueRequest{
			Queue:   model.QueueIngestion,
			Kind:    model.KindCalculateRecipeCost,
			Payload: json.RawMessage(`{"recipe_id": "r-1"}`),
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPayload, apperrors.GetCode(err))
	})
}

func TestDecodePayloads(t *testing.T) {
	t.Run("recipe cost requires recipe_id", func(t *testing.T) {
		_, err := DecodeRecipeCostPayload(json.RawMessage(`{}`))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPayload, apperrors.GetCode(err))
	})

	t.Run("commission requires payment_ref", func(t *testing.T) {
		_, err := DecodeCommissionPayload(json.RawMessage(`{"amount": 100}`))
		require.Error(t, err)
	})

	t.Run("commission accepts negative amount at decode time", func(t *testing.T) {
		p, err := DecodeCommissionPayload(json.RawMessage(`{"payment_ref": "ord-1", "amount": -5}`))
		require.NoError(t, err)
		assert.Equal(t, int64(-5), p.Amount)
	})

	t.Run("sales sync rejects inverted range", func(t *testing.T) {
		_, err := DecodeSalesSyncPayload(json.RawMessage(
			`{"vendor": "square", "start": "2026-03-08T00:00:00Z", "end": "2026-03-01T00:00:00Z"}`))
		require.Error(t, err)
	})

	t.Run("sales sync requires vendor", func(t *testing.T) {
		_, err := DecodeSalesSyncPayload(json.RawMessage(`{}`))
		require.Error(t, err)
	})

	t.Run("ticket requires subject", func(t *testing.T) {
		_, err := DecodeTicketPayload(json.RawMessage(`{"body": "help"}`))
		require.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeCatalogSyncPayload(json.RawMessage(`nope`))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPayload, apperrors.GetCode(err))
	})
}

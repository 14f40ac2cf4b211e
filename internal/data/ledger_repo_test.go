package data_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-os/sous-core/internal/data"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/testutil"
)

func TestLedgerRepoCreate(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewLedgerRepo(db)

		t.Run("posts an entry", func(t *testing.T) {
			created, err := repo.Create(ctx, &model.LedgerEntry{
				OrganizationID: "org-1",
				ReferenceID:    "pay-1",
				Amount:         250,
				Kind:           model.LedgerEntryCommission,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.EqualValues(t, 250, created.Amount)
			assert.False(t, created.CreatedAt.IsZero())
		})

		t.Run("duplicate reference is rejected", func(t *testing.T) {
			_, err := repo.Create(ctx, &model.LedgerEntry{
				OrganizationID: "org-1",
				ReferenceID:    "pay-1",
				Amount:         999,
				Kind:           model.LedgerEntryCommission,
			})
			assert.ErrorIs(t, err, data.ErrLedgerEntryExists)
		})

		t.Run("same reference in another organization is a separate posting", func(t *testing.T) {
			_, err := repo.Create(ctx, &model.LedgerEntry{
				OrganizationID: "org-2",
				ReferenceID:    "pay-1",
				Amount:         100,
				Kind:           model.LedgerEntryCommission,
			})
			assert.NoError(t, err)
		})

		t.Run("rejects nil entry", func(t *testing.T) {
			_, err := repo.Create(ctx, nil)
			assert.Error(t, err)
		})
	})
}

func TestLedgerRepoGetByReference(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewLedgerRepo(db)

		created, err := repo.Create(ctx, &model.LedgerEntry{
			OrganizationID: "org-1",
			ReferenceID:    "pay-7",
			Amount:         1200,
			Kind:           model.LedgerEntryCommission,
		})
		require.NoError(t, err)

		fetched, err := repo.GetByReference(ctx, "org-1", "pay-7")
		require.NoError(t, err)
		assert.Equal(t, created.ID, fetched.ID)
		assert.EqualValues(t, 1200, fetched.Amount)

		_, err = repo.GetByReference(ctx, "org-1", "pay-missing")
		assert.ErrorIs(t, err, data.ErrLedgerEntryNotFound)

		// Postings are tenant scoped.
		_, err = repo.GetByReference(ctx, "org-2", "pay-7")
		assert.ErrorIs(t, err, data.ErrLedgerEntryNotFound)
	})
}

func TestLedgerRepoListByOrganization(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewLedgerRepo(db)

		for _, ref := range []string{"pay-1", "pay-2", "pay-3"} {
			_, err := repo.Create(ctx, &model.LedgerEntry{
				OrganizationID: "org-1",
				ReferenceID:    ref,
				Amount:         100,
				Kind:           model.LedgerEntryCommission,
			})
			require.NoError(t, err)
		}
		_, err := repo.Create(ctx, &model.LedgerEntry{
			OrganizationID: "org-2",
			ReferenceID:    "pay-1",
			Amount:         100,
			Kind:           model.LedgerEntryCommission,
		})
		require.NoError(t, err)

		entries, err := repo.ListByOrganization(ctx, "org-1", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
		for _, entry := range entries {
			assert.Equal(t, "org-1", entry.OrganizationID)
		}

		limited, err := repo.ListByOrganization(ctx, "org-1", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestAttributionRepoGetByOrganization(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewAttributionRepo(db)

		_, err := db.ExecContext(ctx, `
			INSERT INTO commission_attributions(organization_id, salesman_id, bps)
			VALUES ('org-1', 'rep-9', 250)
		`)
		require.NoError(t, err)

		attr, err := repo.GetByOrganization(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, "rep-9", attr.SalesmanID)
		assert.Equal(t, 250, attr.Bps)

		_, err = repo.GetByOrganization(ctx, "org-unconfigured")
		assert.ErrorIs(t, err, data.ErrAttributionNotFound)
	})
}

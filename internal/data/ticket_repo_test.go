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

func TestTicketRepo(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewTicketRepo(db)

		t.Run("stores a triaged report", func(t *testing.T) {
			created, err := repo.Create(ctx, &model.Ticket{
				OrganizationID: "org-1",
				Subject:        "Kitchen display frozen",
				Body:           "The screen by the pass shows stale orders",
				Severity:       "high",
				Team:           "hardware",
			})
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, "hardware", created.Team)
			assert.False(t, created.CreatedAt.IsZero())
		})

		t.Run("rejects nil ticket", func(t *testing.T) {
			_, err := repo.Create(ctx, nil)
			assert.Error(t, err)
		})

		t.Run("list is tenant scoped and bounded", func(t *testing.T) {
			_, err := repo.Create(ctx, &model.Ticket{
				OrganizationID: "org-2",
				Subject:        "Complete outage",
				Severity:       "critical",
				Team:           "general",
			})
			require.NoError(t, err)

			ownTickets, err := repo.ListByOrganization(ctx, "org-1", 10)
			require.NoError(t, err)
			require.Len(t, ownTickets, 1)
			assert.Equal(t, "Kitchen display frozen", ownTickets[0].Subject)

			none, err := repo.ListByOrganization(ctx, "org-3", 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	})
}

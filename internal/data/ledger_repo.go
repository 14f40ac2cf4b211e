package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sous-os/sous-core/internal/domain/model"
)

// LedgerRepo provides database operations for append-only ledger postings.
type LedgerRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

const ledgerColumns = `id, organization_id, reference_id, amount, kind, created_at`

// Create inserts a new ledger entry. Entries are immutable; a second insert
// for the same (organization_id, reference_id) returns ErrLedgerEntryExists.
func (r *LedgerRepo) Create(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error) {
	if entry == nil {
		return nil, errors.New("ledger entry is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO ledger_entries(organization_id, reference_id, amount, kind, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+ledgerColumns,
		entry.OrganizationID, entry.ReferenceID, entry.Amount, entry.Kind,
		r.timeProvider.Now().UTC(),
	)

	created, err := scanLedgerEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrLedgerEntryExists
		}
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return created, nil
}

// GetByReference retrieves the entry posted for a reference within an organization.
func (r *LedgerRepo) GetByReference(ctx context.Context, organizationID, referenceID string) (*model.LedgerEntry, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE organization_id = $1 AND reference_id = $2
	`, organizationID, referenceID)

	entry, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return entry, nil
}

// ListByOrganization returns an organization's most recent postings.
func (r *LedgerRepo) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*model.LedgerEntry
	for rows.Next() {
		entry, scanErr := scanLedgerEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", rowsErr)
	}
	return entries, nil
}

func scanLedgerEntry(scanner jobRowScanner) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	if err := scanner.Scan(
		&entry.ID,
		&entry.OrganizationID,
		&entry.ReferenceID,
		&entry.Amount,
		&entry.Kind,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return &entry, nil
}

package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// CatalogRepo persists normalized catalog items handed over by ingestion.
type CatalogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// Upsert inserts or refreshes a catalog item keyed by its vendor identity
// within the organization.
func (r *CatalogRepo) Upsert(ctx context.Context, item *model.CatalogItem) error {
	if item == nil {
		return errors.New("catalog item is required")
	}
	if item.ExternalID == "" || item.OrganizationID == "" {
		return errors.New("catalog item external_id and organization_id are required")
	}

	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO catalog_items(organization_id, external_id, name, price, sku, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (organization_id, external_id) DO UPDATE
		SET name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    sku = EXCLUDED.sku,
		    updated_at = EXCLUDED.updated_at
	`, item.OrganizationID, item.ExternalID, item.Name, item.Price, item.SKU,
		r.timeProvider.Now().UTC()); err != nil {
		return fmt.Errorf("upsert catalog item: %w", err)
	}
	return nil
}

// AttributionRepo resolves an organization's commission attribution.
type AttributionRepo struct {
	DB *sql.DB
}

// NewAttributionRepo creates a new AttributionRepo.
func NewAttributionRepo(db *sql.DB) *AttributionRepo {
	return &AttributionRepo{DB: db}
}

// GetByOrganization retrieves the commission attribution configured for an
// organization.
func (r *AttributionRepo) GetByOrganization(ctx context.Context, organizationID string) (*model.CommissionAttribution, error) {
	var attr model.CommissionAttribution
	err := r.DB.QueryRowContext(ctx, `
		SELECT organization_id, salesman_id, bps
		FROM commission_attributions
		WHERE organization_id = $1
	`, organizationID).Scan(&attr.OrganizationID, &attr.SalesmanID, &attr.Bps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttributionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get commission attribution: %w", err)
	}
	return &attr, nil
}

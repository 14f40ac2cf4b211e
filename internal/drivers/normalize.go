package drivers

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/sous-os/sous-core/internal/domain/model"
	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// RecordMapping declares where canonical fields live in a vendor record, as
// JMESPath expressions. Sale and catalog records have their own external-id
// paths since vendors rarely shape the two the same way. Empty optional
// expressions are skipped.
type RecordMapping struct {
	OrderExternalID   string
	Total             string // sales only; minor units or decimal major units
	PaymentRef        string // sales only, optional
	PlacedAt          string // sales only; RFC 3339
	CatalogExternalID string
	Name              string // catalog only
	Price             string // catalog only
	SKU               string // catalog only, optional
}

// Normalizer translates raw vendor records into canonical shapes using a
// per-vendor field mapping. A normalization error means the record is
// malformed; callers decide whether that skips the record or fails the job.
type Normalizer struct {
	vendor  string
	mapping RecordMapping
	exprs   map[string]string
}

// NewNormalizer validates the mapping's expressions up front so a bad
// expression fails at construction, not per record.
func NewNormalizer(vendor string, mapping RecordMapping) (*Normalizer, error) {
	exprs := map[string]string{
		"order_external_id":   mapping.OrderExternalID,
		"total":               mapping.Total,
		"payment_ref":         mapping.PaymentRef,
		"placed_at":           mapping.PlacedAt,
		"catalog_external_id": mapping.CatalogExternalID,
		"name":                mapping.Name,
		"price":               mapping.Price,
		"sku":                 mapping.SKU,
	}

	for field, expr := range exprs {
		if expr == "" {
			delete(exprs, field)
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile %s expression for vendor %s: %w", field, vendor, err)
		}
	}

	return &Normalizer{vendor: vendor, mapping: mapping, exprs: exprs}, nil
}

// Order normalizes one raw vendor sale record.
func (n *Normalizer) Order(organizationID string, raw []byte) (*model.Order, error) {
	doc, err := n.decode(raw)
	if err != nil {
		return nil, err
	}

	externalID, err := n.stringField(doc, "order_external_id")
	if err != nil {
		return nil, err
	}
	total, err := n.amountField(doc, "total")
	if err != nil {
		return nil, err
	}
	placedAt, err := n.timeField(doc, "placed_at")
	if err != nil {
		return nil, err
	}
	paymentRef, _ := n.optionalString(doc, "payment_ref")

	return &model.Order{
		ExternalID:     externalID,
		OrganizationID: organizationID,
		Total:          total,
		PaymentRef:     paymentRef,
		PlacedAt:       placedAt,
	}, nil
}

// CatalogItem normalizes one raw vendor catalog record.
func (n *Normalizer) CatalogItem(organizationID string, raw []byte) (*model.CatalogItem, error) {
	doc, err := n.decode(raw)
	if err != nil {
		return nil, err
	}

	externalID, err := n.stringField(doc, "catalog_external_id")
	if err != nil {
		return nil, err
	}
	name, err := n.stringField(doc, "name")
	if err != nil {
		return nil, err
	}
	price, err := n.amountField(doc, "price")
	if err != nil {
		return nil, err
	}
	sku, _ := n.optionalString(doc, "sku")

	return &model.CatalogItem{
		ExternalID:     externalID,
		OrganizationID: organizationID,
		Name:           name,
		Price:          price,
		SKU:            sku,
	}, nil
}

func (n *Normalizer) decode(raw []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.InvalidPayloadf("vendor %s record is not valid JSON: %v", n.vendor, err)
	}
	return doc, nil
}

func (n *Normalizer) search(doc any, field string) (any, bool) {
	expr, ok := n.exprs[field]
	if !ok {
		return nil, false
	}
	result, err := jmespath.Search(expr, doc)
	if err != nil || result == nil {
		return nil, false
	}
	return result, true
}

func (n *Normalizer) stringField(doc any, field string) (string, error) {
	result, ok := n.search(doc, field)
	if !ok {
		return "", apperrors.InvalidPayloadf("vendor %s record missing %s", n.vendor, field)
	}
	s, ok := result.(string)
	if !ok || s == "" {
		return "", apperrors.InvalidPayloadf("vendor %s record has non-string %s", n.vendor, field)
	}
	return s, nil
}

func (n *Normalizer) optionalString(doc any, field string) (string, bool) {
	result, ok := n.search(doc, field)
	if !ok {
		return "", false
	}
	s, ok := result.(string)
	return s, ok
}

// amountField accepts integer minor units directly; a fractional value is
// treated as major units and scaled by 100.
func (n *Normalizer) amountField(doc any, field string) (int64, error) {
	result, ok := n.search(doc, field)
	if !ok {
		return 0, apperrors.InvalidPayloadf("vendor %s record missing %s", n.vendor, field)
	}
	f, ok := result.(float64)
	if !ok {
		return 0, apperrors.InvalidPayloadf("vendor %s record has non-numeric %s", n.vendor, field)
	}
	if f < 0 {
		return 0, apperrors.InvalidPayloadf("vendor %s record has negative %s", n.vendor, field)
	}
	if f != math.Trunc(f) {
		f = math.Round(f * 100)
	}
	return int64(f), nil
}

func (n *Normalizer) timeField(doc any, field string) (time.Time, error) {
	s, err := n.stringField(doc, field)
	if err != nil {
		return time.Time{}, err
	}
	t, parseErr := time.Parse(time.RFC3339, s)
	if parseErr != nil {
		return time.Time{}, apperrors.InvalidPayloadf("vendor %s record has invalid %s: %v", n.vendor, field, parseErr)
	}
	return t.UTC(), nil
}

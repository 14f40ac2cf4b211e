// Package drivers defines the vendor integration ports for point-of-sale and
// payment providers, plus a registry for resolving a driver by vendor name.
package drivers

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/sous-os/sous-core/internal/errors"
)

// DateRange bounds a sales fetch. End is exclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CreateOrderRequest carries a push of an order into the vendor system.
type CreateOrderRequest struct {
	OrganizationID string
	ExternalRef    string
	Total          int64
	Lines          []OrderLine
}

// OrderLine is one item of an outbound order.
type OrderLine struct {
	CatalogExternalID string
	Quantity          int
}

// POSDriver integrates one point-of-sale vendor. Fetch methods return raw
// vendor records; normalization to canonical shapes happens in the ingestion
// layer so a malformed record never fails a whole sync.
type POSDriver interface {
	// Name identifies the vendor.
	Name() string
	// FetchSales returns raw vendor sale records in the range.
	FetchSales(ctx context.Context, organizationID string, rng DateRange) ([][]byte, error)
	// FetchCatalog returns raw vendor catalog records.
	FetchCatalog(ctx context.Context, organizationID string) ([][]byte, error)
	// CreateOrder pushes an order into the vendor system and returns its
	// vendor-assigned identifier.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error)
	// SubscribeToOrders streams raw vendor order records until ctx is done.
	SubscribeToOrders(ctx context.Context, organizationID string) (<-chan []byte, error)
}

// SubscriptionRequest describes a recurring billing setup.
type SubscriptionRequest struct {
	CustomerID string
	PlanID     string
}

// PaymentIntentRequest describes a one-off charge. Amount is minor units.
type PaymentIntentRequest struct {
	CustomerID string
	Amount     int64
	Currency   string
}

// PaymentDriver integrates one payment provider.
type PaymentDriver interface {
	Name() string
	CreateCustomer(ctx context.Context, organizationID, email string) (string, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (string, error)
}

// Registry resolves drivers by vendor name. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	pos      map[string]POSDriver
	payments map[string]PaymentDriver
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		pos:      make(map[string]POSDriver),
		payments: make(map[string]PaymentDriver),
	}
}

// RegisterPOS adds or replaces a POS driver.
func (r *Registry) RegisterPOS(d POSDriver) {
	if d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos[d.Name()] = d
}

// RegisterPayment adds or replaces a payment driver.
func (r *Registry) RegisterPayment(d PaymentDriver) {
	if d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[d.Name()] = d
}

// POS returns the POS driver for a vendor.
func (r *Registry) POS(vendor string) (POSDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.pos[vendor]
	if !ok {
		return nil, apperrors.NotFoundf("no POS driver registered for vendor %q", vendor)
	}
	return d, nil
}

// Payment returns the payment driver for a vendor.
func (r *Registry) Payment(vendor string) (PaymentDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.payments[vendor]
	if !ok {
		return nil, apperrors.NotFoundf("no payment driver registered for vendor %q", vendor)
	}
	return d, nil
}

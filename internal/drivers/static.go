package drivers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StaticPOSDriver serves canned vendor records from memory. It backs dev mode
// and tests; production deployments register real vendor drivers instead.
type StaticPOSDriver struct {
	name string

	mu      sync.Mutex
	sales   [][]byte
	catalog [][]byte
	orders  []CreateOrderRequest
	stream  chan []byte
}

// NewStaticPOSDriver creates a StaticPOSDriver with the given vendor name.
func NewStaticPOSDriver(name string) *StaticPOSDriver {
	return &StaticPOSDriver{
		name:   name,
		stream: make(chan []byte, 16),
	}
}

// Name implements POSDriver.
func (d *StaticPOSDriver) Name() string { return d.name }

// SeedSales adds raw sale records returned by FetchSales.
func (d *StaticPOSDriver) SeedSales(records ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sales = append(d.sales, records...)
}

// SeedCatalog adds raw catalog records returned by FetchCatalog.
func (d *StaticPOSDriver) SeedCatalog(records ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.catalog = append(d.catalog, records...)
}

// FetchSales implements POSDriver. The range is ignored; static data has no
// timeline.
func (d *StaticPOSDriver) FetchSales(_ context.Context, _ string, _ DateRange) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.sales))
	copy(out, d.sales)
	return out, nil
}

// FetchCatalog implements POSDriver.
func (d *StaticPOSDriver) FetchCatalog(_ context.Context, _ string) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.catalog))
	copy(out, d.catalog)
	return out, nil
}

// CreateOrder implements POSDriver. Orders are recorded for inspection.
func (d *StaticPOSDriver) CreateOrder(_ context.Context, req CreateOrderRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orders = append(d.orders, req)
	return fmt.Sprintf("%s-order-%d", d.name, len(d.orders)), nil
}

// CreatedOrders returns the orders pushed through CreateOrder.
func (d *StaticPOSDriver) CreatedOrders() []CreateOrderRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CreateOrderRequest, len(d.orders))
	copy(out, d.orders)
	return out
}

// EmitOrder pushes a raw record to active SubscribeToOrders streams.
func (d *StaticPOSDriver) EmitOrder(record []byte) {
	d.stream <- record
}

// SubscribeToOrders implements POSDriver.
func (d *StaticPOSDriver) SubscribeToOrders(ctx context.Context, _ string) (<-chan []byte, error) {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-d.stream:
				if !ok {
					return
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StaticPaymentDriver fabricates provider identifiers without calling any
// external API.
type StaticPaymentDriver struct {
	name string

	mu       sync.Mutex
	canceled []string
}

// NewStaticPaymentDriver creates a StaticPaymentDriver with the given vendor name.
func NewStaticPaymentDriver(name string) *StaticPaymentDriver {
	return &StaticPaymentDriver{name: name}
}

// Name implements PaymentDriver.
func (d *StaticPaymentDriver) Name() string { return d.name }

// CreateCustomer implements PaymentDriver.
func (d *StaticPaymentDriver) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	return "cus_" + uuid.NewString(), nil
}

// CreateSubscription implements PaymentDriver.
func (d *StaticPaymentDriver) CreateSubscription(_ context.Context, _ SubscriptionRequest) (string, error) {
	return "sub_" + uuid.NewString(), nil
}

// CancelSubscription implements PaymentDriver.
func (d *StaticPaymentDriver) CancelSubscription(_ context.Context, subscriptionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled = append(d.canceled, subscriptionID)
	return nil
}

// CanceledSubscriptions returns subscription IDs passed to CancelSubscription.
func (d *StaticPaymentDriver) CanceledSubscriptions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.canceled))
	copy(out, d.canceled)
	return out
}

// CreatePaymentIntent implements PaymentDriver.
func (d *StaticPaymentDriver) CreatePaymentIntent(_ context.Context, req PaymentIntentRequest) (string, error) {
	if req.Amount <= 0 {
		return "", fmt.Errorf("payment intent amount must be positive, got %d", req.Amount)
	}
	return "pi_" + uuid.NewString(), nil
}

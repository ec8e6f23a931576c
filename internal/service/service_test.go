package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

type harness struct {
	store     *store.Store
	builder   *OrderBuilder
	orders    *OrderService
	lifecycle *Lifecycle
	payments  *PaymentService
	publisher *recordingPublisher
}

func newHarness(t *testing.T, idempotency IdempotencyStore) *harness {
	t.Helper()
	return harnessOn(storetest.New(t), idempotency)
}

func harnessOn(s *store.Store, idempotency IdempotencyStore) *harness {
	builder := NewOrderBuilder(NewPricingResolver(), NewInventoryLedger())
	builder.now = func() time.Time { return fixedNow }
	lifecycle := NewLifecycle(s)
	lifecycle.now = func() time.Time { return fixedNow.Add(time.Hour) }
	publisher := &recordingPublisher{}

	return &harness{
		store:     s,
		builder:   builder,
		orders:    NewOrderService(s, NewCoordinator(s, builder), idempotency, publisher, time.Hour),
		lifecycle: lifecycle,
		payments:  NewPaymentService(lifecycle, publisher),
		publisher: publisher,
	}
}

func (h *harness) place(t *testing.T, clientID int64, in PlaceOrderInput) (*PlacedOrder, error) {
	t.Helper()
	placed, _, err := h.orders.PlaceOrder(context.Background(), clientID, "", in)
	return placed, err
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *service.Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind, "unexpected kind: %v", err)
	return e
}

type recordingPublisher struct {
	mu      sync.Mutex
	placed  []*models.OrderPlacedEvent
	changed []*models.OrderStatusChangedEvent
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return nil
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, event)
	return nil
}

func (p *recordingPublisher) counts() (placed, changed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.placed), len(p.changed)
}

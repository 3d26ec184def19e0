package payment

import (
	"context"
	"errors"
	"sync"
)

// ErrMissingOrderContext means neither the return URL nor the stored pending
// order names an order to check.
var ErrMissingOrderContext = errors.New("no order id in request or pending order")

// PendingOrders remembers the order a user is currently paying for.
type PendingOrders interface {
	Save(ctx context.Context, userID, orderID string) error
	// Get returns "" when the user has no pending order.
	Get(ctx context.Context, userID string) (string, error)
	Clear(ctx context.Context, userID string) error
}

// MemoryPendingOrders keeps pending orders in process memory.
type MemoryPendingOrders struct {
	mu     sync.RWMutex
	orders map[string]string
}

func NewMemoryPendingOrders() *MemoryPendingOrders {
	return &MemoryPendingOrders{orders: make(map[string]string)}
}

func (m *MemoryPendingOrders) Save(_ context.Context, userID, orderID string) error {
	m.mu.Lock()
	m.orders[userID] = orderID
	m.mu.Unlock()
	return nil
}

func (m *MemoryPendingOrders) Get(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[userID], nil
}

func (m *MemoryPendingOrders) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.orders, userID)
	m.mu.Unlock()
	return nil
}

// ResolveOrder picks the order to check: the id from the return URL first,
// then the user's stored pending order.
func ResolveOrder(ctx context.Context, userID, queryOrderID string, pending PendingOrders) (string, error) {
	if queryOrderID != "" {
		return queryOrderID, nil
	}
	if pending == nil {
		return "", ErrMissingOrderContext
	}
	orderID, err := pending.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if orderID == "" {
		return "", ErrMissingOrderContext
	}
	return orderID, nil
}

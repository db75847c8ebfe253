// Package memory holds in-process stores used when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikelady/showcase/internal/services"
)

// Compile-time interface compliance checks
var (
	_ services.PublicationStore = (*PublicationStore)(nil)
	_ services.OrderLookup      = (*OrderLookup)(nil)
)

// PublicationStore is an in-memory implementation of services.PublicationStore.
// It enforces the same one-active-record-per-order rule as the database index.
// Records do not survive a restart.
type PublicationStore struct {
	mu      sync.Mutex
	records map[string]*services.Publication
}

// NewPublicationStore creates a new in-memory publication store
func NewPublicationStore() *PublicationStore {
	return &PublicationStore{records: make(map[string]*services.Publication)}
}

func (m *PublicationStore) hasActive(orderID, exceptID string) bool {
	for _, r := range m.records {
		if r.OrderID == orderID && !r.Deleted && r.ID != exceptID {
			return true
		}
	}
	return false
}

// CreatePublication stores a copy of p under a new id.
func (m *PublicationStore) CreatePublication(ctx context.Context, p *services.Publication) (*services.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.State == services.StateDraft || !p.State.Valid() {
		return nil, services.ErrInvalidTransition
	}
	if m.hasActive(p.OrderID, "") {
		return nil, services.ErrDuplicatePublication
	}

	saved := p.Clone()
	saved.ID = uuid.New().String()
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	m.records[saved.ID] = saved
	return saved.Clone(), nil
}

// GetPublication retrieves a record by id
func (m *PublicationStore) GetPublication(ctx context.Context, id string) (*services.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[id]; ok {
		return r.Clone(), nil
	}
	return nil, services.ErrPublicationNotFound
}

// GetActivePublicationByOrder returns nil, nil when the order has no active record.
func (m *PublicationStore) GetActivePublicationByOrder(ctx context.Context, orderID string) (*services.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.OrderID == orderID && !r.Deleted {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

// UpdatePublicationState applies p only while the stored state equals from.
func (m *PublicationStore) UpdatePublicationState(ctx context.Context, p *services.Publication, from services.PublicationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[p.ID]
	if !ok {
		return services.ErrPublicationNotFound
	}
	if current.State != from || current.Deleted {
		return services.ErrInvalidTransition
	}

	current.State = p.State
	current.ExternalPostID = p.ExternalPostID
	current.Permalink = p.Permalink
	current.FailureReason = p.FailureReason
	current.TakedownReason = p.TakedownReason
	current.PublishedAt = p.Clone().PublishedAt
	current.TakenDownAt = p.Clone().TakenDownAt
	current.UpdatedAt = time.Now()
	p.UpdatedAt = current.UpdatedAt
	return nil
}

// SetPublicationDeleted sets or clears the soft-delete flags.
func (m *PublicationStore) SetPublicationDeleted(ctx context.Context, id string, deletedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[id]
	if !ok {
		return services.ErrPublicationNotFound
	}
	if deletedAt == nil && current.Deleted && m.hasActive(current.OrderID, id) {
		return services.ErrDuplicatePublication
	}

	current.Deleted = deletedAt != nil
	current.DeletedAt = nil
	if deletedAt != nil {
		t := *deletedAt
		current.DeletedAt = &t
	}
	current.UpdatedAt = time.Now()
	return nil
}

// ListPublications returns matching records newest first.
func (m *PublicationStore) ListPublications(ctx context.Context, filter services.ListFilter) ([]*services.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filter = filter.Normalize()
	var out []*services.Publication
	for _, r := range m.records {
		if filter.OrderID != "" && r.OrderID != filter.OrderID {
			continue
		}
		if filter.State != "" && r.State != filter.State {
			continue
		}
		if r.Deleted && !filter.IncludeDeleted {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// OrderLookup is an in-memory services.OrderLookup.
type OrderLookup struct {
	mu     sync.Mutex
	orders map[string]*services.Order
}

// NewOrderLookup creates a lookup seeded with orders.
func NewOrderLookup(orders ...*services.Order) *OrderLookup {
	m := &OrderLookup{orders: make(map[string]*services.Order)}
	for _, o := range orders {
		m.Put(o)
	}
	return m
}

// Put adds or replaces an order.
func (m *OrderLookup) Put(o *services.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	m.orders[o.ID] = &c
}

// GetOrder returns nil, nil for unknown orders.
func (m *OrderLookup) GetOrder(ctx context.Context, orderID string) (*services.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

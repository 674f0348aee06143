package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/billforge/billforge/internal/domain/charge"
	"github.com/billforge/billforge/internal/domain/invoice"
	"github.com/billforge/billforge/internal/domain/meter"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// InMemoryMeterStore implements meter.Repository for tests
type InMemoryMeterStore struct {
	mu     sync.RWMutex
	meters map[string]*meter.Meter
}

func NewInMemoryMeterStore() *InMemoryMeterStore {
	return &InMemoryMeterStore{meters: make(map[string]*meter.Meter)}
}

func (s *InMemoryMeterStore) CreateMeter(ctx context.Context, m *meter.Meter) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meters[m.ID]; ok {
		return ierr.NewErrorf("meter %s already exists", m.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.meters[m.ID] = m
	return nil
}

func (s *InMemoryMeterStore) GetMeter(ctx context.Context, id string) (*meter.Meter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meters[id]
	if !ok || m.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("meter %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return m, nil
}

func (s *InMemoryMeterStore) GetMeterByCode(ctx context.Context, code string) (*meter.Meter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.meters {
		if m.Code == code && m.Status != types.StatusDeleted {
			return m, nil
		}
	}
	return nil, ierr.NewErrorf("meter %s not found", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryMeterStore) ListMeters(ctx context.Context) ([]*meter.Meter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meters := make([]*meter.Meter, 0, len(s.meters))
	for _, m := range s.meters {
		if m.Status != types.StatusDeleted {
			meters = append(meters, m)
		}
	}
	return meters, nil
}

func (s *InMemoryMeterStore) DisableMeter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meters[id]
	if !ok || m.Status == types.StatusDeleted {
		return ierr.NewErrorf("meter %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	m.Status = types.StatusArchived
	return nil
}

// InMemoryChargeStore implements charge.Repository for tests
type InMemoryChargeStore struct {
	mu      sync.RWMutex
	charges map[string]*charge.Charge
}

func NewInMemoryChargeStore() *InMemoryChargeStore {
	return &InMemoryChargeStore{charges: make(map[string]*charge.Charge)}
}

func (s *InMemoryChargeStore) CreateCharge(ctx context.Context, c *charge.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.charges[c.ID]; ok {
		return ierr.NewErrorf("charge %s already exists", c.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.charges[c.ID] = c
	return nil
}

func (s *InMemoryChargeStore) GetCharge(ctx context.Context, id string) (*charge.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.charges[id]
	if !ok || c.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("charge %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (s *InMemoryChargeStore) ListChargesByPlan(ctx context.Context, planID string) ([]*charge.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var charges []*charge.Charge
	for _, c := range s.charges {
		if c.PlanID == planID && c.Status == types.StatusPublished {
			charges = append(charges, c)
		}
	}
	sortChargesByID(charges)
	return charges, nil
}

func (s *InMemoryChargeStore) DeleteCharge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.charges[id]
	if !ok || c.Status == types.StatusDeleted {
		return ierr.NewErrorf("charge %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	c.Status = types.StatusDeleted
	return nil
}

func sortChargesByID(charges []*charge.Charge) {
	sort.Slice(charges, func(i, j int) bool {
		return charges[i].ID < charges[j].ID
	})
}

// InMemorySubscriptionStore implements subscription.Repository for tests
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*subscription.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{subs: make(map[string]*subscription.Subscription)}
}

func (s *InMemorySubscriptionStore) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; ok {
		return ierr.NewErrorf("subscription %s already exists", sub.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.subs[sub.ID] = sub
	return nil
}

func (s *InMemorySubscriptionStore) GetSubscription(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok || sub.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("subscription %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) ListActiveSubscriptions(ctx context.Context) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subs []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.Status == types.StatusPublished {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *InMemorySubscriptionStore) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ierr.NewErrorf("subscription %s not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	s.subs[sub.ID] = sub
	return nil
}

// InMemoryInvoiceStore implements invoice.Repository for tests
type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*invoice.Invoice
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{invoices: make(map[string]*invoice.Invoice)}
}

func (s *InMemoryInvoiceStore) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; ok {
		return ierr.NewErrorf("invoice %s already exists", inv.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	s.invoices[inv.ID] = inv
	return nil
}

func (s *InMemoryInvoiceStore) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, ierr.NewErrorf("invoice %s not found", id).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) ListInvoicesBySubscription(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var invoices []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.SubscriptionID == subscriptionID {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

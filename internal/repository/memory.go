package repository

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/models"
)

// MemoryStore keeps everything in process. It backs the "memory" storage
// driver used for local development and the handler tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]models.Product
	order    []string // product ids in insertion order
	orders   map[string]models.Order
	users    map[string]models.User // by email
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		orders:   make(map[string]models.Order),
		users:    make(map[string]models.User),
	}
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		products = append(products, s.products[id])
	}
	return products, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; exists {
		return ErrDuplicate
	}
	s.products[p.ID] = *p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	update.Apply(&p)
	s.products[id] = p
	return &p, nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) ReserveStock(_ context.Context, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything first so a failure leaves stock untouched. Quantities
	// are summed per product in case the same id appears twice.
	wanted := make(map[string]int)
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return &ItemError{Item: item, Err: ErrNotFound}
		}
		if !p.Available {
			return &ItemError{Item: item, Err: ErrProductUnavailable}
		}
		wanted[item.ProductID] += item.Quantity
		if p.Stock < wanted[item.ProductID] {
			return &ItemError{Item: item, Err: ErrInsufficientStock}
		}
	}

	for id, qty := range wanted {
		p := s.products[id]
		p.Stock -= qty
		if p.Stock <= 0 {
			p.Available = false
		}
		s.products[id] = p
	}
	return nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return ErrDuplicate
	}
	stored := *o
	stored.Items = append([]models.OrderItem(nil), o.Items...)
	s.orders[o.ID] = stored
	return nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrStatusChanged
	}
	o.Status = to
	s.orders[id] = o
	return &o, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Email]; exists {
		return ErrDuplicate
	}
	s.users[u.Email] = *u
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/pricing"
)

// ErrNotFound indicates the requested product could not be located.
var ErrNotFound = errors.New("product not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Product is a catalog entry. Prices are tax-exclusive minor units.
type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category,omitempty"`
	Price       pricing.Money `json:"price"`
	Stock       int           `json:"stock"`
	ImageURL    string        `json:"imageUrl,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

//go:embed seed_products.json
var seedProducts []byte

// Store is the volatile product catalog, seeded from embedded fixtures.
type Store struct {
	Now func() time.Time

	mu       sync.RWMutex
	products map[string]Product
	order    []string
}

// NewStore builds a store pre-populated with the embedded demo catalog.
func NewStore(now func() time.Time) (*Store, error) {
	s := &Store{Now: now, products: make(map[string]Product)}
	var seeded []Product
	if err := json.Unmarshal(seedProducts, &seeded); err != nil {
		return nil, fmt.Errorf("catalog: decode seed data: %w", err)
	}
	ts := s.now()
	for _, p := range seeded {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt = ts
		p.UpdatedAt = ts
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s, nil
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Product returns the product with the given id.
func (s *Store) Product(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// List returns products in insertion order, optionally filtered by a
// case-insensitive name/description query and a category.
func (s *Store) List(query, category string) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories returns the distinct category labels in use.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, id := range s.order {
		p := s.products[id]
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// Create inserts a new product and returns it with generated metadata.
func (s *Store) Create(p Product) (Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if p.Price < 0 {
		return Product{}, fmt.Errorf("price must be non-negative: %w", ErrInvalidInput)
	}
	if p.Stock < 0 {
		p.Stock = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.products[p.ID]; exists {
		return Product{}, fmt.Errorf("duplicate product id %s: %w", p.ID, ErrInvalidInput)
	}
	ts := s.now()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	s.products[p.ID] = p
	s.order = append(s.order, p.ID)
	return p, nil
}

// Update replaces mutable fields of an existing product.
func (s *Store) Update(id string, upd Product) (Product, error) {
	if upd.Price < 0 {
		return Product{}, fmt.Errorf("price must be non-negative: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	if strings.TrimSpace(upd.Name) != "" {
		p.Name = upd.Name
	}
	if upd.Description != "" {
		p.Description = upd.Description
	}
	if upd.Category != "" {
		p.Category = upd.Category
	}
	if upd.ImageURL != "" {
		p.ImageURL = upd.ImageURL
	}
	p.Price = upd.Price
	if upd.Stock >= 0 {
		p.Stock = upd.Stock
	}
	p.UpdatedAt = s.now()
	s.products[id] = p
	return p, nil
}

// Delete removes a product. Unknown ids return ErrNotFound.
func (s *Store) Delete(id string) error {
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

// Count returns the number of products in the catalog.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

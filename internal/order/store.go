package order

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

var (
	// ErrNotFound indicates the requested order could not be located.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for disallowed status changes.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Order status values.
const (
	StatusPaid     = "PAID"
	StatusCanceled = "CANCELED"
	StatusRefunded = "REFUNDED"
)

// Order is a settled checkout.
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId,omitempty"`
	AnonID        string          `json:"-"`
	Items         []cart.Item     `json:"items"`
	Summary       pricing.Summary `json:"summary"`
	VoucherCode   string          `json:"voucherCode,omitempty"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId"`
	ReceiptNumber string          `json:"receiptNumber"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Store keeps orders in memory for the lifetime of the process.
type Store struct {
	Now func() time.Time

	mu     sync.RWMutex
	orders map[string]*Order
	seq    []string
}

// NewStore builds an empty order store.
func NewStore(now func() time.Time) *Store {
	return &Store{Now: now, orders: make(map[string]*Order)}
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create records a freshly settled order.
func (s *Store) Create(o Order) (Order, error) {
	if len(o.Items) == 0 {
		return Order{}, errors.New("order needs at least one line")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPaid
	}
	ts := s.now()
	o.CreatedAt = ts
	o.UpdatedAt = ts
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("duplicate order id %s", o.ID)
	}
	stored := o
	s.orders[o.ID] = &stored
	s.seq = append(s.seq, o.ID)
	return o, nil
}

// Get returns the order for the given id.
func (s *Store) Get(id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

// ListByOwner returns the orders belonging to a user or anonymous session,
// newest first.
func (s *Store) ListByOwner(userID, anonID string) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0)
	for i := len(s.seq) - 1; i >= 0; i-- {
		o := s.orders[s.seq[i]]
		if userID != "" && o.UserID == userID {
			out = append(out, *o)
			continue
		}
		if userID == "" && anonID != "" && o.AnonID == anonID {
			out = append(out, *o)
		}
	}
	return out
}

// List returns every order, newest first.
func (s *Store) List() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.seq))
	for i := len(s.seq) - 1; i >= 0; i-- {
		out = append(out, *s.orders[s.seq[i]])
	}
	return out
}

// Count reports the number of recorded orders.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seq)
}

// Revenue sums the totals of orders still in the paid state.
func (s *Store) Revenue() pricing.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total pricing.Money
	for _, o := range s.orders {
		if o.Status == StatusPaid {
			total += o.Summary.Total
		}
	}
	return total
}

// SetStatus transitions an order. Paid orders may be canceled or refunded;
// terminal states stay put.
func (s *Store) SetStatus(id, status string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	switch {
	case o.Status == status:
		return *o, nil
	case o.Status == StatusPaid && (status == StatusCanceled || status == StatusRefunded):
	default:
		return Order{}, fmt.Errorf("%s to %s: %w", o.Status, status, ErrInvalidTransition)
	}
	o.Status = status
	o.UpdatedAt = s.now()
	return *o, nil
}

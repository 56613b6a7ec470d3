package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/voucher"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Item is a single line of a cart, priced at the moment it was added.
type Item struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Qty       int           `json:"qty"`
}

// Subtotal is the pre-tax line amount.
func (i Item) Subtotal() pricing.Money {
	return i.UnitPrice * pricing.Money(i.Qty)
}

// Cart is an in-progress order for one owner (user or anonymous session).
type Cart struct {
	ID          string    `json:"id"`
	OwnerKey    string    `json:"-"`
	Items       []Item    `json:"items"`
	VoucherCode string    `json:"voucherCode,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Totals is the priced view of a cart.
type Totals struct {
	Summary      pricing.Summary `json:"summary"`
	ItemCount    int             `json:"itemCount"`
	VoucherCode  string          `json:"voucherCode,omitempty"`
	TotalDisplay string          `json:"totalDisplay"`
}

// Service encapsulates cart domain operations.
type Service struct {
	Catalog  *catalog.Store
	Vouchers *voucher.Service
	Bus      *events.Bus
	TTL      time.Duration
	Now      func() time.Time

	TaxBps           int
	ShippingFlatFee  pricing.Money
	ShippingFreeOver pricing.Money

	mu    sync.Mutex
	carts map[string]*Cart
}

// NewService builds an empty cart service.
func NewService(cat *catalog.Store, vouchers *voucher.Service, bus *events.Bus) *Service {
	return &Service{
		Catalog:  cat,
		Vouchers: vouchers,
		Bus:      bus,
		carts:    make(map[string]*Cart),
	}
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) taxBps() int {
	if s == nil || s.TaxBps <= 0 {
		return pricing.DefaultTaxBps
	}
	return s.TaxBps
}

func ownerKey(userID, anonID string) (string, error) {
	if strings.TrimSpace(userID) != "" {
		return "user:" + userID, nil
	}
	if strings.TrimSpace(anonID) != "" {
		return "anon:" + anonID, nil
	}
	return "", fmt.Errorf("cart owner is required: %w", ErrInvalidInput)
}

// EnsureCart loads or creates the cart for the provided identifiers.
func (s *Service) EnsureCart(ctx context.Context, userID, anonID string) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	key, err := ownerKey(userID, anonID)
	if err != nil {
		return Cart{}, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[key]
	if ok && now.Before(c.ExpiresAt) {
		c.ExpiresAt = now.Add(s.ttl())
		return c.clone(), nil
	}
	c = &Cart{
		ID:        uuid.NewString(),
		OwnerKey:  key,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl()),
	}
	s.carts[key] = c
	return c.clone(), nil
}

func (c *Cart) clone() Cart {
	out := *c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

func (s *Service) locked(userID, anonID string) (*Cart, error) {
	key, err := ownerKey(userID, anonID)
	if err != nil {
		return nil, err
	}
	c, ok := s.carts[key]
	if !ok || s.now().After(c.ExpiresAt) {
		return nil, ErrNotFound
	}
	return c, nil
}

// AddItem inserts or increments a cart line. Lines with the same product
// identifier are merged and their quantities summed.
func (s *Service) AddItem(ctx context.Context, userID, anonID, productID string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if s.Catalog == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	product, ok := s.Catalog.Product(productID)
	if !ok {
		return Cart{}, fmt.Errorf("product %s: %w", productID, catalog.ErrNotFound)
	}

	if _, err := s.EnsureCart(ctx, userID, anonID); err != nil {
		return Cart{}, err
	}

	s.mu.Lock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Cart{}, err
	}
	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Qty += qty
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, Item{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Qty:       qty,
		})
	}
	s.touch(c)
	snapshot := c.clone()
	s.mu.Unlock()

	recordMutation("add")
	s.emit(ctx, events.TopicCartItemAdded, snapshot.ID, map[string]any{
		"productId": productID,
		"qty":       qty,
	})
	return snapshot, nil
}

// UpdateQuantity sets the quantity of a cart line. Values below one are
// clamped to one; removal goes through RemoveItem.
func (s *Service) UpdateQuantity(ctx context.Context, userID, anonID, productID string, qty int) (Cart, error) {
	if qty < 1 {
		qty = 1
	}
	s.mu.Lock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Cart{}, err
	}
	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Qty = qty
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return Cart{}, fmt.Errorf("line %s: %w", productID, ErrNotFound)
	}
	s.touch(c)
	snapshot := c.clone()
	s.mu.Unlock()

	recordMutation("update_qty")
	s.emit(ctx, events.TopicCartQtyUpdated, snapshot.ID, map[string]any{
		"productId": productID,
		"qty":       qty,
	})
	return snapshot, nil
}

// RemoveItem deletes a cart line. Removing an absent line is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID, anonID, productID string) (Cart, error) {
	s.mu.Lock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Cart{}, err
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			break
		}
	}
	s.touch(c)
	snapshot := c.clone()
	s.mu.Unlock()

	recordMutation("remove")
	s.emit(ctx, events.TopicCartItemRemoved, snapshot.ID, map[string]any{
		"productId": productID,
	})
	return snapshot, nil
}

// Clear drops every line and any applied voucher.
func (s *Service) Clear(ctx context.Context, userID, anonID string) (Cart, error) {
	s.mu.Lock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Cart{}, err
	}
	c.Items = nil
	c.VoucherCode = ""
	s.touch(c)
	snapshot := c.clone()
	s.mu.Unlock()

	recordMutation("clear")
	s.emit(ctx, events.TopicCartCleared, snapshot.ID, nil)
	return snapshot, nil
}

// ApplyVoucher validates and attaches a coupon to the cart.
func (s *Service) ApplyVoucher(ctx context.Context, userID, anonID, code string) (Cart, error) {
	if s.Vouchers == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	s.mu.Lock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Cart{}, err
	}
	subtotal := itemsSubtotal(c.Items)
	s.mu.Unlock()

	if _, err := s.Vouchers.Evaluate(code, int64(subtotal)); err != nil {
		return Cart{}, err
	}

	s.mu.Lock()
	c, err = s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Cart{}, err
	}
	c.VoucherCode = strings.ToUpper(strings.TrimSpace(code))
	s.touch(c)
	snapshot := c.clone()
	s.mu.Unlock()
	return snapshot, nil
}

// RemoveVoucher detaches any applied coupon.
func (s *Service) RemoveVoucher(ctx context.Context, userID, anonID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		return Cart{}, err
	}
	c.VoucherCode = ""
	s.touch(c)
	return c.clone(), nil
}

// Totals prices the cart with tax, shipping, and any applied voucher.
func (s *Service) Totals(ctx context.Context, userID, anonID string) (Totals, error) {
	s.mu.Lock()
	c, err := s.locked(userID, anonID)
	if err != nil {
		s.mu.Unlock()
		return Totals{}, err
	}
	snapshot := c.clone()
	s.mu.Unlock()
	return s.price(snapshot)
}

func (s *Service) price(c Cart) (Totals, error) {
	lines := make([]pricing.Item, 0, len(c.Items))
	count := 0
	for _, it := range c.Items {
		lines = append(lines, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
		count += it.Qty
	}

	subtotal := itemsSubtotal(c.Items)
	var discount pricing.Money
	if c.VoucherCode != "" && s.Vouchers != nil {
		d, err := s.Vouchers.Evaluate(c.VoucherCode, int64(subtotal))
		if err == nil {
			discount = pricing.Money(d)
		}
	}

	shipping := pricing.ShippingFee(subtotal, s.ShippingFlatFee, s.ShippingFreeOver)
	summary := pricing.Compute(lines, discount, s.taxBps(), shipping)
	return Totals{
		Summary:      summary,
		ItemCount:    count,
		VoucherCode:  c.VoucherCode,
		TotalDisplay: pricing.Format(summary.Total),
	}, nil
}

func itemsSubtotal(items []Item) pricing.Money {
	var total pricing.Money
	for _, it := range items {
		if it.Qty > 0 {
			total += it.Subtotal()
		}
	}
	return total
}

func (s *Service) touch(c *Cart) {
	now := s.now()
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(s.ttl())
}

func recordMutation(op string) {
	if obs.CartMutationsTotal != nil {
		obs.CartMutationsTotal.WithLabelValues(op).Inc()
	}
}

func (s *Service) emit(ctx context.Context, topic, cartID string, payload map[string]any) {
	if s.Bus == nil {
		return
	}
	_, _ = s.Bus.Emit(ctx, topic, cartID, payload)
}

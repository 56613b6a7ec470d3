package voucher

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotFound indicates the requested coupon could not be located.
var ErrNotFound = errors.New("voucher not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Voucher is a stored coupon definition.
type Voucher struct {
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	Value      int64      `json:"value"`
	PercentBps int32      `json:"percentBps,omitempty"`
	MinSpend   int64      `json:"minSpend"`
	UsageLimit *int32     `json:"usageLimit,omitempty"`
	UsedCount  int32      `json:"usedCount"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (v Voucher) rule() Rule {
	return Rule{
		Code:       v.Code,
		Kind:       v.Kind,
		Value:      v.Value,
		PercentBps: v.PercentBps,
		MinSpend:   v.MinSpend,
		UsageLimit: v.UsageLimit,
		UsedCount:  v.UsedCount,
		ValidFrom:  v.ValidFrom,
		ValidTo:    v.ValidTo,
	}
}

//go:embed seed_coupons.json
var seedCoupons []byte

// Service owns the volatile coupon collection.
type Service struct {
	Now func() time.Time

	mu       sync.RWMutex
	vouchers map[string]Voucher
}

// NewService builds a service seeded with the embedded demo coupons.
func NewService(now func() time.Time) (*Service, error) {
	s := &Service{Now: now, vouchers: make(map[string]Voucher)}
	var seeded []Voucher
	if err := json.Unmarshal(seedCoupons, &seeded); err != nil {
		return nil, fmt.Errorf("voucher: decode seed data: %w", err)
	}
	ts := s.now()
	for _, v := range seeded {
		v.Code = normaliseCode(v.Code)
		v.CreatedAt = ts
		v.UpdatedAt = ts
		s.vouchers[v.Code] = v
	}
	return s, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func normaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Get returns the coupon for the given code.
func (s *Service) Get(code string) (Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[normaliseCode(code)]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return v, nil
}

// List returns all coupons sorted by code.
func (s *Service) List() []Voucher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Code < out[j-1].Code; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Evaluate computes the discount a coupon yields for the given subtotal
// without consuming usage quota.
func (s *Service) Evaluate(code string, subtotal int64) (int64, error) {
	v, err := s.Get(code)
	if err != nil {
		return 0, err
	}
	rule := v.rule()
	if err := rule.Validate(s.now(), subtotal); err != nil {
		return 0, err
	}
	return Compute(subtotal, rule), nil
}

// Redeem consumes one usage of the coupon after a paid order.
func (s *Service) Redeem(code string) error {
	code = normaliseCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[code]
	if !ok {
		return ErrNotFound
	}
	v.UsedCount++
	v.UpdatedAt = s.now()
	s.vouchers[code] = v
	return nil
}

// Create stores a new coupon definition.
func (s *Service) Create(v Voucher) (Voucher, error) {
	v.Code = normaliseCode(v.Code)
	if v.Code == "" {
		return Voucher{}, fmt.Errorf("code is required: %w", ErrInvalidInput)
	}
	switch strings.ToLower(v.Kind) {
	case KindFixed:
		if v.Value <= 0 {
			return Voucher{}, fmt.Errorf("fixed voucher needs a positive value: %w", ErrInvalidInput)
		}
	case KindPercent:
		if v.PercentBps <= 0 || v.PercentBps > 10000 {
			return Voucher{}, fmt.Errorf("percent voucher needs bps in (0,10000]: %w", ErrInvalidInput)
		}
	default:
		return Voucher{}, fmt.Errorf("unknown voucher kind %q: %w", v.Kind, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vouchers[v.Code]; exists {
		return Voucher{}, fmt.Errorf("duplicate code %s: %w", v.Code, ErrInvalidInput)
	}
	ts := s.now()
	v.UsedCount = 0
	v.CreatedAt = ts
	v.UpdatedAt = ts
	s.vouchers[v.Code] = v
	return v, nil
}

// Update replaces the mutable fields of a coupon, preserving usage counts.
func (s *Service) Update(code string, upd Voucher) (Voucher, error) {
	code = normaliseCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[code]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	if upd.Kind != "" {
		v.Kind = strings.ToLower(upd.Kind)
	}
	if upd.Value > 0 {
		v.Value = upd.Value
	}
	if upd.PercentBps > 0 {
		v.PercentBps = upd.PercentBps
	}
	if upd.MinSpend >= 0 {
		v.MinSpend = upd.MinSpend
	}
	if upd.UsageLimit != nil {
		v.UsageLimit = upd.UsageLimit
	}
	if upd.ValidFrom != nil {
		v.ValidFrom = upd.ValidFrom
	}
	if upd.ValidTo != nil {
		v.ValidTo = upd.ValidTo
	}
	v.UpdatedAt = s.now()
	s.vouchers[code] = v
	return v, nil
}

// Delete removes a coupon definition.
func (s *Service) Delete(code string) error {
	code = normaliseCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vouchers[code]; !ok {
		return ErrNotFound
	}
	delete(s.vouchers, code)
	return nil
}

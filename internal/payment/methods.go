package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMethodNotFound indicates the saved payment method does not exist.
	ErrMethodNotFound = errors.New("payment method not found")
	// ErrInvalidMethod is returned for malformed payment method payloads.
	ErrInvalidMethod = errors.New("invalid payment method")
)

// Saved payment method types.
const (
	MethodCreditCard   = "credit_card"
	MethodBankTransfer = "bank_transfer"
	MethodApplePay     = "apple_pay"
	MethodGooglePay    = "google_pay"
)

// SavedMethod is a payment instrument a shopper stored for reuse. Card and
// bank fields hold only display data; the real credential never leaves the
// (mock) gateway.
type SavedMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	LastFourDigits string `json:"lastFourDigits,omitempty"`
	CardType       string `json:"cardType,omitempty"`
	ExpiryMonth    int    `json:"expiryMonth,omitempty"`
	ExpiryYear     int    `json:"expiryYear,omitempty"`
	CardholderName string `json:"cardholderName,omitempty"`

	BankName      string `json:"bankName,omitempty"`
	BranchName    string `json:"branchName,omitempty"`
	AccountType   string `json:"accountType,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	AccountHolder string `json:"accountHolder,omitempty"`

	TokenID     string `json:"tokenId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`

	Default   bool      `json:"default"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChargeToken returns the source token to pass to the gateway when charging
// this method.
func (m SavedMethod) ChargeToken() string {
	if m.TokenID != "" {
		return m.TokenID
	}
	return "pm_" + m.ID
}

var lastFourPattern = regexp.MustCompile(`^[0-9]{4}$`)

func (m SavedMethod) validate() error {
	switch m.Type {
	case MethodCreditCard:
		if !lastFourPattern.MatchString(m.LastFourDigits) {
			return fmt.Errorf("lastFourDigits must be exactly four digits: %w", ErrInvalidMethod)
		}
		if strings.TrimSpace(m.CardholderName) == "" {
			return fmt.Errorf("cardholderName is required: %w", ErrInvalidMethod)
		}
	case MethodBankTransfer:
		if strings.TrimSpace(m.BankName) == "" || strings.TrimSpace(m.AccountNumber) == "" {
			return fmt.Errorf("bankName and accountNumber are required: %w", ErrInvalidMethod)
		}
	case MethodApplePay, MethodGooglePay:
		if strings.TrimSpace(m.TokenID) == "" {
			return fmt.Errorf("tokenId is required: %w", ErrInvalidMethod)
		}
	default:
		return fmt.Errorf("unknown payment method type %q: %w", m.Type, ErrInvalidMethod)
	}
	return nil
}

// MethodStore keeps each shopper's saved payment methods in Redis so they
// survive process restarts, mirroring how dismissed notifications are kept.
type MethodStore struct {
	R      *redis.Client
	Prefix string
	Now    func() time.Time
}

func (s *MethodStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MethodStore) prefix() string {
	if s == nil || s.Prefix == "" {
		return "storefront:payment:methods"
	}
	return s.Prefix
}

func (s *MethodStore) methodsKey(ownerKey string) string {
	return s.prefix() + ":" + ownerKey
}

func (s *MethodStore) defaultKey(ownerKey string) string {
	return s.prefix() + ":default:" + ownerKey
}

// Add stores a new payment method. The first method an owner saves becomes
// their default.
func (s *MethodStore) Add(ctx context.Context, ownerKey string, m SavedMethod) (SavedMethod, error) {
	if s == nil || s.R == nil {
		return SavedMethod{}, errors.New("payment: method store not configured")
	}
	if strings.TrimSpace(ownerKey) == "" {
		return SavedMethod{}, fmt.Errorf("owner is required: %w", ErrInvalidMethod)
	}
	if err := m.validate(); err != nil {
		return SavedMethod{}, err
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	m.Default = false

	raw, err := json.Marshal(m)
	if err != nil {
		return SavedMethod{}, fmt.Errorf("payment: encode method: %w", err)
	}
	existing, err := s.R.HLen(ctx, s.methodsKey(ownerKey)).Result()
	if err != nil {
		return SavedMethod{}, fmt.Errorf("payment: count methods: %w", err)
	}
	if err := s.R.HSet(ctx, s.methodsKey(ownerKey), m.ID, raw).Err(); err != nil {
		return SavedMethod{}, fmt.Errorf("payment: store method: %w", err)
	}
	if existing == 0 {
		if err := s.R.Set(ctx, s.defaultKey(ownerKey), m.ID, 0).Err(); err != nil {
			return SavedMethod{}, fmt.Errorf("payment: set default method: %w", err)
		}
		m.Default = true
	}
	return m, nil
}

// List returns the owner's saved methods, oldest first, with the default
// flagged.
func (s *MethodStore) List(ctx context.Context, ownerKey string) ([]SavedMethod, error) {
	if s == nil || s.R == nil || strings.TrimSpace(ownerKey) == "" {
		return nil, nil
	}
	raw, err := s.R.HGetAll(ctx, s.methodsKey(ownerKey)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("payment: load methods: %w", err)
	}
	defaultID, err := s.R.Get(ctx, s.defaultKey(ownerKey)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("payment: load default method: %w", err)
	}

	out := make([]SavedMethod, 0, len(raw))
	for _, encoded := range raw {
		var m SavedMethod
		if err := json.Unmarshal([]byte(encoded), &m); err != nil {
			continue
		}
		m.Default = m.ID == defaultID
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes a saved method. Deleting the default leaves the owner with
// no default until they pick another.
func (s *MethodStore) Delete(ctx context.Context, ownerKey, id string) error {
	if s == nil || s.R == nil {
		return errors.New("payment: method store not configured")
	}
	removed, err := s.R.HDel(ctx, s.methodsKey(ownerKey), id).Result()
	if err != nil {
		return fmt.Errorf("payment: delete method: %w", err)
	}
	if removed == 0 {
		return ErrMethodNotFound
	}
	current, err := s.R.Get(ctx, s.defaultKey(ownerKey)).Result()
	if err == nil && current == id {
		_ = s.R.Del(ctx, s.defaultKey(ownerKey)).Err()
	}
	return nil
}

// SetDefault marks an existing method as the one checkout should charge.
func (s *MethodStore) SetDefault(ctx context.Context, ownerKey, id string) error {
	if s == nil || s.R == nil {
		return errors.New("payment: method store not configured")
	}
	exists, err := s.R.HExists(ctx, s.methodsKey(ownerKey), id).Result()
	if err != nil {
		return fmt.Errorf("payment: lookup method: %w", err)
	}
	if !exists {
		return ErrMethodNotFound
	}
	return s.R.Set(ctx, s.defaultKey(ownerKey), id, 0).Err()
}

// Default returns the owner's default payment method.
func (s *MethodStore) Default(ctx context.Context, ownerKey string) (SavedMethod, error) {
	if s == nil || s.R == nil || strings.TrimSpace(ownerKey) == "" {
		return SavedMethod{}, ErrMethodNotFound
	}
	id, err := s.R.Get(ctx, s.defaultKey(ownerKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SavedMethod{}, ErrMethodNotFound
		}
		return SavedMethod{}, fmt.Errorf("payment: load default method: %w", err)
	}
	raw, err := s.R.HGet(ctx, s.methodsKey(ownerKey), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SavedMethod{}, ErrMethodNotFound
		}
		return SavedMethod{}, fmt.Errorf("payment: load method: %w", err)
	}
	var m SavedMethod
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return SavedMethod{}, fmt.Errorf("payment: decode method: %w", err)
	}
	m.Default = true
	return m, nil
}

package user

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no account matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput is returned for malformed account payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// Role labels.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is a storefront account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type seedUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

//go:embed seed_users.json
var seedUsers []byte

// Store keeps accounts in memory, seeded from the embedded demo fixtures.
type Store struct {
	Now func() time.Time

	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

// NewStore loads the demo accounts, hashing the fixture passwords on the way in.
func NewStore(now func() time.Time) (*Store, error) {
	s := &Store{
		Now:     now,
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
	var seeded []seedUser
	if err := json.Unmarshal(seedUsers, &seeded); err != nil {
		return nil, fmt.Errorf("user: decode seed data: %w", err)
	}
	ts := s.now()
	for _, su := range seeded {
		hash, err := argon2id.CreateHash(su.Password, argon2id.DefaultParams)
		if err != nil {
			return nil, fmt.Errorf("user: hash seed password for %s: %w", su.Email, err)
		}
		u := &User{
			ID:           su.ID,
			Email:        normaliseEmail(su.Email),
			Name:         su.Name,
			Role:         su.Role,
			PasswordHash: hash,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		}
		s.byID[u.ID] = u
		s.byEmail[u.Email] = u.ID
	}
	return s, nil
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new account with an already hashed password.
func (s *Store) Create(email, name, role, passwordHash string) (User, error) {
	email = normaliseEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("a valid email is required: %w", ErrInvalidInput)
	}
	if name == "" {
		return User{}, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if role == "" {
		role = RoleCustomer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return User{}, ErrEmailTaken
	}
	ts := s.now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return *u, nil
}

// ByID returns the account for the given id.
func (s *Store) ByID(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// ByEmail returns the account for the given email.
func (s *Store) ByEmail(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normaliseEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.byID[id], nil
}

// List returns every account sorted by creation time then id.
func (s *Store) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b User) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// UpdateProfile changes the display name of an account.
func (s *Store) UpdateProfile(id, name string) (User, error) {
	if name == "" {
		return User{}, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = s.now()
	return *u, nil
}

// SetRole changes the role of an account.
func (s *Store) SetRole(id, role string) (User, error) {
	if role != RoleCustomer && role != RoleAdmin {
		return User{}, fmt.Errorf("unknown role %q: %w", role, ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now()
	return *u, nil
}

// Delete removes an account.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.byID, id)
	return nil
}

package notify

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested notification could not be located.
var ErrNotFound = errors.New("notification not found")

// Notification tags and delivery methods.
const (
	TagImportant = "important"
	TagSale      = "sale"

	MethodEmail = "email"
	MethodSite  = "site"
)

// Notification is a storefront announcement shown to customers.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tag       string    `json:"tag,omitempty"`
	Method    string    `json:"method"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

//go:embed seed_notifications.json
var seedNotifications []byte

// Store keeps announcements in memory and per-user dismissals in Redis so
// they survive process restarts.
type Store struct {
	R      *redis.Client
	Prefix string
	Now    func() time.Time

	mu    sync.RWMutex
	items map[string]*Notification
	order []string
}

// NewStore loads the embedded demo announcements.
func NewStore(r *redis.Client, prefix string, now func() time.Time) (*Store, error) {
	s := &Store{R: r, Prefix: prefix, Now: now, items: make(map[string]*Notification)}
	var seeded []Notification
	if err := json.Unmarshal(seedNotifications, &seeded); err != nil {
		return nil, fmt.Errorf("notify: decode seed data: %w", err)
	}
	ts := s.now()
	for i := range seeded {
		n := seeded[i]
		if n.CreatedAt.IsZero() {
			n.CreatedAt = ts
		}
		s.items[n.ID] = &n
		s.order = append(s.order, n.ID)
	}
	return s, nil
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) dismissedKey(ownerKey string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "storefront:notify"
	}
	return prefix + ":dismissed:" + ownerKey
}

// List returns the announcements visible to the owner, newest first, with
// dismissed entries filtered out and read flags applied.
func (s *Store) List(ctx context.Context, ownerKey string) ([]Notification, error) {
	dismissed := map[string]bool{}
	read := map[string]bool{}
	if s.R != nil && ownerKey != "" {
		ids, err := s.R.SMembers(ctx, s.dismissedKey(ownerKey)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("notify: load dismissals: %w", err)
		}
		for _, id := range ids {
			dismissed[id] = true
		}
		readIDs, err := s.R.SMembers(ctx, s.readKey(ownerKey)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("notify: load read marks: %w", err)
		}
		for _, id := range readIDs {
			read[id] = true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.items[s.order[i]]
		if dismissed[n.ID] {
			continue
		}
		view := *n
		view.Read = read[n.ID]
		out = append(out, view)
	}
	return out, nil
}

func (s *Store) readKey(ownerKey string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "storefront:notify"
	}
	return prefix + ":read:" + ownerKey
}

// MarkRead flags an announcement as read for the owner.
func (s *Store) MarkRead(ctx context.Context, ownerKey, id string) error {
	s.mu.RLock()
	_, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if s.R == nil || ownerKey == "" {
		return nil
	}
	return s.R.SAdd(ctx, s.readKey(ownerKey), id).Err()
}

// Dismiss hides an announcement from the owner's feed.
func (s *Store) Dismiss(ctx context.Context, ownerKey, id string) error {
	s.mu.RLock()
	_, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if s.R == nil || ownerKey == "" {
		return nil
	}
	return s.R.SAdd(ctx, s.dismissedKey(ownerKey), id).Err()
}

// Broadcast publishes a new announcement to every customer.
func (s *Store) Broadcast(title, body, tag, method string) (Notification, error) {
	if title == "" {
		return Notification{}, errors.New("title is required")
	}
	if method == "" {
		method = MethodSite
	}
	n := &Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Tag:       tag,
		Method:    method,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.items[n.ID] = n
	s.order = append(s.order, n.ID)
	s.mu.Unlock()
	return *n, nil
}

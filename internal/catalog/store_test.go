package catalog

import (
	"errors"
	"testing"
)

func TestNewStoreSeedsCatalog(t *testing.T) {
	s, err := NewStore(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.Count() == 0 {
		t.Fatal("seed catalog should not be empty")
	}
	all := s.List("", "")
	if len(all) != s.Count() {
		t.Fatalf("list returned %d products, count says %d", len(all), s.Count())
	}
}

func TestListFilters(t *testing.T) {
	s, err := NewStore(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.Create(Product{ID: "p-kettle", Name: "Steel Kettle", Description: "stove-top kettle", Category: "kitchen", Price: 4800}); err != nil {
		t.Fatalf("create: %v", err)
	}

	byQuery := s.List("kettle", "")
	if len(byQuery) != 1 || byQuery[0].ID != "p-kettle" {
		t.Fatalf("query filter returned %v", byQuery)
	}
	byCategory := s.List("", "kitchen")
	found := false
	for _, p := range byCategory {
		if p.ID == "p-kettle" {
			found = true
		}
		if p.Category != "kitchen" {
			t.Fatalf("category filter leaked %v", p)
		}
	}
	if !found {
		t.Fatal("category filter missed p-kettle")
	}
	if got := s.List("no-such-thing", ""); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestCreateValidation(t *testing.T) {
	s, err := NewStore(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.Create(Product{Name: "", Price: 100}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := s.Create(Product{Name: "Bad", Price: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative price, got %v", err)
	}
	if _, err := s.Create(Product{ID: "p-dup", Name: "A", Price: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(Product{ID: "p-dup", Name: "B", Price: 100}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate id, got %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s, err := NewStore(nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	created, err := s.Create(Product{ID: "p-vase", Name: "Vase", Price: 2000, Stock: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.Update(created.ID, Product{Name: "Glass Vase", Price: 2200, Stock: 5})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Glass Vase" || updated.Price != 2200 || updated.Stock != 5 {
		t.Fatalf("update did not stick: %+v", updated)
	}

	if _, err := s.Update("missing", Product{Price: 100}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Product(created.ID); ok {
		t.Fatal("product should be gone after delete")
	}
	if err := s.Delete(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

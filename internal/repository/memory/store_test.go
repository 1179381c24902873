package memory

import (
	"context"
	"errors"
	"testing"
)

type item struct {
	id  string
	val int
}

func TestStore_OrderAndReplace(t *testing.T) {
	ctx := context.Background()
	s := New(func(i item) string { return i.id })

	for _, it := range []item{{"b", 1}, {"a", 2}, {"c", 3}} {
		if err := s.Set(ctx, it); err != nil {
			t.Fatalf("set %s: %v", it.id, err)
		}
	}
	if err := s.Set(ctx, item{"b", 10}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	all, _ := s.All(ctx)
	if len(all) != 3 || s.Len() != 3 {
		t.Fatalf("got %d values, want 3", len(all))
	}
	if all[0].id != "b" || all[0].val != 10 || all[1].id != "a" || all[2].id != "c" {
		t.Errorf("unexpected order: %v", all)
	}

	odd, _ := s.Filter(ctx, func(i item) bool { return i.val%2 == 1 })
	if len(odd) != 1 || odd[0].id != "c" {
		t.Errorf("filter: got %v", odd)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := New(func(i item) string { return i.id })
	if _, err := s.Get(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Has(context.Background(), "x") {
		t.Error("Has reported a missing key")
	}
	if err := s.Set(context.Background(), item{}); err == nil {
		t.Error("expected error for empty key")
	}
}

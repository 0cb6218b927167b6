package credstore

import (
	"testing"
	"time"

	"gv-go/internal/gv"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Load() on empty store = %+v, want nil", got)
	}

	want := &gv.Credentials{
		Token:    "tok-1",
		User:     gv.User{ID: 7, Name: "Ana", Email: "ana@example.org"},
		IssuedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	want.Token = "mutated"

	got, err = s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.Token != "tok-1" {
		t.Fatalf("Load() = %+v, want token %q", got, "tok-1")
	}
	if got.User.ID != 7 {
		t.Errorf("User.ID = %d, want 7", got.User.ID)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	got, _ = s.Load()
	if got != nil {
		t.Errorf("Load() after Clear = %+v, want nil", got)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/rankfuse/internal/db"
)

func TestStore_GetSet(t *testing.T) {
	s, err := NewStore(10)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Get(ctx, "absent"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %s", got)
	}
}

func TestStore_LRUEviction(t *testing.T) {
	s, err := NewStore(2)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"))
	_ = s.Set(ctx, "b", []byte("2"))
	_ = s.Set(ctx, "c", []byte("3")) // evicts "a"

	if _, err := s.Get(ctx, "a"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected oldest entry evicted, got %v", err)
	}
	if _, err := s.Get(ctx, "c"); err != nil {
		t.Errorf("expected newest entry present, got %v", err)
	}
}

func TestStore_ReadyImmediately(t *testing.T) {
	s, _ := NewStore(0)
	if err := s.WaitForReady(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStorageIncrEx(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	for i := 1; i <= 5; i++ {
		count, err := storage.IncrEx(ctx, "counter", 1, time.Minute)
		if err != nil {
			t.Fatalf("IncrEx: %v", err)
		}
		if count != int64(i) {
			t.Errorf("increment %d: got count %d", i, count)
		}
	}
}

func TestMemoryStorageIncrExKeepsWindowExpiry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	if _, err := storage.IncrEx(ctx, "counter", 1, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	// a later increment with a longer TTL must not extend the window
	if _, err := storage.IncrEx(ctx, "counter", 1, time.Hour); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	count, err := storage.IncrEx(ctx, "counter", 1, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected fresh window to restart at 1, got %d", count)
	}
}

func TestMemoryStorageIncrExConcurrent(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	const workers = 16
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := storage.IncrEx(ctx, "counter", 1, time.Minute); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	count, err := storage.Incr(ctx, "counter", 0)
	if err != nil {
		t.Fatal(err)
	}
	if count != workers*perWorker {
		t.Errorf("lost increments: got %d, want %d", count, workers*perWorker)
	}
}

func TestMemoryStoragePayloads(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	type record struct {
		Reason string `json:"reason"`
	}

	var missing record
	if err := storage.Get(ctx, "absent", &missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := storage.Set(ctx, "rec", record{Reason: "abuse"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got record
	if err := storage.Get(ctx, "rec", &got); err != nil {
		t.Fatal(err)
	}
	if got.Reason != "abuse" {
		t.Errorf("got %q", got.Reason)
	}

	if err := storage.Delete(ctx, "rec"); err != nil {
		t.Fatal(err)
	}
	if err := storage.Get(ctx, "rec", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStorageWithPrefix(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryStorage()
	prefixed := StorageWithPrefix(backing, "p:")

	if _, err := prefixed.IncrEx(ctx, "k", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	count, err := backing.Incr(ctx, "p:k", 0)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("prefixed key not written to backing storage, got %d", count)
	}
}

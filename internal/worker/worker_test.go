package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/gallery/internal/media"
	"github.com/kalambet/gallery/internal/storage"
)

type mockMedia struct {
	mu       sync.Mutex
	deleted  []string
	deleteFn func(key string) error
}

func (m *mockMedia) Delete(_ context.Context, key string) error {
	if m.deleteFn != nil {
		if err := m.deleteFn(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunOnce_DeletesMedia(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	m := &mockMedia{}
	w := NewWorker(store, m, time.Millisecond)

	if err := EnqueueMediaCleanup(ctx, store, "works/u1/old.png"); err != nil {
		t.Fatalf("EnqueueMediaCleanup: %v", err)
	}

	done, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if len(m.deleted) != 1 || m.deleted[0] != "works/u1/old.png" {
		t.Errorf("deleted = %v", m.deleted)
	}

	done, err = w.RunOnce(ctx)
	if err != nil || done {
		t.Errorf("second RunOnce = %v, %v; want idle", done, err)
	}
}

func TestRunOnce_MissingObjectCompletes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	m := &mockMedia{deleteFn: func(string) error { return media.ErrNotFound }}
	w := NewWorker(store, m, time.Millisecond)

	EnqueueMediaCleanup(ctx, store, "gone.png")
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	n, err := store.PurgeJobs(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("expected job to be completed, purged %d", n)
	}
}

func TestRunOnce_FailureIsRetried(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	m := &mockMedia{deleteFn: func(string) error { return errors.New("disk on fire") }}
	w := NewWorker(store, m, time.Millisecond)

	EnqueueMediaCleanup(ctx, store, "a.png")
	done, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected the job to be processed")
	}

	// The failed job is back in the queue with a backoff, so nothing is claimable now.
	done, _ = w.RunOnce(ctx)
	if done {
		t.Error("job claimed again before backoff elapsed")
	}
	if n, _ := store.PurgeJobs(ctx, time.Now().Add(time.Hour)); n != 0 {
		t.Errorf("pending job was purged")
	}
}

type countingStore struct {
	JobStore
	purges int
}

func (c *countingStore) PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	c.purges++
	return 0, nil
}

func TestMaybePurge_Throttled(t *testing.T) {
	cs := &countingStore{}
	w := NewWorker(cs, &mockMedia{}, time.Millisecond)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.maybePurge(context.Background())
	w.maybePurge(context.Background())
	if cs.purges != 1 {
		t.Errorf("purges = %d, want 1", cs.purges)
	}

	now = now.Add(2 * time.Hour)
	w.maybePurge(context.Background())
	if cs.purges != 2 {
		t.Errorf("purges = %d, want 2", cs.purges)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &mockMedia{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/storage"
)

func openIntegrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GALLERY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GALLERY_TEST_POSTGRES_DSN not set, skipping integration test")
	}
	m, err := NewMigrator(dsn)
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	s, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgres_UsernameClaim(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()

	owner := profile.New(uuid.New().String(), "Owner", uuid.New().String()+"@example.com")
	owner.Username = "pg_" + uuid.New().String()[:8]
	if err := s.CreateProfile(ctx, owner); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	other := profile.New(uuid.New().String(), "Other", uuid.New().String()+"@example.com")
	if err := s.CreateProfile(ctx, other); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	if err := s.SetUsername(ctx, other.ID, owner.Username); !errors.Is(err, storage.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	got, err := s.GetByUsername(ctx, owner.Username)
	if err != nil || got.ID != owner.ID {
		t.Errorf("owner row changed: %v %v", got.ID, err)
	}
}

func TestPostgres_UpdateWork(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()

	p := profile.New(uuid.New().String(), "Owner", uuid.New().String()+"@example.com")
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if _, err := s.UpdateWork(ctx, p.ID, 3, profile.Work{Title: "New", Desc: "desc"}); err != nil {
		t.Fatalf("UpdateWork: %v", err)
	}
	got, err := s.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	for i := 0; i < 3; i++ {
		if got.Works[i] != p.Works[i] {
			t.Errorf("works[%d] changed", i)
		}
	}
	if got.Works[3].Title != "New" || got.Works[3].PictureURL != p.Works[3].PictureURL {
		t.Errorf("works[3] = %+v", got.Works[3])
	}
}

func TestPostgres_JobQueue(t *testing.T) {
	s := openIntegrationStore(t)
	ctx := context.Background()
	typ := "test_" + uuid.New().String()[:8]

	id := uuid.New().String()
	if err := s.EnqueueJob(ctx, storage.Job{ID: id, Type: typ}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job, err := s.ClaimNextJob(ctx, []string{typ})
	if err != nil || job == nil || job.ID != id {
		t.Fatalf("ClaimNextJob = %+v, %v", job, err)
	}
	if err := s.CompleteJob(ctx, id); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

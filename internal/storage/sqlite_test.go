package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kalambet/gallery/internal/profile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createAccount(t *testing.T, s *Store, id, username string) profile.Profile {
	t.Helper()
	p := profile.New(id, "Name "+id, id+"@example.com")
	p.Username = username
	if err := s.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile(%s): %v", id, err)
	}
	return p
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_init.sql", 1, false},
		{"012_add_index.sql", 12, false},
		{"init.sql", 0, true},
		{"x1_init.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMigrationVersion(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseMigrationVersion(%q) = %d, %v", tt.name, got, err)
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_jobs_status_run_after", "idx_users_updated"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestCreateAndGetProfile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := createAccount(t, s, "u1", "y_ta")

	got, err := s.GetByUsername(ctx, "y_ta")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email || got.Intro != want.Intro {
		t.Errorf("got %+v", got)
	}
	if len(got.Skills) != profile.SkillCount || len(got.Works) != profile.WorkCount {
		t.Errorf("got %d skills, %d works", len(got.Skills), len(got.Works))
	}

	byEmail, err := s.GetByEmail(ctx, want.Email)
	if err != nil || byEmail.ID != want.ID {
		t.Errorf("GetByEmail = %v, %v", byEmail.ID, err)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetByUsername(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = s.GetByID(context.Background(), "missing")
	if !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("expected profile.ErrNotFound, got %v", err)
	}
}

func TestCreateProfile_DuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	createAccount(t, s, "u1", "")

	dup := profile.New("u2", "Other", "u1@example.com")
	err := s.CreateProfile(context.Background(), dup)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUnclaimedUsernamesDoNotCollide(t *testing.T) {
	s := openTestStore(t)
	createAccount(t, s, "u1", "")
	createAccount(t, s, "u2", "")

	exists, err := s.UsernameExists(context.Background(), "")
	if err != nil {
		t.Fatalf("UsernameExists: %v", err)
	}
	if exists {
		t.Error("empty username reported as taken")
	}
}

func TestSetUsername(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "owner", "taken")
	createAccount(t, s, "u1", "")

	if err := s.SetUsername(ctx, "u1", "taken"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	owner, _ := s.GetByID(ctx, "owner")
	if owner.Username != "taken" {
		t.Errorf("owner username = %q", owner.Username)
	}

	if err := s.SetUsername(ctx, "u1", "fresh_name"); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}
	if err := s.SetUsername(ctx, "u1", "fresh_name"); err != nil {
		t.Errorf("repeat SetUsername: %v", err)
	}
	if err := s.SetUsername(ctx, "u1", "another"); !errors.Is(err, profile.ErrUsernameImmutable) {
		t.Errorf("expected ErrUsernameImmutable, got %v", err)
	}
	if err := s.SetUsername(ctx, "ghost", "ghost_name"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	before := createAccount(t, s, "u1", "fields")

	if err := s.UpdateIntro(ctx, "u1", "Hello"); err != nil {
		t.Fatalf("UpdateIntro: %v", err)
	}
	skills := profile.DefaultSkills()
	skills[0] = profile.Skill{Name: "Go", Level: 5}
	if err := s.UpdateSkills(ctx, "u1", skills); err != nil {
		t.Fatalf("UpdateSkills: %v", err)
	}
	links := profile.Links{GitHub: "https://github.com/u1"}
	if err := s.UpdateLinks(ctx, "u1", links); err != nil {
		t.Fatalf("UpdateLinks: %v", err)
	}

	got, err := s.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Intro != "Hello" || got.Skills[0].Name != "Go" || got.SNS != links {
		t.Errorf("got %+v", got)
	}
	if got.UpdatedAt.Before(before.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v < %v", got.UpdatedAt, before.UpdatedAt)
	}

	if err := s.UpdateIntro(ctx, "ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateWork_OtherEntriesUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, "u1", "works")

	first := profile.Work{Title: "One", Desc: "first", PictureURL: "/media/one.png"}
	if _, err := s.UpdateWork(ctx, "u1", 0, first); err != nil {
		t.Fatalf("UpdateWork(0): %v", err)
	}
	before, _ := s.GetByID(ctx, "u1")

	prev, err := s.UpdateWork(ctx, "u1", 1, profile.Work{Title: "Two", Desc: "second"})
	if err != nil {
		t.Fatalf("UpdateWork(1): %v", err)
	}
	if prev != before.Works[1] {
		t.Errorf("prev = %+v, want %+v", prev, before.Works[1])
	}

	after, _ := s.GetByID(ctx, "u1")
	for i := range after.Works {
		if i == 1 {
			continue
		}
		if after.Works[i] != before.Works[i] {
			t.Errorf("works[%d] changed: %+v -> %+v", i, before.Works[i], after.Works[i])
		}
	}
	if after.Works[1].PictureURL != before.Works[1].PictureURL {
		t.Errorf("picture not kept: %q", after.Works[1].PictureURL)
	}
}

func TestListProfiles(t *testing.T) {
	s := openTestStore(t)
	createAccount(t, s, "u1", "alpha")
	createAccount(t, s, "u2", "")
	createAccount(t, s, "u3", "gamma")

	got, err := s.ListProfiles(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 claimed profiles, got %d", len(got))
	}
}

// --- Jobs ---

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j1", Type: JobMediaCleanup, PayloadJSON: `{"key":"a.png"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob(ctx, []string{JobMediaCleanup})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "j1" || job.Status != "running" {
		t.Fatalf("claimed %+v", job)
	}

	again, err := s.ClaimNextJob(ctx, []string{JobMediaCleanup})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("claimed running job twice: %+v", again)
	}

	if err := s.CompleteJob(ctx, "j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if err := s.CompleteJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimNextJob_FiltersType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnqueueJob(ctx, Job{ID: "j1", Type: "other"})

	job, err := s.ClaimNextJob(ctx, []string{JobMediaCleanup})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed job of wrong type: %+v", job)
	}
	if job, _ := s.ClaimNextJob(ctx, nil); job != nil {
		t.Errorf("claimed with no types: %+v", job)
	}
}

func TestFailJob_BackoffThenFailed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.EnqueueJob(ctx, Job{ID: "j1", Type: JobMediaCleanup, MaxAttempts: 2})

	s.ClaimNextJob(ctx, []string{JobMediaCleanup})
	if err := s.FailJob(ctx, "j1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, runAfter string
	var attempts int
	s.db.QueryRow(`SELECT status, attempts, run_after FROM jobs WHERE id = 'j1'`).Scan(&status, &attempts, &runAfter)
	if status != "pending" || attempts != 1 {
		t.Fatalf("after first failure: status=%s attempts=%d", status, attempts)
	}
	ra, _ := time.Parse(time.RFC3339, runAfter)
	if !ra.After(time.Now()) {
		t.Errorf("run_after %v not in the future", ra)
	}

	// Backoff keeps the job unclaimable for now.
	if job, _ := s.ClaimNextJob(ctx, []string{JobMediaCleanup}); job != nil {
		t.Errorf("claimed job during backoff")
	}

	if err := s.FailJob(ctx, "j1", "boom again"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	s.db.QueryRow(`SELECT status, attempts FROM jobs WHERE id = 'j1'`).Scan(&status, &attempts)
	if status != "failed" || attempts != 2 {
		t.Errorf("after max attempts: status=%s attempts=%d", status, attempts)
	}
}

func TestPurgeJobs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("j%d", i)
		s.EnqueueJob(ctx, Job{ID: id, Type: JobMediaCleanup})
	}
	s.ClaimNextJob(ctx, []string{JobMediaCleanup})
	s.CompleteJob(ctx, "j0")

	n, err := s.PurgeJobs(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d jobs, want 1", n)
	}
}

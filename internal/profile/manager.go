package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no profile matches the lookup.
	ErrNotFound = errors.New("profile not found")
	// ErrUsernameTaken is returned when another account already owns the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUsernameImmutable is returned when an account tries to change a username it already set.
	ErrUsernameImmutable = errors.New("username already set")
)

// Repository defines the storage operations the Manager needs.
// Implemented by storage.Store and postgres.Store.
type Repository interface {
	CreateProfile(ctx context.Context, p Profile) error
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByUsername(ctx context.Context, username string) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	// SetUsername sets the username only while it is unset. It returns
	// ErrUsernameTaken on a uniqueness conflict.
	SetUsername(ctx context.Context, id, username string) error
	UpdateIntro(ctx context.Context, id, intro string) error
	UpdateSkills(ctx context.Context, id string, skills []Skill) error
	// UpdateWork replaces works[index] and returns the previous entry. An empty
	// PictureURL keeps the stored one.
	UpdateWork(ctx context.Context, id string, index int, w Work) (Work, error)
	UpdateLinks(ctx context.Context, id string, links Links) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile  Profile
	cachedAt time.Time
}

// Manager validates profile mutations and caches public lookups by username.
type Manager struct {
	repo   Repository
	clock  Clock
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(repo Repository) *Manager {
	return NewManagerWithClock(repo, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(repo Repository, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		clock:  clock,
		ttl:    ttl,
		logger: slog.Default(),
		cache:  make(map[string]cacheEntry),
	}
}

// Get returns the profile owning username, normalized to the fixed layout.
func (m *Manager) Get(ctx context.Context, username string) (Profile, error) {
	m.mu.RLock()
	if e, ok := m.cache[username]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		p := copyProfile(e.profile)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	p, err := m.repo.GetByUsername(ctx, username)
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile %q: %w", username, err)
	}
	p = Normalize(p)

	m.mu.Lock()
	m.cache[username] = cacheEntry{profile: copyProfile(p), cachedAt: m.clock.Now()}
	m.mu.Unlock()
	return p, nil
}

// GetByID returns the profile with the given account id. It bypasses the cache.
func (m *Manager) GetByID(ctx context.Context, id string) (Profile, error) {
	p, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("loading account %s: %w", id, err)
	}
	return Normalize(p), nil
}

// Provision returns the account for email, creating it with defaults on first sign-in.
func (m *Manager) Provision(ctx context.Context, email, name string) (Profile, error) {
	p, err := m.repo.GetByEmail(ctx, email)
	if err == nil {
		return Normalize(p), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, fmt.Errorf("looking up account %q: %w", email, err)
	}

	p = New(uuid.New().String(), name, email)
	now := m.clock.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := m.repo.CreateProfile(ctx, p); err != nil {
		return Profile{}, fmt.Errorf("creating account %q: %w", email, err)
	}
	m.logger.Info("account provisioned", "id", p.ID, "email", email)
	return p, nil
}

// UsernameAvailable reports whether username can be claimed. Malformed names
// are never available.
func (m *Manager) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if ValidateUsername(username) != nil {
		return false, nil
	}
	exists, err := m.repo.UsernameExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("checking username %q: %w", username, err)
	}
	return !exists, nil
}

// ClaimUsername sets the account's username once. Re-claiming the same name is a no-op.
func (m *Manager) ClaimUsername(ctx context.Context, id, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	p, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading account %s: %w", id, err)
	}
	if p.Username == username {
		return nil
	}
	if p.Username != "" {
		return ErrUsernameImmutable
	}
	if err := m.repo.SetUsername(ctx, id, username); err != nil {
		return fmt.Errorf("claiming username %q: %w", username, err)
	}
	m.invalidate(id)
	return nil
}

// UpdateIntro validates and stores the intro exactly as given, returning it.
func (m *Manager) UpdateIntro(ctx context.Context, id, intro string) (string, error) {
	if err := ValidateIntro(intro); err != nil {
		return "", err
	}
	if err := m.repo.UpdateIntro(ctx, id, intro); err != nil {
		return "", fmt.Errorf("updating intro: %w", err)
	}
	m.invalidate(id)
	return intro, nil
}

// UpdateSkills validates and replaces the full skills list.
func (m *Manager) UpdateSkills(ctx context.Context, id string, skills []Skill) error {
	if err := ValidateSkills(skills); err != nil {
		return err
	}
	if err := m.repo.UpdateSkills(ctx, id, append([]Skill(nil), skills...)); err != nil {
		return fmt.Errorf("updating skills: %w", err)
	}
	m.invalidate(id)
	return nil
}

// UpdateWork validates and replaces works[index]. It returns the stored work
// and the previous one.
func (m *Manager) UpdateWork(ctx context.Context, id string, index int, w Work) (Work, Work, error) {
	if err := ValidateWorkIndex(index); err != nil {
		return Work{}, Work{}, err
	}
	v, err := ValidateWork(w)
	if err != nil {
		return Work{}, Work{}, err
	}
	v.PictureURL = w.PictureURL
	prev, err := m.repo.UpdateWork(ctx, id, index, v)
	if err != nil {
		return Work{}, Work{}, fmt.Errorf("updating work %d: %w", index, err)
	}
	if v.PictureURL == "" {
		v.PictureURL = prev.PictureURL
	}
	m.invalidate(id)
	return v, prev, nil
}

// UpdateLinks validates and replaces the social links set.
func (m *Manager) UpdateLinks(ctx context.Context, id string, links Links) error {
	v, err := ValidateLinks(links)
	if err != nil {
		return err
	}
	if err := m.repo.UpdateLinks(ctx, id, v); err != nil {
		return fmt.Errorf("updating links: %w", err)
	}
	m.invalidate(id)
	return nil
}

// invalidate drops every cached entry for the account.
func (m *Manager) invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.cache {
		if e.profile.ID == id {
			delete(m.cache, k)
		}
	}
}

func copyProfile(p Profile) Profile {
	cp := p
	cp.Skills = append([]Skill(nil), p.Skills...)
	cp.Works = append([]Work(nil), p.Works...)
	return cp
}

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/gallery/internal/profile"
)

// Sentinels shared with the profile package so callers can match either.
var (
	ErrNotFound      = profile.ErrNotFound
	ErrUsernameTaken = profile.ErrUsernameTaken
)

// ErrAlreadyExists is returned when creating an account whose email or username is in use.
var ErrAlreadyExists = errors.New("account already exists")

// Job types handled by the background worker.
const (
	JobMediaCleanup = "media_cleanup"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// userRow mirrors the users table. List fields are stored as JSON text.
type userRow struct {
	ID        string
	Name      string
	Email     string
	Username  *string
	Intro     string
	Skills    string
	Works     string
	SNS       string
	CreatedAt string
	UpdatedAt string
}

func newUserRow(p profile.Profile) (userRow, error) {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return userRow{}, fmt.Errorf("encoding skills: %w", err)
	}
	works, err := json.Marshal(p.Works)
	if err != nil {
		return userRow{}, fmt.Errorf("encoding works: %w", err)
	}
	sns, err := json.Marshal(p.SNS)
	if err != nil {
		return userRow{}, fmt.Errorf("encoding sns: %w", err)
	}
	r := userRow{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Intro:     p.Intro,
		Skills:    string(skills),
		Works:     string(works),
		SNS:       string(sns),
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
	if p.Username != "" {
		u := p.Username
		r.Username = &u
	}
	return r, nil
}

func (r userRow) profile() (profile.Profile, error) {
	p := profile.Profile{
		ID:    r.ID,
		Name:  r.Name,
		Email: r.Email,
		Intro: r.Intro,
	}
	if r.Username != nil {
		p.Username = *r.Username
	}
	if err := json.Unmarshal([]byte(r.Skills), &p.Skills); err != nil {
		return profile.Profile{}, fmt.Errorf("decoding skills for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Works), &p.Works); err != nil {
		return profile.Profile{}, fmt.Errorf("decoding works for %s: %w", r.ID, err)
	}
	sns, err := profile.DecodeLinks([]byte(r.SNS))
	if err != nil {
		return profile.Profile{}, fmt.Errorf("decoding sns for %s: %w", r.ID, err)
	}
	p.SNS = sns
	if p.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return profile.Profile{}, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
	}
	if p.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return profile.Profile{}, fmt.Errorf("parsing updated_at for %s: %w", r.ID, err)
	}
	return p, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

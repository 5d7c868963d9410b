// Package postgres stores accounts and the job queue in PostgreSQL through gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/storage"
)

// Store is a gorm-backed implementation of profile.Repository and the job queue.
type Store struct {
	db *gorm.DB
}

var _ profile.Repository = (*Store)(nil)

// Open connects to dsn. Schema changes are applied separately with Migrator.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing DSN")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sdb.SetConnMaxLifetime(30 * time.Minute)
	sdb.SetMaxOpenConns(10)
	sdb.SetMaxIdleConns(5)
	if err := sdb.PingContext(ctx); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{db: gdb}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sdb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sdb.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sdb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sdb.PingContext(ctx)
}

type account struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	Name      string         `gorm:"not null"`
	Email     string         `gorm:"not null;unique"`
	Username  *string        `gorm:"unique"`
	Intro     string         `gorm:"not null"`
	Skills    datatypes.JSON `gorm:"type:jsonb"`
	Works     datatypes.JSON `gorm:"type:jsonb"`
	SNS       datatypes.JSON `gorm:"column:sns;type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (account) TableName() string { return "accounts" }

func toAccount(p profile.Profile) (account, error) {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return account{}, fmt.Errorf("encoding skills: %w", err)
	}
	works, err := json.Marshal(p.Works)
	if err != nil {
		return account{}, fmt.Errorf("encoding works: %w", err)
	}
	sns, err := json.Marshal(p.SNS)
	if err != nil {
		return account{}, fmt.Errorf("encoding sns: %w", err)
	}
	a := account{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Intro:     p.Intro,
		Skills:    datatypes.JSON(skills),
		Works:     datatypes.JSON(works),
		SNS:       datatypes.JSON(sns),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Username != "" {
		u := p.Username
		a.Username = &u
	}
	return a, nil
}

func (a account) profile() (profile.Profile, error) {
	p := profile.Profile{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Intro:     a.Intro,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Username != nil {
		p.Username = *a.Username
	}
	if err := json.Unmarshal(a.Skills, &p.Skills); err != nil {
		return profile.Profile{}, fmt.Errorf("decoding skills for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(a.Works, &p.Works); err != nil {
		return profile.Profile{}, fmt.Errorf("decoding works for %s: %w", a.ID, err)
	}
	sns, err := profile.DecodeLinks(a.SNS)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("decoding sns for %s: %w", a.ID, err)
	}
	p.SNS = sns
	return p, nil
}

func (s *Store) first(ctx context.Context, query string, arg any) (profile.Profile, error) {
	var a account
	err := s.db.WithContext(ctx).Where(query, arg).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return profile.Profile{}, storage.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, err
	}
	return a.profile()
}

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) error {
	a, err := toAccount(p)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(&a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("account %s: %w", p.Email, storage.ErrAlreadyExists)
	}
	return err
}

func (s *Store) GetByID(ctx context.Context, id string) (profile.Profile, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (profile.Profile, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (profile.Profile, error) {
	return s.first(ctx, "email = ?", email)
}

// ListProfiles returns claimed profiles, most recently updated first.
func (s *Store) ListProfiles(ctx context.Context, limit int) ([]profile.Profile, error) {
	var rows []account
	err := s.db.WithContext(ctx).
		Where("username IS NOT NULL").
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]profile.Profile, 0, len(rows))
	for _, a := range rows {
		p, err := a.profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&account{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

func (s *Store) SetUsername(ctx context.Context, id, username string) error {
	res := s.db.WithContext(ctx).Model(&account{}).
		Where("id = ? AND username IS NULL", id).
		Updates(map[string]any{"username": username, "updated_at": time.Now().UTC()})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return storage.ErrUsernameTaken
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Username == username {
		return nil
	}
	return profile.ErrUsernameImmutable
}

func (s *Store) updateColumn(ctx context.Context, id, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&account{}).
		Where("id = ?", id).
		Updates(map[string]any{column: value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateIntro(ctx context.Context, id, intro string) error {
	return s.updateColumn(ctx, id, "intro", intro)
}

func (s *Store) UpdateSkills(ctx context.Context, id string, skills []profile.Skill) error {
	b, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}
	return s.updateColumn(ctx, id, "skills", datatypes.JSON(b))
}

func (s *Store) UpdateLinks(ctx context.Context, id string, links profile.Links) error {
	b, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("encoding sns: %w", err)
	}
	return s.updateColumn(ctx, id, "sns", datatypes.JSON(b))
}

// UpdateWork locks the row, rewrites works[index] and leaves the other entries as stored.
func (s *Store) UpdateWork(ctx context.Context, id string, index int, w profile.Work) (profile.Work, error) {
	var prev profile.Work
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("works").Where("id = ?", id).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		var works []profile.Work
		if err := json.Unmarshal(a.Works, &works); err != nil {
			return fmt.Errorf("decoding works for %s: %w", id, err)
		}
		works = profile.Normalize(profile.Profile{Works: works}).Works
		if index < 0 || index >= len(works) {
			return fmt.Errorf("work index %d out of range", index)
		}

		prev = works[index]
		if w.PictureURL == "" {
			w.PictureURL = prev.PictureURL
		}
		works[index] = w

		b, err := json.Marshal(works)
		if err != nil {
			return fmt.Errorf("encoding works: %w", err)
		}
		return tx.Model(&account{}).Where("id = ?", id).
			Updates(map[string]any{"works": datatypes.JSON(b), "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		return profile.Work{}, err
	}
	return prev, nil
}

// --- Jobs ---

type jobRow struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Type        string
	PayloadJSON string `gorm:"column:payload_json"`
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

func (jobRow) TableName() string { return "jobs" }

func (r jobRow) job() storage.Job {
	return storage.Job{
		ID:          r.ID,
		Type:        r.Type,
		PayloadJSON: r.PayloadJSON,
		Status:      r.Status,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		RunAfter:    r.RunAfter,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		LastError:   r.LastError,
	}
}

func (s *Store) EnqueueJob(ctx context.Context, job storage.Job) error {
	now := time.Now().UTC()
	r := jobRow{
		ID:          job.ID,
		Type:        job.Type,
		PayloadJSON: job.PayloadJSON,
		Status:      "pending",
		MaxAttempts: job.MaxAttempts,
		RunAfter:    job.RunAfter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 3
	}
	if r.RunAfter.IsZero() {
		r.RunAfter = now
	}
	return s.db.WithContext(ctx).Create(&r).Error
}

// ClaimNextJob uses SKIP LOCKED so several workers can poll the same table.
func (s *Store) ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	var claimed *storage.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r jobRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_after <= ? AND type IN ?", "pending", time.Now().UTC(), types).
			Order("run_after ASC, created_at ASC").
			First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting next job: %w", err)
		}
		r.Status = "running"
		r.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&jobRow{}).Where("id = ?", r.ID).
			Updates(map[string]any{"status": r.Status, "updated_at": r.UpdatedAt}).Error; err != nil {
			return fmt.Errorf("updating job status: %w", err)
		}
		j := r.job()
		claimed = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) CompleteJob(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&jobRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": "completed", "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) FailJob(ctx context.Context, id string, errMsg string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r jobRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		attempts := r.Attempts + 1
		updates := map[string]any{"attempts": attempts, "last_error": errMsg, "updated_at": now}
		if attempts >= r.MaxAttempts {
			updates["status"] = "failed"
		} else {
			updates["status"] = "pending"
			updates["run_after"] = now.Add(time.Duration(math.Pow(2, float64(attempts))) * time.Second)
		}
		return tx.Model(&jobRow{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (s *Store) PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{"completed", "failed"}, cutoff.UTC()).
		Delete(&jobRow{})
	return res.RowsAffected, res.Error
}

package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kalambet/gallery/internal/client"
	"github.com/kalambet/gallery/internal/profile"
)

var (
	// ErrReadOnly is returned when submitting a panel the viewer cannot edit.
	ErrReadOnly = errors.New("panel is read-only")
	// ErrReload is returned when the update was saved but the document could
	// not be fetched again. The form should not be resubmitted.
	ErrReload = errors.New("saved, reload failed")
)

// API is the subset of the Profile API the editor calls. *client.Client satisfies it.
type API interface {
	UpdateIntro(ctx context.Context, intro string) error
	UpdateSkills(ctx context.Context, skills []profile.Skill) error
	UpdateWork(ctx context.Context, index int, w profile.Work, img *client.Image) (string, error)
	UpdateLinks(ctx context.Context, links profile.Links) error
}

// ReloadFunc refetches the profile after a successful submit.
type ReloadFunc func(ctx context.Context) (profile.Document, error)

// Editor submits panel forms for one museum and keeps its document current.
type Editor struct {
	api    API
	reload ReloadFunc
	doc    profile.Document
	logger *slog.Logger
}

func NewEditor(api API, doc profile.Document, reload ReloadFunc) *Editor {
	return &Editor{api: api, reload: reload, doc: doc, logger: slog.Default()}
}

// Document returns the latest document.
func (e *Editor) Document() profile.Document { return e.doc }

// Open returns the form for ref pre-populated from the latest document.
func (e *Editor) Open(ref Ref) (Form, error) { return Open(e.doc, ref) }

// Submit validates f locally, sends the single-field update and reloads the
// document. Local validation failures return a *FieldError without any
// network call. A failed reload after a successful update wraps ErrReload.
// Failed requests are not retried.
func (e *Editor) Submit(ctx context.Context, f Form) error {
	if !e.doc.Editable {
		return ErrReadOnly
	}
	if !f.Ref.Valid() {
		return fmt.Errorf("%w: %s", ErrBadRef, f.Ref)
	}

	send, err := e.prepare(f)
	if err != nil {
		return err
	}
	if err := send(ctx); err != nil {
		return fieldFromServer(f.Ref, err)
	}

	doc, err := e.reload(ctx)
	if err != nil {
		e.logger.Warn("panel saved but reload failed", "panel", f.Ref.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrReload, err)
	}
	e.doc = doc
	e.logger.Debug("panel saved", "panel", f.Ref.String())
	return nil
}

// prepare validates the form and returns the request to send.
func (e *Editor) prepare(f Form) (func(context.Context) error, error) {
	switch f.Ref.Kind {
	case Intro:
		intro := f.Get(FieldIntro)
		if err := profile.ValidateIntro(intro); err != nil {
			return nil, localField(err, FieldIntro)
		}
		return func(ctx context.Context) error { return e.api.UpdateIntro(ctx, intro) }, nil

	case Skill:
		level, err := strconv.Atoi(strings.TrimSpace(f.Get(FieldLevel)))
		if err != nil {
			return nil, &FieldError{Field: FieldLevel, Message: "level must be a number"}
		}
		s := profile.Skill{Name: f.Get(FieldName), Level: level}
		if err := profile.ValidateSkill(f.Ref.Index, s); err != nil {
			return nil, localField(err, "")
		}
		skills := profile.DefaultSkills()
		copy(skills, e.doc.Skills)
		skills[f.Ref.Index] = s
		return func(ctx context.Context) error { return e.api.UpdateSkills(ctx, skills) }, nil

	case Work:
		w, err := profile.ValidateWork(profile.Work{
			Title:   f.Get(FieldTitle),
			Desc:    f.Get(FieldDesc),
			SiteURL: f.Get(FieldSiteURL),
		})
		if err != nil {
			return nil, localField(err, "")
		}
		return func(ctx context.Context) error {
			_, err := e.api.UpdateWork(ctx, f.Ref.Index, w, f.Image)
			return err
		}, nil

	case Link:
		url := strings.TrimSpace(f.Get(FieldURL))
		if err := profile.ValidateLink(f.Ref.Provider, url); err != nil {
			return nil, localField(err, FieldURL)
		}
		links := e.doc.SNS.With(f.Ref.Provider, url)
		return func(ctx context.Context) error { return e.api.UpdateLinks(ctx, links) }, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBadRef, f.Ref)
}

// localField turns a profile validation error into a form field error. When
// field is empty the last segment of the validation field name is used.
func localField(err error, field string) error {
	var ve *profile.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	if field == "" {
		field = formField(ve.Field)
	}
	return &FieldError{Field: field, Message: ve.Message}
}

// fieldFromServer attaches API validation and conflict errors to the form
// field they name; other failures pass through unchanged.
func fieldFromServer(ref Ref, err error) error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) || apiErr.Param == "" {
		return err
	}
	if !errors.Is(err, client.ErrValidation) && !errors.Is(err, client.ErrConflict) {
		return err
	}
	field := formField(apiErr.Param)
	switch ref.Kind {
	case Intro:
		field = FieldIntro
	case Link:
		field = FieldURL
	}
	return &FieldError{Field: field, Message: apiErr.Message, Err: err}
}

// formField maps "skills[2].level" to "level".
func formField(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

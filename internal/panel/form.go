package panel

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kalambet/gallery/internal/client"
	"github.com/kalambet/gallery/internal/profile"
)

// Form field names.
const (
	FieldIntro   = "intro"
	FieldName    = "name"
	FieldLevel   = "level"
	FieldTitle   = "title"
	FieldDesc    = "desc"
	FieldSiteURL = "siteUrl"
	FieldURL     = "url"
	FieldImage   = "image"
)

// Field is one input of a form.
type Field struct {
	Name      string
	Label     string
	Value     string
	Multiline bool
}

// Form is an edit form pre-populated from the current profile.
type Form struct {
	Ref    Ref
	Fields []Field
	// Image is an optional upload for work forms.
	Image *client.Image
}

// Get returns the value of the named field.
func (f Form) Get(name string) string {
	for _, fl := range f.Fields {
		if fl.Name == name {
			return fl.Value
		}
	}
	return ""
}

// Set updates the named field. Unknown names are an error.
func (f *Form) Set(name, value string) error {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			f.Fields[i].Value = value
			return nil
		}
	}
	return fmt.Errorf("form %s has no field %q", f.Ref, name)
}

// ErrBadRef is returned for refs that address no panel.
var ErrBadRef = errors.New("no such panel")

// Open builds the form for ref from doc.
func Open(doc profile.Document, ref Ref) (Form, error) {
	if !ref.Valid() {
		return Form{}, fmt.Errorf("%w: %s", ErrBadRef, ref)
	}
	f := Form{Ref: ref}
	switch ref.Kind {
	case Intro:
		f.Fields = []Field{{Name: FieldIntro, Label: "Self-introduction", Value: doc.Intro, Multiline: true}}
	case Skill:
		var s profile.Skill
		if ref.Index < len(doc.Skills) {
			s = doc.Skills[ref.Index]
		}
		f.Fields = []Field{
			{Name: FieldName, Label: "Skill", Value: s.Name},
			{Name: FieldLevel, Label: "Level (1-5)", Value: strconv.Itoa(s.Level)},
		}
	case Work:
		var w profile.Work
		if ref.Index < len(doc.Works) {
			w = doc.Works[ref.Index]
		}
		f.Fields = []Field{
			{Name: FieldTitle, Label: "Title", Value: w.Title},
			{Name: FieldDesc, Label: "Description", Value: w.Desc, Multiline: true},
			{Name: FieldSiteURL, Label: "Site URL", Value: w.SiteURL},
		}
	case Link:
		f.Fields = []Field{{Name: FieldURL, Label: ref.Provider.Label() + " URL", Value: doc.SNS.Get(ref.Provider)}}
	}
	return f, nil
}

// FieldError is a validation failure attached to one form field. Err is the
// server error when the rejection came back from the API, nil when the form
// was rejected locally.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return e.Err }

package profile

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// Field bounds. Text lengths are in characters after NFC normalization.
// The validate tags below must agree with them.
const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
	IntroMaxLen    = 40
	SkillNameMax   = 20
	SkillLevelMin  = 1
	SkillLevelMax  = 5
	WorkTitleMax   = 20
	WorkDescMax    = 100
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidationError reports a rejected field. Message is safe to show verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NormalizeText trims surrounding space and applies NFC so that composed and
// decomposed input count the same. It is used for measuring only; stored
// text keeps the form it was submitted in.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func textLen(s string) int {
	return utf8.RuneCountInString(NormalizeText(s))
}

type usernameForm struct {
	Username string `json:"username" validate:"min=3,max=20,username"`
}

type introForm struct {
	Intro string `json:"intro" validate:"filled,textmax=40"`
}

type skillsForm struct {
	Skills []Skill `json:"skills" validate:"required,min=1,len=5,dive"`
}

type workIndexForm struct {
	Index int `json:"index" validate:"min=0,max=3"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("profile: registering %s validator: %v", tag, err))
		}
	}
	must("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	must("filled", func(fl validator.FieldLevel) bool {
		return NormalizeText(fl.Field().String()) != ""
	})
	must("textmax", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return textLen(fl.Field().String()) <= limit
	})
	must("provider", func(fl validator.FieldLevel) bool {
		p, err := ParseProvider(fl.Param())
		if err != nil {
			return false
		}
		return hasProviderPrefix(p, fl.Field().String())
	})
	return v
}

func hasProviderPrefix(p Provider, link string) bool {
	prefixes := p.prefixes()
	if prefixes == nil {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(link, prefix) && len(link) > len(prefix) {
			return true
		}
	}
	return false
}

// check runs the struct validators and maps the first failure to a
// *ValidationError. prefix is prepended to the reported field path.
func check(v any, prefix string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	return &ValidationError{Field: prefix + fieldPath(fe), Message: message(fe)}
}

// fieldPath drops the struct name from a namespace like "skillsForm.skills[3].level".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	switch tag {
	case "filled":
		switch field {
		case "intro":
			return "please enter a self-introduction"
		case "name":
			return "please enter a skill name"
		}
		return "nothing has been entered"
	case "textmax":
		if field == "title" || field == "desc" {
			return "up to " + param + " characters"
		}
		return "must be " + param + " characters or fewer"
	case "username":
		return "only letters, digits and underscore are allowed"
	case "required":
		if field == "skills" {
			return "please enter your skills"
		}
		return "is required"
	case "min", "max":
		switch field {
		case "username":
			return fmt.Sprintf("must be %d-%d characters", UsernameMinLen, UsernameMaxLen)
		case "level":
			return fmt.Sprintf("must be between %d and %d", SkillLevelMin, SkillLevelMax)
		case "index":
			return fmt.Sprintf("must be between 0 and %d", WorkCount-1)
		case "skills":
			return "please enter your skills"
		}
	case "len":
		if field == "skills" {
			return fmt.Sprintf("exactly %d skills are required", SkillCount)
		}
	case "http_url":
		if field == "siteUrl" {
			return "must be an http(s) URL"
		}
		return field + " link format is incorrect"
	case "provider":
		return field + " link format is incorrect"
	}
	return "failed " + tag + " check"
}

// ValidateUsername checks the claimable username format.
func ValidateUsername(username string) error {
	return check(usernameForm{Username: username}, "")
}

// ValidateIntro checks the intro. The text itself is stored unchanged.
func ValidateIntro(intro string) error {
	return check(introForm{Intro: intro}, "")
}

// ValidateSkill checks one skill badge at position i.
func ValidateSkill(i int, s Skill) error {
	return check(s, fmt.Sprintf("skills[%d].", i))
}

// ValidateSkills checks the full skills list, which must have exactly SkillCount entries.
func ValidateSkills(skills []Skill) error {
	return check(skillsForm{Skills: skills}, "")
}

// ValidateWorkIndex checks that index addresses one of the fixed work slots.
func ValidateWorkIndex(index int) error {
	return check(workIndexForm{Index: index}, "")
}

// ValidateWork checks the editable text of one work and returns it with the
// site URL trimmed. Title and description are returned as given.
// PictureURL is not checked here.
func ValidateWork(w Work) (Work, error) {
	w.SiteURL = strings.TrimSpace(w.SiteURL)
	if err := check(w, ""); err != nil {
		return Work{}, err
	}
	return w, nil
}

// ValidateLink checks one provider URL. Empty is valid and means unset.
func ValidateLink(p Provider, link string) error {
	_, err := ValidateLinks(Links{}.With(p, link))
	return err
}

// ValidateLinks checks every provider slot and returns the trimmed set.
func ValidateLinks(l Links) (Links, error) {
	for _, p := range Providers {
		l = l.With(p, strings.TrimSpace(l.Get(p)))
	}
	if err := check(l, ""); err != nil {
		return Links{}, err
	}
	return l, nil
}

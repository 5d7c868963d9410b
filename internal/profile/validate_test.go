package profile

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ab", false},
		{"abc", true},
		{"valid_user_1", true},
		{strings.Repeat("a", 20), true},
		{strings.Repeat("a", 21), false},
		{"has space", false},
		{"dash-name", false},
		{"ユーザー名", false},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.in)
		if (err == nil) != tt.want {
			t.Errorf("ValidateUsername(%q) = %v, want ok=%v", tt.in, err, tt.want)
		}
	}
}

func TestValidateIntro(t *testing.T) {
	err := ValidateIntro("   ")
	ve, ok := err.(*ValidationError)
	if !ok || ve.Field != "intro" || ve.Message != "please enter a self-introduction" {
		t.Errorf("blank intro: got %v", err)
	}
	err = ValidateIntro(strings.Repeat("x", IntroMaxLen+1))
	if ve, ok := err.(*ValidationError); !ok || ve.Message != "must be 40 characters or fewer" {
		t.Errorf("long intro: got %v", err)
	}

	// 40 multi-byte characters fit even though they exceed 40 bytes.
	if err := ValidateIntro(strings.Repeat("美", IntroMaxLen)); err != nil {
		t.Errorf("40 runes rejected: %v", err)
	}

	// Decomposed input counts as its composed form, and padding is not counted.
	decomposed := "  " + strings.Repeat("e\u0301", IntroMaxLen) + "  "
	if err := ValidateIntro(decomposed); err != nil {
		t.Errorf("decomposed intro rejected: %v", err)
	}
}

func TestValidateSkills(t *testing.T) {
	for _, in := range [][]Skill{nil, {}} {
		err := ValidateSkills(in)
		if ve, ok := err.(*ValidationError); !ok || ve.Message != "please enter your skills" {
			t.Errorf("ValidateSkills(%#v) = %v", in, err)
		}
	}
	err := ValidateSkills(DefaultSkills()[:4])
	if ve, ok := err.(*ValidationError); !ok || ve.Message != "exactly 5 skills are required" {
		t.Errorf("four skills: got %v", err)
	}

	bad := DefaultSkills()
	bad[3].Level = 6
	err = ValidateSkills(bad)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if ve.Field != "skills[3].level" || ve.Message != "must be between 1 and 5" {
		t.Errorf("error = %+v", ve)
	}

	blank := DefaultSkills()
	blank[0].Name = " \t"
	err = ValidateSkills(blank)
	if ve, ok := err.(*ValidationError); !ok || ve.Field != "skills[0].name" {
		t.Errorf("blank name: got %v", err)
	}

	if err := ValidateSkills(DefaultSkills()); err != nil {
		t.Errorf("defaults rejected: %v", err)
	}
}

func TestValidateSkill_FieldPath(t *testing.T) {
	err := ValidateSkill(2, Skill{Name: strings.Repeat("n", SkillNameMax+1), Level: 3})
	ve, ok := err.(*ValidationError)
	if !ok || ve.Field != "skills[2].name" {
		t.Errorf("got %v", err)
	}
	if err := ValidateSkill(2, Skill{Name: strings.Repeat("n", SkillNameMax), Level: 3}); err != nil {
		t.Errorf("max length rejected: %v", err)
	}
}

func TestValidateWorkIndex(t *testing.T) {
	for i := 0; i < WorkCount; i++ {
		if err := ValidateWorkIndex(i); err != nil {
			t.Errorf("index %d rejected: %v", i, err)
		}
	}
	for _, i := range []int{-1, WorkCount} {
		err := ValidateWorkIndex(i)
		if ve, ok := err.(*ValidationError); !ok || ve.Field != "index" {
			t.Errorf("index %d: got %v", i, err)
		}
	}
}

func TestSkillUnmarshal_StringLevel(t *testing.T) {
	var skills []Skill
	data := `[{"name":"Go","level":"4"},{"name":"SQL","level":2}]`
	if err := json.Unmarshal([]byte(data), &skills); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if skills[0].Level != 4 || skills[1].Level != 2 {
		t.Errorf("levels = %d, %d", skills[0].Level, skills[1].Level)
	}

	var s Skill
	if err := json.Unmarshal([]byte(`{"name":"Go","level":"high"}`), &s); err == nil {
		t.Error("expected error for non-numeric level")
	}
}

func TestValidateWork(t *testing.T) {
	tests := []struct {
		name string
		work Work
		ok   bool
	}{
		{"valid", Work{Title: "Site", Desc: "A site", SiteURL: "https://example.com"}, true},
		{"no url", Work{Title: "Site", Desc: "A site"}, true},
		{"empty title", Work{Desc: "A site"}, false},
		{"long title", Work{Title: strings.Repeat("t", WorkTitleMax+1), Desc: "d"}, false},
		{"long desc", Work{Title: "t", Desc: strings.Repeat("d", WorkDescMax+1)}, false},
		{"bad url", Work{Title: "t", Desc: "d", SiteURL: "ftp://example.com"}, false},
		{"relative url", Work{Title: "t", Desc: "d", SiteURL: "/local"}, false},
		{"padded url", Work{Title: "t", Desc: "d", SiteURL: " https://example.com "}, true},
		{"max title", Work{Title: strings.Repeat("t", WorkTitleMax), Desc: strings.Repeat("d", WorkDescMax)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateWork(tt.work)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateWork = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestValidateLink(t *testing.T) {
	tests := []struct {
		p    Provider
		url  string
		want bool
	}{
		{GitHub, "", true},
		{GitHub, "https://github.com/kalambet", true},
		{GitHub, "https://github.com/", false},
		{GitHub, "https://gitlab.com/kalambet", false},
		{X, "https://x.com/someone", true},
		{X, "https://twitter.com/someone", true},
		{Zenn, "https://zenn.dev/someone", true},
		{Qiita, "https://qiita.com/someone", true},
		{Qiita, "http://qiita.com/someone", false},
		{Other, "https://blog.example.org", true},
		{Other, "mailto:me@example.org", false},
	}
	for _, tt := range tests {
		err := ValidateLink(tt.p, tt.url)
		if (err == nil) != tt.want {
			t.Errorf("ValidateLink(%s, %q) = %v, want ok=%v", tt.p, tt.url, err, tt.want)
		}
	}
}

func TestDecodeLinks(t *testing.T) {
	l, err := DecodeLinks([]byte(`{"github":"https://github.com/a","twitter":"https://twitter.com/a"}`))
	if err != nil {
		t.Fatalf("DecodeLinks: %v", err)
	}
	if l.GitHub != "https://github.com/a" || l.X != "https://twitter.com/a" {
		t.Errorf("decoded = %+v", l)
	}

	if _, err := DecodeLinks([]byte(`{"myspace":"https://myspace.com/a"}`)); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestDecodeLinks_XAndTwitterConflict(t *testing.T) {
	data := []byte(`{"x":"https://x.com/a","twitter":"https://twitter.com/b"}`)
	for i := 0; i < 50; i++ {
		if _, err := DecodeLinks(data); !errors.Is(err, ErrDuplicateProvider) {
			t.Fatalf("attempt %d: expected ErrDuplicateProvider, got %v", i, err)
		}
	}
}

func TestValidateLinks_FieldNames(t *testing.T) {
	_, err := ValidateLinks(Links{GitHub: "https://github.com/a", Zenn: "https://qiita.com/a"})
	ve, ok := err.(*ValidationError)
	if !ok || ve.Field != "zenn" || ve.Message != "zenn link format is incorrect" {
		t.Errorf("got %v", err)
	}

	l, err := ValidateLinks(Links{X: "  https://x.com/a  "})
	if err != nil {
		t.Fatalf("ValidateLinks: %v", err)
	}
	if l.X != "https://x.com/a" {
		t.Errorf("x = %q, want trimmed", l.X)
	}
}

func TestLinks_WithIsExhaustive(t *testing.T) {
	var l Links
	for _, p := range Providers {
		l = l.With(p, "https://example.com/"+p.String())
	}
	for _, p := range Providers {
		if got := l.Get(p); got != "https://example.com/"+p.String() {
			t.Errorf("Get(%s) = %q", p, got)
		}
	}
}

func TestDocument_ViewerFlags(t *testing.T) {
	p := New("u1", "Owner", "o@example.com")

	anon := p.Document(nil)
	if anon.Editable || anon.LoginUser != nil {
		t.Errorf("anonymous document = editable %v, loginUser %v", anon.Editable, anon.LoginUser)
	}

	other := p.Document(&Viewer{ID: "u2", Name: "Guest"})
	if other.Editable || other.LoginUser == nil || *other.LoginUser != "Guest" {
		t.Errorf("guest document = %+v", other)
	}

	owner := p.Document(&Viewer{ID: "u1", Name: "Owner"})
	if !owner.Editable {
		t.Error("owner document is not editable")
	}
}

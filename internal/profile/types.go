package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed cardinalities baked into the museum layout.
const (
	SkillCount = 5
	WorkCount  = 4
)

// Profile is one account's museum: identity plus the editable exhibits.
type Profile struct {
	ID        string
	Name      string
	Email     string
	Username  string // empty until claimed
	Intro     string
	Skills    []Skill
	Works     []Work
	SNS       Links
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Skill is one skill badge. Level is 1..5.
type Skill struct {
	Name  string `json:"name" validate:"filled,textmax=20"`
	Level int    `json:"level" validate:"min=1,max=5"`
}

// UnmarshalJSON accepts the level as a number or a numeric string; older rows
// stored it as a string.
func (s *Skill) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Level json.RawMessage `json:"level"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.Level = 0
	if len(raw.Level) == 0 || string(raw.Level) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw.Level, &n); err == nil {
		s.Level = n
		return nil
	}
	var str string
	if err := json.Unmarshal(raw.Level, &str); err != nil {
		return fmt.Errorf("skill level: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		return fmt.Errorf("skill level %q is not a number", str)
	}
	s.Level = n
	return nil
}

// Work is one showcased project painting.
type Work struct {
	Title      string `json:"title" validate:"filled,textmax=20"`
	Desc       string `json:"desc" validate:"filled,textmax=100"`
	SiteURL    string `json:"siteUrl" validate:"omitempty,http_url"`
	PictureURL string `json:"pictureUrl"`
}

// Document is the profile as served to a viewer. Editable and LoginUser are
// derived from the viewing session.
type Document struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Username  string  `json:"username"`
	Intro     string  `json:"intro"`
	Skills    []Skill `json:"skills"`
	Works     []Work  `json:"works"`
	SNS       Links   `json:"sns"`
	Editable  bool    `json:"editable"`
	LoginUser *string `json:"loginUser"`
}

// Viewer identifies the authenticated session looking at a profile.
type Viewer struct {
	ID   string
	Name string
}

// Document builds the viewer-specific document. A nil viewer is anonymous.
func (p Profile) Document(viewer *Viewer) Document {
	d := Document{
		ID:       p.ID,
		Name:     p.Name,
		Username: p.Username,
		Intro:    p.Intro,
		Skills:   append([]Skill(nil), p.Skills...),
		Works:    append([]Work(nil), p.Works...),
		SNS:      p.SNS,
	}
	if viewer != nil {
		name := viewer.Name
		d.LoginUser = &name
		d.Editable = viewer.ID == p.ID
	}
	return d
}

// Profile returns the exhibit content of d. Email and timestamps are not
// part of a document and stay zero.
func (d Document) Profile() Profile {
	return Profile{
		ID:       d.ID,
		Name:     d.Name,
		Username: d.Username,
		Intro:    d.Intro,
		Skills:   append([]Skill(nil), d.Skills...),
		Works:    append([]Work(nil), d.Works...),
		SNS:      d.SNS,
	}
}

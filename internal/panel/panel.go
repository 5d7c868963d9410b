// Package panel models the edit affordances attached to museum exhibits:
// which panels exist, their forms, local validation and submission.
package panel

import (
	"fmt"

	"github.com/kalambet/gallery/internal/profile"
)

// Kind is the profile field a panel edits.
type Kind int

const (
	Intro Kind = iota
	Skill
	Work
	Link
)

func (k Kind) String() string {
	switch k {
	case Intro:
		return "intro"
	case Skill:
		return "skill"
	case Work:
		return "work"
	case Link:
		return "link"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Ref addresses one panel. Index is used by Skill and Work, Provider by Link.
type Ref struct {
	Kind     Kind
	Index    int
	Provider profile.Provider
}

func (r Ref) String() string {
	switch r.Kind {
	case Intro:
		return "intro"
	case Skill:
		return fmt.Sprintf("skills[%d]", r.Index)
	case Work:
		return fmt.Sprintf("works[%d]", r.Index)
	case Link:
		return "sns." + r.Provider.String()
	}
	return r.Kind.String()
}

// Valid reports whether r addresses an existing slot.
func (r Ref) Valid() bool {
	switch r.Kind {
	case Intro:
		return true
	case Skill:
		return r.Index >= 0 && r.Index < profile.SkillCount
	case Work:
		return r.Index >= 0 && r.Index < profile.WorkCount
	case Link:
		for _, p := range profile.Providers {
			if p == r.Provider {
				return true
			}
		}
	}
	return false
}

// Panel describes one exhibit's edit affordance as seen by the current viewer.
type Panel struct {
	Ref      Ref
	Title    string
	Editable bool
	// Visible is false for unset links the viewer cannot edit.
	Visible bool
}

// For lists every panel of doc in display order: intro, skills, works, links.
func For(doc profile.Document) []Panel {
	var out []Panel
	out = append(out, Panel{Ref: Ref{Kind: Intro}, Title: "Introduction", Editable: doc.Editable, Visible: true})
	for i := 0; i < profile.SkillCount; i++ {
		title := fmt.Sprintf("Skill %d", i+1)
		if i < len(doc.Skills) {
			title = SkillPlate(doc.Skills[i])
		}
		out = append(out, Panel{Ref: Ref{Kind: Skill, Index: i}, Title: title, Editable: doc.Editable, Visible: true})
	}
	for i := 0; i < profile.WorkCount; i++ {
		title := fmt.Sprintf("Work %d", i+1)
		if i < len(doc.Works) {
			title = doc.Works[i].Title
		}
		out = append(out, Panel{Ref: Ref{Kind: Work, Index: i}, Title: title, Editable: doc.Editable, Visible: true})
	}
	for _, p := range profile.Providers {
		out = append(out, Panel{
			Ref:      Ref{Kind: Link, Provider: p},
			Title:    p.Label(),
			Editable: doc.Editable,
			Visible:  LinkVisible(doc.SNS, p, doc.Editable),
		})
	}
	return out
}

// LinkVisible reports whether the link painting for p is shown: owners see
// every slot, everyone else only the filled ones.
func LinkVisible(links profile.Links, p profile.Provider, editable bool) bool {
	return editable || links.Get(p) != ""
}

// SkillPlate is the text on a skill's name plate.
func SkillPlate(s profile.Skill) string {
	return fmt.Sprintf("Lv.%d %s", s.Level, s.Name)
}

package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kalambet/gallery/internal/client"
	"github.com/kalambet/gallery/internal/panel"
)

// editForm is the open edit panel: one text input per form field, plus an
// image path for works.
type editForm struct {
	form   panel.Form
	inputs []textinput.Model
	labels []string
	names  []string
	focus  int

	fieldErr   *panel.FieldError
	err        string
	submitting bool
}

func newEditForm(f panel.Form) *editForm {
	ef := &editForm{form: f}
	for _, fl := range f.Fields {
		ef.add(fl.Name, fl.Label, fl.Value)
	}
	if f.Ref.Kind == panel.Work {
		ef.add(panel.FieldImage, "Image file (optional)", "")
	}
	ef.inputs[0].Focus()
	return ef
}

func (ef *editForm) add(name, label, value string) {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 200
	in.Width = 36
	in.SetValue(value)
	ef.inputs = append(ef.inputs, in)
	ef.labels = append(ef.labels, label)
	ef.names = append(ef.names, name)
}

func (ef *editForm) move(delta int) tea.Cmd {
	ef.inputs[ef.focus].Blur()
	ef.focus = (ef.focus + delta + len(ef.inputs)) % len(ef.inputs)
	return ef.inputs[ef.focus].Focus()
}

func (ef *editForm) last() bool { return ef.focus == len(ef.inputs)-1 }

func (ef *editForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	ef.inputs[ef.focus], cmd = ef.inputs[ef.focus].Update(msg)
	return cmd
}

// collect copies the inputs into the panel form. An image path is opened and
// returned so the caller can close it once the upload is done.
func (ef *editForm) collect() (panel.Form, *os.File, error) {
	f := ef.form
	f.Fields = append([]panel.Field(nil), ef.form.Fields...)
	f.Image = nil
	var file *os.File
	for i, name := range ef.names {
		v := ef.inputs[i].Value()
		if name != panel.FieldImage {
			if err := f.Set(name, v); err != nil {
				return panel.Form{}, nil, err
			}
			continue
		}
		path := strings.TrimSpace(v)
		if path == "" {
			continue
		}
		fh, err := os.Open(path)
		if err != nil {
			return panel.Form{}, nil, &panel.FieldError{Field: panel.FieldImage, Message: "cannot open file"}
		}
		file = fh
		f.Image = &client.Image{Filename: filepath.Base(path), Data: fh}
	}
	return f, file, nil
}

func (ef *editForm) view(st styles) string {
	var b strings.Builder
	b.WriteString(st.title.Render("Edit " + ef.form.Ref.String()))
	b.WriteString("\n\n")
	for i, in := range ef.inputs {
		b.WriteString(st.label.Render(ef.labels[i]))
		b.WriteString("\n")
		b.WriteString(in.View())
		b.WriteString("\n")
		if ef.fieldErr != nil && ef.fieldErr.Field == ef.names[i] {
			b.WriteString(st.errText.Render(ef.fieldErr.Message))
			b.WriteString("\n")
		}
	}
	if ef.fieldErr != nil && !ef.hasField(ef.fieldErr.Field) {
		b.WriteString(st.errText.Render(ef.fieldErr.Error()))
		b.WriteString("\n")
	}
	if ef.err != "" {
		b.WriteString(st.errText.Render(ef.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if ef.submitting {
		b.WriteString(st.help.Render("saving..."))
	} else {
		b.WriteString(st.help.Render(fmt.Sprintf("tab next · enter %s · esc cancel", ef.enterAction())))
	}
	return b.String()
}

func (ef *editForm) hasField(name string) bool {
	for _, n := range ef.names {
		if n == name {
			return true
		}
	}
	return false
}

func (ef *editForm) enterAction() string {
	if ef.last() {
		return "save"
	}
	return "next"
}

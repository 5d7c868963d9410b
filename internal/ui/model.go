package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/gallery/internal/client"
	"github.com/kalambet/gallery/internal/navigation"
	"github.com/kalambet/gallery/internal/panel"
	"github.com/kalambet/gallery/internal/physics"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/scene"
)

const (
	frameRate = 30
	frameDT   = 1.0 / frameRate
	focusDist = 80.0
	sideWidth = 46

	orbitStep = 0.1
	zoomStep  = 5.0
)

// Source loads a museum and accepts edits to it. *client.Client satisfies it.
type Source interface {
	Profile(ctx context.Context, username string) (profile.Document, error)
	panel.API
}

type tickMsg time.Time

type loadedMsg struct {
	doc profile.Document
	err error
}

type submittedMsg struct {
	err error
}

type model struct {
	ctx      context.Context
	src      Source
	username string
	logger   *slog.Logger

	doc    profile.Document
	editor *panel.Editor
	scene  scene.Scene

	world *physics.World
	body  *physics.Body
	ctrl  *navigation.Controller
	latch holdLatch
	clock float64

	focus    scene.Node
	hasFocus bool
	form     *editForm

	status  string
	isError bool

	styles   styles
	renderer *glamour.TermRenderer
	mdSource string
	mdOut    string

	width, height int
}

func newModel(ctx context.Context, src Source, username string, doc profile.Document) *model {
	m := &model{
		ctx:      ctx,
		src:      src,
		username: username,
		logger:   slog.Default(),
		styles:   newStyles(defaultPalette),
	}

	// Colliders do not depend on profile content, so the world is built once.
	reg := navigation.DefaultRegistry()
	home, _ := reg.Lookup(navigation.Home)
	m.body = physics.NewBody(home.Position, navigation.BodyRadius)
	m.world = physics.NewWorld(0, scene.WallHeight)
	m.world.SetDamping(navigation.LinearDamping)
	m.world.AddBody(m.body)
	m.ctrl = navigation.NewController(m.body, reg)
	m.ctrl.Frame(0, navigation.Keys{})

	m.setDocument(doc)
	m.world.AddStatic(m.scene.Colliders()...)
	m.refocus()

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(sideWidth-4))
	if err != nil {
		m.logger.Debug("markdown renderer unavailable", "error", err)
	} else {
		m.renderer = r
	}
	return m
}

func (m *model) setDocument(doc profile.Document) {
	m.doc = doc
	m.scene = scene.Layout(doc.Profile(), doc.Editable)
	m.editor = panel.NewEditor(m.src, doc, m.fetch)
}

func (m *model) fetch(ctx context.Context) (profile.Document, error) {
	return m.src.Profile(ctx, m.username)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) Init() tea.Cmd { return tick() }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		m.step()
		return m, tick()

	case loadedMsg:
		if msg.err != nil {
			m.setStatus(true, "reload failed: %v", msg.err)
			return m, nil
		}
		m.setDocument(msg.doc)
		m.refocus()
		m.setStatus(false, "reloaded")
		return m, nil

	case submittedMsg:
		return m, m.submitted(msg.err)

	case tea.KeyMsg:
		if m.form != nil {
			return m, m.formKey(msg)
		}
		return m, m.walkKey(msg)
	}
	return m, nil
}

// step runs one frame: controller first, then physics.
func (m *model) step() {
	m.clock += frameDT
	keys := m.latch.keys(m.clock)
	if m.form != nil {
		keys = navigation.Keys{}
	}
	m.ctrl.Frame(frameDT, keys)
	m.world.Step(frameDT)
	m.refocus()
}

func (m *model) refocus() {
	cam := m.ctrl.Camera()
	m.focus, m.hasFocus = m.scene.Focus(cam.Position, cam.Forward(), focusDist)
}

func (m *model) walkKey(msg tea.KeyMsg) tea.Cmd {
	mode, _ := m.ctrl.State()
	orbit := mode == navigation.Orbit

	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "w":
		if orbit {
			m.ctrl.OrbitInput(0, orbitStep, 0)
		} else {
			m.latch.press(ctrlForward, m.clock)
		}
	case "down", "s":
		if orbit {
			m.ctrl.OrbitInput(0, -orbitStep, 0)
		} else {
			m.latch.press(ctrlBackward, m.clock)
		}
	case "left", "a":
		if orbit {
			m.ctrl.OrbitInput(-orbitStep, 0, 0)
		} else {
			m.latch.press(ctrlLeft, m.clock)
		}
	case "right", "d":
		if orbit {
			m.ctrl.OrbitInput(orbitStep, 0, 0)
		} else {
			m.latch.press(ctrlRight, m.clock)
		}
	case "+", "=":
		m.ctrl.OrbitInput(0, 0, -zoomStep)
	case "-":
		m.ctrl.OrbitInput(0, 0, zoomStep)
	case "1", "2", "3", "4":
		key := navigation.LocationKey(msg.Runes[0] - '1')
		m.latch.release()
		m.ctrl.Teleport(key)
		m.setStatus(false, "teleported to %s", key)
	case "o":
		m.latch.release()
		if orbit {
			m.ctrl.SetMode(navigation.FirstPerson)
		} else {
			m.ctrl.SetMode(navigation.Orbit)
		}
	case "e":
		return m.openForm()
	case "r":
		m.setStatus(false, "reloading...")
		return m.reload()
	case "esc":
		m.status = ""
	}
	return nil
}

func (m *model) reload() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		doc, err := m.fetch(ctx)
		return loadedMsg{doc: doc, err: err}
	}
}

func (m *model) openForm() tea.Cmd {
	if !m.hasFocus {
		m.setStatus(true, "nothing to edit here: face a painting first")
		return nil
	}
	if !m.doc.Editable {
		if m.doc.LoginUser == nil {
			m.setStatus(true, "sign in to edit: gallery account login")
		} else {
			m.setStatus(true, "only the owner can edit this museum")
		}
		return nil
	}
	f, err := m.editor.Open(*m.focus.Panel)
	if err != nil {
		m.setStatus(true, "%v", err)
		return nil
	}
	m.latch.release()
	m.form = newEditForm(f)
	m.status = ""
	return nil
}

func (m *model) formKey(msg tea.KeyMsg) tea.Cmd {
	ef := m.form
	if ef.submitting {
		return nil
	}
	switch msg.String() {
	case "esc":
		m.form = nil
		m.setStatus(false, "edit cancelled")
		return nil
	case "tab", "down":
		return ef.move(1)
	case "shift+tab", "up":
		return ef.move(-1)
	case "enter":
		if !ef.last() {
			return ef.move(1)
		}
		return m.submit()
	}
	return ef.update(msg)
}

func (m *model) submit() tea.Cmd {
	ef := m.form
	f, file, err := ef.collect()
	if err != nil {
		var fe *panel.FieldError
		if errors.As(err, &fe) {
			ef.fieldErr = fe
		} else {
			ef.err = err.Error()
		}
		return nil
	}
	ef.fieldErr, ef.err = nil, ""
	ef.submitting = true

	ctx, ed := m.ctx, m.editor
	return func() tea.Msg {
		err := ed.Submit(ctx, f)
		if file != nil {
			file.Close()
		}
		return submittedMsg{err: err}
	}
}

func (m *model) submitted(err error) tea.Cmd {
	ef := m.form
	if ef == nil {
		return nil
	}
	ef.submitting = false

	var fe *panel.FieldError
	switch {
	case err == nil:
		ref := ef.form.Ref
		m.form = nil
		m.setDocument(m.editor.Document())
		m.refocus()
		m.setStatus(false, "saved %s", ref)
	case errors.Is(err, panel.ErrReload):
		m.form = nil
		m.setStatus(true, "%s: %v", ef.form.Ref, err)
	case errors.As(err, &fe):
		ef.fieldErr = fe
	case errors.Is(err, client.ErrUnauthorized):
		m.form = nil
		m.setStatus(true, "session expired: sign in again with gallery account login")
	default:
		m.logger.Debug("panel submit failed", "error", err)
		ef.err = err.Error()
	}
	return nil
}

func (m *model) setStatus(isErr bool, format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.isError = isErr
}

func (m *model) View() string {
	st := m.styles
	grid := mapGrid(m.scene, m.ctrl.Camera(), mapCols, mapRows)
	mapView := m.renderMap(grid)

	var side string
	if m.form != nil {
		side = m.form.view(st)
	} else {
		side = m.renderMarkdown(focusMarkdown(m.doc, m.focus, m.hasFocus))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, mapView, st.side.Width(sideWidth).Render(side))

	return lipgloss.JoinVertical(lipgloss.Left, m.topBar(), body, m.bottomBar())
}

func (m *model) topBar() string {
	mode, phase := m.ctrl.State()
	near := "-"
	if k, ok := m.ctrl.Current(); ok {
		near = k.String()
	}
	name := m.doc.Name
	if name == "" {
		name = m.username
	}
	title := m.styles.title.Render(name + "'s museum")
	info := m.styles.bar.Render(fmt.Sprintf("  @%s · %s · %s · near %s", m.username, mode, phase, near))
	return title + info
}

func (m *model) bottomBar() string {
	help := "↑↓←→ walk · 1-4 teleport · o orbit · e edit · r reload · q quit"
	if m.form != nil {
		help = "editing: tab next · enter save · esc cancel"
	}
	line := m.styles.help.Render(help)
	if m.status == "" {
		return line
	}
	st := m.styles.status
	if m.isError {
		st = m.styles.errText
	}
	return line + "\n" + st.Render(m.status)
}

func (m *model) renderMap(grid [][]rune) string {
	st := m.styles
	focusCol, focusRow, focusOK := -1, -1, false
	if m.hasFocus {
		focusCol, focusRow, focusOK = cellOf(m.focus.Position, mapCols, mapRows)
	}
	nearGlyph := rune(0)
	if k, ok := m.ctrl.Current(); ok {
		nearGlyph = rune('1' + int(k))
	}

	var b strings.Builder
	for r, row := range grid {
		for c, g := range row {
			s := string(g)
			switch {
			case focusOK && r == focusRow && c == focusCol:
				b.WriteString(st.focused.Render(s))
			case g == glyphFloor:
				b.WriteString(st.floor.Render(s))
			case g == glyphWall || g == glyphBench || g == glyphPlant:
				b.WriteString(st.wall.Render(s))
			case g == nearGlyph:
				b.WriteString(st.near.Render(s))
			case g >= '1' && g <= '4':
				b.WriteString(st.marker.Render(s))
			case strings.ContainsRune(string(arrows), g):
				b.WriteString(st.player.Render(s))
			default:
				b.WriteString(st.painting.Render(s))
			}
		}
		if r < len(grid)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m *model) renderMarkdown(md string) string {
	if m.renderer == nil {
		return md
	}
	if md == m.mdSource && m.mdOut != "" {
		return m.mdOut
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	m.mdSource, m.mdOut = md, out
	return out
}

// focusMarkdown describes the focused exhibit.
func focusMarkdown(doc profile.Document, n scene.Node, ok bool) string {
	if !ok {
		return "## Look around\n\nWalk up to a painting to read it. Press `1`-`4` to jump between halls."
	}
	var b strings.Builder
	ref := *n.Panel
	switch ref.Kind {
	case panel.Intro:
		fmt.Fprintf(&b, "## %s\n\n%s\n", doc.Name, n.Text)
	case panel.Skill:
		fmt.Fprintf(&b, "## %s\n\n*Skill %d of %d*\n", n.Text, ref.Index+1, profile.SkillCount)
	case panel.Work:
		fmt.Fprintf(&b, "## %s\n\n%s\n", n.Text, n.Caption)
		if n.Link != "" {
			fmt.Fprintf(&b, "\n[Visit site](%s)\n", n.Link)
		}
		fmt.Fprintf(&b, "\n`%s`\n", n.Picture)
	case panel.Link:
		fmt.Fprintf(&b, "## %s\n\n", ref.Provider.Label())
		if n.Link != "" {
			fmt.Fprintf(&b, "%s\n", n.Link)
		} else {
			b.WriteString("_not set_\n")
		}
	}
	if n.Editable {
		b.WriteString("\nPress `e` to edit.\n")
	}
	return b.String()
}

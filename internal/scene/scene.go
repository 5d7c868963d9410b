// Package scene lays out a museum room from a profile: structure, furniture
// and the exhibit paintings, each tied to its edit panel.
package scene

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/kalambet/gallery/internal/navigation"
	"github.com/kalambet/gallery/internal/panel"
	"github.com/kalambet/gallery/internal/physics"
	"github.com/kalambet/gallery/internal/profile"
)

// Room dimensions. Wall values are in layout units and multiplied by Scale.
const (
	Scale      = 2
	WallHeight = 16 * Scale
	WallThick  = 1
	WallY      = 8

	HalfWidth = 45 * Scale // X extent
	HalfDepth = 60 * Scale // Z extent
)

const (
	wallInset    = 1.1 // paintings hang this far off the wall plane
	titleHeight  = WallHeight - 4
	skillSpacing = 20
	workSpacing  = 38
	dividerZ     = 30
	linkSpacing  = 15
)

// Yaw values for the direction a node faces. They follow the camera
// convention: yaw 0 looks down -Z.
const (
	FaceNegZ = 0.0
	FacePosZ = math.Pi
	FaceNegX = math.Pi / 2
	FacePosX = -math.Pi / 2
)

type Kind int

const (
	Floor Kind = iota
	Ceiling
	Wall
	Arch
	Light
	Bench
	Plant
	Title
	IntroText
	Painting
	Marker
)

func (k Kind) String() string {
	switch k {
	case Floor:
		return "floor"
	case Ceiling:
		return "ceiling"
	case Wall:
		return "wall"
	case Arch:
		return "arch"
	case Light:
		return "light"
	case Bench:
		return "bench"
	case Plant:
		return "plant"
	case Title:
		return "title"
	case IntroText:
		return "intro"
	case Painting:
		return "painting"
	case Marker:
		return "marker"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is one placed object. Position is the centre of its box.
type Node struct {
	Kind     Kind
	Name     string
	Position physics.Vec3
	Size     physics.Vec3
	Yaw      float64

	Text    string // plate, title or intro text
	Caption string
	Picture string
	Link    string

	// Panel is the edit panel opened from this node, nil when it has none.
	Panel    *panel.Ref
	Editable bool
	Collider bool
}

// Scene is the laid-out room.
type Scene struct {
	Nodes []Node
}

// Layout builds the room for p. editable controls edit affordances and link
// visibility. The result depends only on its inputs.
func Layout(p profile.Profile, editable bool) Scene {
	p = profile.Normalize(p)
	b := &builder{}

	b.structure()
	b.furniture()
	b.intro(p, editable)
	b.skills(p.Skills, editable)
	b.works(p.Works, editable)
	b.links(p.SNS, editable)
	b.markers(navigation.DefaultRegistry())

	return Scene{Nodes: b.nodes}
}

type builder struct {
	nodes []Node
}

func (b *builder) add(n Node) { b.nodes = append(b.nodes, n) }

func v(x, y, z float64) physics.Vec3 { return physics.Vec3{X: x, Y: y, Z: z} }

func (b *builder) structure() {
	const (
		w  = 2 * HalfWidth
		d  = 2 * HalfDepth
		t  = WallThick * Scale
		cy = WallY * Scale
	)
	b.add(Node{Kind: Floor, Name: "floor", Position: v(0, -1, 0), Size: v(w, 2, d), Collider: true})
	b.add(Node{Kind: Ceiling, Name: "ceiling", Position: v(0, WallHeight+1, 0), Size: v(w, 2, d), Collider: true})

	walls := []Node{
		{Name: "wall-north", Position: v(0, cy, HalfDepth), Size: v(w+t, WallHeight, t)},
		{Name: "wall-south", Position: v(0, cy, -HalfDepth), Size: v(w+t, WallHeight, t)},
		{Name: "wall-west", Position: v(-HalfWidth, cy, 0), Size: v(t, WallHeight, d)},
		{Name: "wall-east", Position: v(HalfWidth, cy, 0), Size: v(t, WallHeight, d)},
		// freestanding wall carrying the introduction
		{Name: "wall-intro", Position: v(40, cy, 90), Size: v(t, WallHeight, 40)},
		// splits the skills hall from the works hall, open on the east side
		{Name: "wall-divider", Position: v(-HalfWidth/2, cy, dividerZ), Size: v(HalfWidth, WallHeight, t)},
	}
	for _, n := range walls {
		n.Kind = Wall
		n.Collider = true
		b.add(n)
	}

	// Arches are decoration over the openings and do not block movement.
	archW, archH := 30.0*Scale, 8.0*Scale
	for i, c := range []physics.Vec3{v(45, 0, dividerZ), v(0, 0, 60)} {
		b.add(Node{
			Kind:     Arch,
			Name:     fmt.Sprintf("arch-%d", i),
			Position: v(c.X, WallHeight-archH/2, c.Z),
			Size:     v(archW, archH, WallThick*Scale),
		})
	}

	for _, x := range []float64{-60, 0, 60} {
		for _, z := range []float64{-80, 0, 80} {
			b.add(Node{
				Kind:     Light,
				Name:     fmt.Sprintf("light-%+.0f%+.0f", x, z),
				Position: v(x, WallHeight-1, z),
				Size:     v(4, 1, 4),
			})
		}
	}
}

func (b *builder) furniture() {
	const seat = 5.5
	benches := []Node{
		{Name: "bench-skills", Position: v(-40, seat/2, 60), Size: v(8, seat, 20)},
		{Name: "bench-works", Position: v(-30, seat/2, -60), Size: v(20, seat, 8)},
		{Name: "bench-hall", Position: v(20, seat/2, 0), Size: v(20, seat, 8)},
	}
	for _, n := range benches {
		n.Kind = Bench
		n.Collider = true
		b.add(n)
	}
	plants := []physics.Vec3{v(84, 5, 114), v(84, 5, -114), v(-84, 5, -114), v(-84, 5, dividerZ-5)}
	for i, pos := range plants {
		b.add(Node{Kind: Plant, Name: fmt.Sprintf("plant-%d", i), Position: pos, Size: v(4, 10, 4), Collider: true})
	}
}

func (b *builder) intro(p profile.Profile, editable bool) {
	x := 40 + WallThick*Scale/2 + wallInset
	title := "Museum"
	if p.Name != "" {
		title = p.Name + "'s Museum"
	}
	b.add(Node{Kind: Title, Name: "title-welcome", Position: v(x, titleHeight, 90), Size: v(0.1, 4, 30), Yaw: FacePosX, Text: title})
	b.add(Node{
		Kind:     IntroText,
		Name:     "intro",
		Position: v(x, WallY*Scale, 90),
		Size:     v(0.1, 10, 30),
		Yaw:      FacePosX,
		Text:     p.Intro,
		Panel:    &panel.Ref{Kind: panel.Intro},
		Editable: editable,
	})
}

func (b *builder) skills(skills []profile.Skill, editable bool) {
	z := HalfDepth - wallInset
	b.add(Node{Kind: Title, Name: "title-skills", Position: v(-45, titleHeight, z), Size: v(30, 4, 0.1), Yaw: FaceNegZ, Text: "Skills"})
	for i, s := range skills {
		b.add(Node{
			Kind:     Painting,
			Name:     fmt.Sprintf("skill-%d", i),
			Position: v(-HalfWidth+5+skillSpacing*float64(i), WallY*Scale, z),
			Size:     v(15, 15, 0.5),
			Yaw:      FaceNegZ,
			Text:     panel.SkillPlate(s),
			Picture:  skillPicture(s.Name),
			Panel:    &panel.Ref{Kind: panel.Skill, Index: i},
			Editable: editable,
		})
	}
}

func skillPicture(name string) string {
	return "/skills/" + url.PathEscape(strings.ToLower(name)) + ".png"
}

// works hang on the west wall of the south hall, left to right for a
// viewer facing west.
func (b *builder) works(works []profile.Work, editable bool) {
	x := -HalfWidth + wallInset
	first := float64(dividerZ - 25)
	mid := first - workSpacing*float64(profile.WorkCount-1)/2
	b.add(Node{Kind: Title, Name: "title-works", Position: v(x, titleHeight, mid), Size: v(0.1, 4, 30), Yaw: FacePosX, Text: "Works"})
	for i, w := range works {
		b.add(Node{
			Kind:     Painting,
			Name:     fmt.Sprintf("work-%d", i),
			Position: v(x, WallY*Scale, first-workSpacing*float64(i)),
			Size:     v(0.5, 24, 36),
			Yaw:      FacePosX,
			Text:     w.Title,
			Caption:  w.Desc,
			Picture:  w.PictureURL,
			Link:     w.SiteURL,
			Panel:    &panel.Ref{Kind: panel.Work, Index: i},
			Editable: editable,
		})
	}
}

func (b *builder) links(links profile.Links, editable bool) {
	x := HalfWidth - wallInset
	b.add(Node{Kind: Title, Name: "title-links", Position: v(x, titleHeight, 30), Size: v(0.1, 4, 30), Yaw: FaceNegX, Text: "Links"})
	for i, p := range profile.Providers {
		if !panel.LinkVisible(links, p, editable) {
			continue
		}
		link := links.Get(p)
		label := p.Label()
		if link != "" {
			label = "🔗" + label
		}
		b.add(Node{
			Kind:     Painting,
			Name:     "link-" + p.String(),
			Position: v(x, WallY*Scale, 60-linkSpacing*float64(i)),
			Size:     v(0.5, 10, 10),
			Yaw:      FaceNegX,
			Text:     label,
			Picture:  "/" + p.String() + ".png",
			Link:     link,
			Panel:    &panel.Ref{Kind: panel.Link, Provider: p},
			Editable: editable,
		})
	}
}

func (b *builder) markers(reg *navigation.Registry) {
	for _, loc := range reg.All() {
		b.add(Node{
			Kind:     Marker,
			Name:     "marker-" + loc.Name,
			Position: v(loc.Position.X, 0.1, loc.Position.Z),
			Size:     v(6, 0.2, 6),
			Yaw:      loc.Yaw,
			Text:     loc.Name,
		})
	}
}

// Colliders returns the static boxes for the physics world.
func (s Scene) Colliders() []physics.Box {
	var out []physics.Box
	for _, n := range s.Nodes {
		if n.Collider {
			out = append(out, physics.BoxAt(n.Position, n.Size))
		}
	}
	return out
}

// Paintings returns the painting nodes in layout order.
func (s Scene) Paintings() []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Kind == Painting {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the node that opens ref.
func (s Scene) Find(ref panel.Ref) (Node, bool) {
	for _, n := range s.Nodes {
		if n.Panel != nil && *n.Panel == ref {
			return n, true
		}
	}
	return Node{}, false
}

// FocusCone is the minimum cosine between the view direction and a node for
// Focus to consider it.
const FocusCone = 0.5

// Focus returns the panel-bearing node closest to the centre of view from pos
// looking along dir, on the floor plane and strictly within maxDist. Ties go
// to the earlier node.
func (s Scene) Focus(pos, dir physics.Vec3, maxDist float64) (Node, bool) {
	dir.Y = 0
	dl := dir.Len()
	if dl == 0 {
		return Node{}, false
	}
	var (
		best    Node
		found   bool
		bestCos = FocusCone
	)
	for _, n := range s.Nodes {
		if n.Panel == nil {
			continue
		}
		d := n.Position.Sub(pos)
		d.Y = 0
		l := d.Len()
		if l == 0 || l >= maxDist {
			continue
		}
		c := d.Dot(dir) / (l * dl)
		if c > bestCos || (!found && c == bestCos) {
			best, bestCos, found = n, c, true
		}
	}
	return best, found
}

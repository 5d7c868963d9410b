// Package navigation drives the museum viewpoint: first-person walking with
// footstep bob, teleports to named locations, an orbit inspection camera and
// nearest-location tracking.
package navigation

import (
	"fmt"
	"math"
	"strings"

	"github.com/kalambet/gallery/internal/physics"
)

type Vec3 = physics.Vec3

// LocationKey names a point of interest.
type LocationKey int

const (
	Home LocationKey = iota
	Skills
	Works
	Links
)

func (k LocationKey) String() string {
	switch k {
	case Home:
		return "home"
	case Skills:
		return "skills"
	case Works:
		return "works"
	case Links:
		return "links"
	}
	return fmt.Sprintf("location(%d)", int(k))
}

// ParseLocation maps a name such as "works" to its key.
func ParseLocation(s string) (LocationKey, error) {
	for _, k := range []LocationKey{Home, Skills, Works, Links} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown location %q", s)
}

// Location is a named camera pose.
type Location struct {
	Key      LocationKey `json:"-"`
	Name     string      `json:"name"`
	Position Vec3        `json:"position"`
	Yaw      float64     `json:"yaw"`
}

// Registry is an ordered set of locations. Order breaks nearest-location ties.
type Registry struct {
	locations []Location
}

func NewRegistry(locations ...Location) *Registry {
	r := &Registry{}
	for _, l := range locations {
		if l.Name == "" {
			l.Name = l.Key.String()
		}
		r.locations = append(r.locations, l)
	}
	return r
}

// DefaultRegistry returns the four museum rooms.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Location{Key: Home, Position: Vec3{X: 80, Y: BaseHeight, Z: 90}, Yaw: math.Pi / 2},
		Location{Key: Skills, Position: Vec3{X: -60, Y: BaseHeight, Z: 60}, Yaw: math.Pi},
		Location{Key: Works, Position: Vec3{X: -30, Y: BaseHeight, Z: -90}, Yaw: math.Pi / 2},
		Location{Key: Links, Position: Vec3{X: 30, Y: BaseHeight, Z: 30}, Yaw: -math.Pi / 2},
	)
}

func (r *Registry) Lookup(key LocationKey) (Location, bool) {
	for _, l := range r.locations {
		if l.Key == key {
			return l, true
		}
	}
	return Location{}, false
}

// All returns the locations in registry order.
func (r *Registry) All() []Location {
	return append([]Location(nil), r.locations...)
}

// Nearest returns the closest location by planar distance when it lies
// strictly within threshold. The first of equally distant locations wins.
func (r *Registry) Nearest(pos Vec3, threshold float64) (LocationKey, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, l := range r.locations {
		if d := pos.PlanarDist(l.Position); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist >= threshold {
		return 0, false
	}
	return r.locations[best].Key, true
}

// Tracker remembers which location the viewer is currently near.
type Tracker struct {
	reg       *Registry
	threshold float64
	current   LocationKey
	ok        bool
}

func NewTracker(reg *Registry, threshold float64) *Tracker {
	return &Tracker{reg: reg, threshold: threshold}
}

// Update recomputes the current location for pos.
func (t *Tracker) Update(pos Vec3) (LocationKey, bool) {
	t.current, t.ok = t.reg.Nearest(pos, t.threshold)
	return t.current, t.ok
}

func (t *Tracker) Current() (LocationKey, bool) {
	return t.current, t.ok
}

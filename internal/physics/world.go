// Package physics runs walker bodies through a room of static boxes on a
// Chipmunk2D space. The simulation is planar: bodies move in the XZ plane,
// boxes are their XZ footprints and height is carried through untouched.
package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// sleepAfter lets the space put bodies to sleep at all; Chipmunk refuses
// Sleep while the threshold is infinite.
const sleepAfter = 1.0

// Vec3 is a point or direction in world units. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (a Vec3) Add(b Vec3) Vec3           { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3           { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3      { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64        { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float64              { return math.Sqrt(a.Dot(a)) }
func (a Vec3) PlanarDist(b Vec3) float64 { return math.Hypot(a.X-b.X, a.Z-b.Z) }

func planar(v Vec3) cp.Vector { return cp.Vector{X: v.X, Y: v.Z} }

// Box is a static axis-aligned obstacle.
type Box struct {
	Min, Max Vec3
}

// BoxAt returns the box centred on c with the given full extents.
func BoxAt(c, size Vec3) Box {
	h := size.Scale(0.5)
	return Box{Min: c.Sub(h), Max: c.Add(h)}
}

func (b Box) footprint() cp.BB {
	return cp.BB{L: b.Min.X, B: b.Min.Z, R: b.Max.X, T: b.Max.Z}
}

// Body is a circle collider steered by velocity writes.
type Body struct {
	body   *cp.Body
	y      float64
	radius float64
	world  *World

	// target is the velocity written by SetVelocity, applied in the next
	// step's velocity phase so contacts see it before positions move.
	target cp.Vector
	queued bool
}

// NewBody returns a body at pos. It does not move until added to a World.
func NewBody(pos Vec3, radius float64) *Body {
	b := &Body{
		body:   cp.NewBody(1, math.Inf(1)),
		y:      pos.Y,
		radius: radius,
	}
	b.body.SetPosition(planar(pos))
	b.body.SetVelocityUpdateFunc(b.updateVelocity)
	return b
}

func (b *Body) updateVelocity(body *cp.Body, _ cp.Vector, damping, _ float64) {
	v := body.Velocity()
	if b.queued {
		v, b.queued = b.target, false
	}
	body.SetVelocity(v.X*damping, v.Y*damping)
}

func (b *Body) Position() Vec3 {
	p := b.body.Position()
	return Vec3{X: p.X, Y: b.y, Z: p.Y}
}

func (b *Body) SetPosition(p Vec3) {
	b.y = p.Y
	b.body.SetPosition(planar(p))
}

func (b *Body) Velocity() Vec3 {
	v := b.body.Velocity()
	return Vec3{X: v.X, Z: v.Y}
}

// SetVelocity sets the planar velocity the body moves with from the next
// step on and wakes it. A zero velocity also stops the body at once. Y is
// ignored.
func (b *Body) SetVelocity(v Vec3) {
	b.target, b.queued = planar(v), true
	if b.target == (cp.Vector{}) {
		b.body.SetVelocity(0, 0)
		return
	}
	b.body.Activate()
}

func (b *Body) Radius() float64 { return b.radius }

func (b *Body) Sleeping() bool { return b.body.IsSleeping() }

// Sleep removes the body from stepping until Wake. It is a no-op for a body
// outside a world.
func (b *Body) Sleep() {
	if b.world == nil || b.body.IsSleeping() {
		return
	}
	b.body.Sleep()
}

func (b *Body) Wake() { b.body.Activate() }

// World is a gravity-free planar space. Boxes lying wholly under the floor
// height or over the ceiling height are slabs and do not collide.
type World struct {
	space   *cp.Space
	floor   float64
	ceiling float64
	statics []Box
}

// NewWorld returns an empty world whose walkable band is [floor, ceiling].
func NewWorld(floor, ceiling float64) *World {
	space := cp.NewSpace()
	space.SleepTimeThreshold = sleepAfter
	return &World{space: space, floor: floor, ceiling: ceiling}
}

// SetDamping sets the fraction of velocity every body loses per second, in [0, 1).
func (w *World) SetDamping(lost float64) {
	w.space.SetDamping(1 - lost)
}

func (w *World) AddBody(b *Body) {
	b.world = w
	w.space.AddBody(b.body)
	shape := w.space.AddShape(cp.NewCircle(b.body, b.radius, cp.Vector{}))
	shape.SetElasticity(0)
	shape.SetFriction(0)
}

// AddStatic adds the footprints of boxes that reach into the walkable band.
func (w *World) AddStatic(boxes ...Box) {
	for _, box := range boxes {
		if box.Max.Y <= w.floor || box.Min.Y >= w.ceiling {
			continue
		}
		shape := w.space.AddShape(cp.NewBox2(w.space.StaticBody, box.footprint(), 0))
		shape.SetElasticity(0)
		shape.SetFriction(0)
		w.statics = append(w.statics, box)
	}
}

// Statics returns the colliding boxes in insertion order.
func (w *World) Statics() []Box {
	return append([]Box(nil), w.statics...)
}

// Step advances awake bodies by dt seconds. Non-positive dt does nothing.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.space.Step(dt)
}

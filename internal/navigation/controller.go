package navigation

import (
	"fmt"
	"math"
)

// Movement constants.
const (
	LinearSpeed     = 30.0    // units per second
	AngularSpeed    = math.Pi // radians per second
	BobAmplitude    = 0.07
	BobFrequency    = 1.0
	BaseHeight      = 14.0
	NearThreshold   = 20.0
	BodyRadius      = 0.5
	LinearDamping   = 0.95
	orbitElevation  = 0.35
	orbitDistance   = 40.0
	orbitMinDist    = 5.0
	orbitMaxDist    = 250.0
	orbitMaxElevate = 1.45
)

// Mode selects which camera drives the view.
type Mode int

const (
	FirstPerson Mode = iota
	Orbit
)

func (m Mode) String() string {
	switch m {
	case FirstPerson:
		return "first-person"
	case Orbit:
		return "orbit"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Phase is the motion state within first-person mode.
type Phase int

const (
	Idle Phase = iota
	Moving
	Teleporting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Teleporting:
		return "teleporting"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Keys is the set of movement keys held during a frame.
type Keys struct {
	Forward   bool
	Backward  bool
	TurnLeft  bool
	TurnRight bool
}

// Translating reports whether exactly one of forward and backward is held.
func (k Keys) Translating() bool { return k.Forward != k.Backward }

func (k Keys) any() bool { return k.Forward || k.Backward || k.TurnLeft || k.TurnRight }

// Body is the physics body the controller steers. *physics.Body satisfies it.
// Velocity writes may take effect on the following step.
type Body interface {
	Position() Vec3
	SetPosition(Vec3)
	SetVelocity(Vec3)
	Sleep()
	Wake()
}

// Camera is a first-person pose. Pitch and roll are always zero.
type Camera struct {
	Position Vec3
	Yaw      float64
}

// Forward returns the unit vector the camera faces.
func (c Camera) Forward() Vec3 { return forward(c.Yaw) }

// OrbitCamera circles a pivot point.
type OrbitCamera struct {
	Pivot     Vec3
	Azimuth   float64
	Elevation float64
	Distance  float64
}

// Eye returns the orbit camera position.
func (o OrbitCamera) Eye() Vec3 {
	h := o.Distance * math.Cos(o.Elevation)
	return Vec3{
		X: o.Pivot.X + h*math.Sin(o.Azimuth),
		Y: o.Pivot.Y + o.Distance*math.Sin(o.Elevation),
		Z: o.Pivot.Z + h*math.Cos(o.Azimuth),
	}
}

// Controller owns the viewpoint state machine.
type Controller struct {
	body    Body
	reg     *Registry
	tracker *Tracker

	mode  Mode
	phase Phase

	yaw  float64
	walk float64

	pending bool
	target  Location

	camera Camera
	saved  Camera
	orbit  OrbitCamera
}

// NewController places body at the Home location of reg.
func NewController(body Body, reg *Registry) *Controller {
	c := &Controller{
		body:    body,
		reg:     reg,
		tracker: NewTracker(reg, NearThreshold),
	}
	c.Teleport(Home)
	return c
}

// Teleport moves the body to key and arms a hard camera cut for the next
// frame. The target also becomes the pose restored when orbit mode ends.
// Unknown keys panic.
func (c *Controller) Teleport(key LocationKey) {
	loc, ok := c.reg.Lookup(key)
	if !ok {
		panic(fmt.Sprintf("navigation: unknown location %v", key))
	}
	c.body.Sleep()
	c.body.SetVelocity(Vec3{})
	c.body.SetPosition(loc.Position)
	c.yaw = loc.Yaw
	c.walk = 0
	c.body.Wake()

	c.target = loc
	c.saved = Camera{Position: loc.Position, Yaw: loc.Yaw}
	c.pending = true
	c.phase = Teleporting
}

// SetMode switches cameras immediately. Entering orbit freezes the first-person
// pose and pivots around it; leaving orbit restores that pose.
func (c *Controller) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	switch m {
	case Orbit:
		c.saved = Camera{Position: c.body.Position(), Yaw: c.yaw}
		c.orbit = OrbitCamera{
			Pivot:     c.saved.Position,
			Azimuth:   c.saved.Yaw,
			Elevation: orbitElevation,
			Distance:  orbitDistance,
		}
	case FirstPerson:
		c.body.SetVelocity(Vec3{})
		c.body.SetPosition(c.saved.Position)
		c.yaw = c.saved.Yaw
		c.camera = c.saved
	}
	c.mode = m
}

// OrbitInput rotates and zooms the orbit camera. Ignored in first-person.
func (c *Controller) OrbitInput(dAzimuth, dElevation, dZoom float64) {
	if c.mode != Orbit {
		return
	}
	c.orbit.Azimuth += dAzimuth
	c.orbit.Elevation = math.Max(-orbitMaxElevate, math.Min(orbitMaxElevate, c.orbit.Elevation+dElevation))
	c.orbit.Distance = math.Max(orbitMinDist, math.Min(orbitMaxDist, c.orbit.Distance+dZoom))
}

// Frame advances the controller by dt seconds with keys held and returns the
// first-person camera.
func (c *Controller) Frame(dt float64, keys Keys) Camera {
	if c.pending {
		c.pending = false
		c.phase = Idle
		c.camera = Camera{Position: c.target.Position, Yaw: c.target.Yaw}
		c.saved = c.camera
		c.tracker.Update(c.camera.Position)
		return c.camera
	}

	if c.mode != FirstPerson {
		c.saved = Camera{Position: c.body.Position(), Yaw: c.yaw}
		return c.saved
	}

	if keys.TurnLeft {
		c.yaw += AngularSpeed * dt
	}
	if keys.TurnRight {
		c.yaw -= AngularSpeed * dt
	}

	fwd := forward(c.yaw)
	var vel Vec3
	switch {
	case keys.Forward && !keys.Backward:
		vel = fwd.Scale(LinearSpeed)
	case keys.Backward && !keys.Forward:
		vel = fwd.Scale(-LinearSpeed)
	}
	c.body.SetVelocity(vel)

	pos := c.body.Position()
	if keys.Translating() {
		c.walk += dt * LinearSpeed
		pos.Y = BaseHeight + BobAmplitude*math.Sin(c.walk*BobFrequency)
	} else {
		c.walk = 0
		pos.Y = BaseHeight
	}
	c.body.SetPosition(pos)

	if keys.any() {
		c.phase = Moving
	} else {
		c.phase = Idle
	}
	c.camera = Camera{Position: pos, Yaw: c.yaw}
	c.tracker.Update(pos)
	return c.camera
}

// Camera returns the last first-person camera.
func (c *Controller) Camera() Camera { return c.camera }

// Orbit returns the orbit camera.
func (c *Controller) Orbit() OrbitCamera { return c.orbit }

// State returns the current mode and phase.
func (c *Controller) State() (Mode, Phase) { return c.mode, c.phase }

// Current returns the location the viewer is near, if any.
func (c *Controller) Current() (LocationKey, bool) { return c.tracker.Current() }

// Registry returns the location registry.
func (c *Controller) Registry() *Registry { return c.reg }

func forward(yaw float64) Vec3 {
	return Vec3{X: -math.Sin(yaw), Z: -math.Cos(yaw)}
}

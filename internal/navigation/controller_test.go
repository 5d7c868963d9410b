package navigation

import (
	"math"
	"testing"

	"github.com/kalambet/gallery/internal/physics"
)

const eps = 1e-9

type fakeBody struct {
	pos    Vec3
	vel    Vec3
	asleep bool
	calls  []string
}

func (b *fakeBody) Position() Vec3 { return b.pos }
func (b *fakeBody) SetPosition(p Vec3) {
	b.calls = append(b.calls, "position")
	b.pos = p
}
func (b *fakeBody) SetVelocity(v Vec3) {
	b.calls = append(b.calls, "velocity")
	b.vel = v
}
func (b *fakeBody) Sleep() {
	b.calls = append(b.calls, "sleep")
	b.asleep = true
}
func (b *fakeBody) Wake() {
	b.calls = append(b.calls, "wake")
	b.asleep = false
}

func newTestController(t *testing.T) (*Controller, *fakeBody) {
	t.Helper()
	b := &fakeBody{}
	c := NewController(b, DefaultRegistry())
	c.Frame(1.0/60, Keys{})
	return c, b
}

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestTeleport_NextFrameHardSetsCamera(t *testing.T) {
	c, b := newTestController(t)

	// Walk away first so the teleport has something to undo.
	for i := 0; i < 10; i++ {
		c.Frame(1.0/60, Keys{Forward: true, TurnLeft: true})
	}
	b.pos.X += 3 // physics drift between frames

	for _, key := range []LocationKey{Skills, Works, Links, Home} {
		b.calls = nil
		c.Teleport(key)
		if _, phase := c.State(); phase != Teleporting {
			t.Errorf("phase after Teleport = %v, want teleporting", phase)
		}
		want := []string{"sleep", "velocity", "position", "wake"}
		if len(b.calls) != len(want) {
			t.Fatalf("body calls = %v, want %v", b.calls, want)
		}
		for i := range want {
			if b.calls[i] != want[i] {
				t.Fatalf("body calls = %v, want %v", b.calls, want)
			}
		}

		cam := c.Frame(1.0/60, Keys{Forward: true, TurnRight: true})
		loc, _ := c.Registry().Lookup(key)
		if cam.Position != loc.Position || cam.Yaw != loc.Yaw {
			t.Errorf("%v: camera = %+v, want %+v yaw %v", key, cam, loc.Position, loc.Yaw)
		}
		if b.vel != (Vec3{}) {
			t.Errorf("%v: residual velocity %+v", key, b.vel)
		}
		if _, phase := c.State(); phase != Idle {
			t.Errorf("%v: phase = %v, want idle", key, phase)
		}
		if cur, ok := c.Current(); !ok || cur != key {
			t.Errorf("%v: current = %v, %v", key, cur, ok)
		}
	}
}

func TestTeleport_FromOrbitSurvivesModeSwitch(t *testing.T) {
	c, b := newTestController(t)
	c.SetMode(Orbit)
	c.Frame(1.0/60, Keys{})

	c.Teleport(Works)
	c.SetMode(FirstPerson)
	loc, _ := c.Registry().Lookup(Works)

	cam := c.Frame(1.0/60, Keys{})
	if cam.Position != loc.Position || cam.Yaw != loc.Yaw {
		t.Errorf("settling frame camera = %+v, want %+v", cam, loc.Position)
	}
	if b.pos != loc.Position {
		t.Errorf("settling frame body = %+v, want %+v", b.pos, loc.Position)
	}

	cam = c.Frame(1.0/60, Keys{})
	if cam.Position != loc.Position || cam.Yaw != loc.Yaw {
		t.Errorf("next frame camera = %+v, want %+v yaw %v", cam, loc.Position, loc.Yaw)
	}
}

func TestTeleport_UnknownKeyPanics(t *testing.T) {
	reg := NewRegistry(Location{Key: Home, Position: Vec3{Y: BaseHeight}})
	c := NewController(&fakeBody{}, reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unregistered location")
		}
	}()
	c.Teleport(Works)
}

func TestFrame_ForwardVelocityFollowsYaw(t *testing.T) {
	tests := []struct {
		name string
		yaw  float64
		keys Keys
		want Vec3
	}{
		{"forward at yaw 0", 0, Keys{Forward: true}, Vec3{Z: -LinearSpeed}},
		{"backward at yaw 0", 0, Keys{Backward: true}, Vec3{Z: LinearSpeed}},
		{"forward at yaw pi/2", math.Pi / 2, Keys{Forward: true}, Vec3{X: -LinearSpeed}},
		{"both cancel", 0, Keys{Forward: true, Backward: true}, Vec3{}},
		{"none", 0, Keys{}, Vec3{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBody{}
			reg := NewRegistry(Location{Key: Home, Position: Vec3{Y: BaseHeight}, Yaw: tt.yaw})
			c := NewController(b, reg)
			c.Frame(0.01, Keys{})

			c.Frame(0.01, tt.keys)
			if !near(b.vel.X, tt.want.X) || !near(b.vel.Y, tt.want.Y) || !near(b.vel.Z, tt.want.Z) {
				t.Errorf("velocity = %+v, want %+v", b.vel, tt.want)
			}
		})
	}
}

func TestFrame_TurnIsUnbounded(t *testing.T) {
	c, _ := newTestController(t)
	start := c.Camera().Yaw

	var cam Camera
	for i := 0; i < 300; i++ {
		cam = c.Frame(0.1, Keys{TurnLeft: true})
	}
	if want := start + 300*0.1*AngularSpeed; !near(cam.Yaw, want) {
		t.Errorf("yaw = %v, want %v", cam.Yaw, want)
	}

	cam = c.Frame(0.1, Keys{TurnLeft: true, TurnRight: true})
	if want := start + 300*0.1*AngularSpeed; !near(cam.Yaw, want) {
		t.Errorf("opposite turns should cancel: yaw = %v, want %v", cam.Yaw, want)
	}
}

func TestFrame_BobResetsWhenNotTranslating(t *testing.T) {
	c, b := newTestController(t)
	dt := 1.0 / 30

	cam := c.Frame(dt, Keys{Forward: true})
	if want := BaseHeight + BobAmplitude*math.Sin(dt*LinearSpeed*BobFrequency); !near(cam.Position.Y, want) {
		t.Errorf("first step height = %v, want %v", cam.Position.Y, want)
	}
	c.Frame(dt, Keys{Forward: true})

	cam = c.Frame(dt, Keys{TurnLeft: true})
	if cam.Position.Y != BaseHeight || b.pos.Y != BaseHeight {
		t.Errorf("height while only turning = %v, want %v", cam.Position.Y, BaseHeight)
	}
	if _, phase := c.State(); phase != Moving {
		t.Errorf("phase = %v, want moving", phase)
	}

	// The walk cycle restarts from zero.
	cam = c.Frame(dt, Keys{Backward: true})
	if want := BaseHeight + BobAmplitude*math.Sin(dt*LinearSpeed*BobFrequency); !near(cam.Position.Y, want) {
		t.Errorf("height after restart = %v, want %v", cam.Position.Y, want)
	}

	cam = c.Frame(dt, Keys{Forward: true, Backward: true})
	if cam.Position.Y != BaseHeight {
		t.Errorf("height with both keys = %v, want %v", cam.Position.Y, BaseHeight)
	}

	c.Frame(dt, Keys{})
	if _, phase := c.State(); phase != Idle {
		t.Errorf("phase = %v, want idle", phase)
	}
}

func TestOrbit_RoundTripPreservesPose(t *testing.T) {
	c, b := newTestController(t)
	for i := 0; i < 5; i++ {
		c.Frame(0.05, Keys{Forward: true, TurnRight: true})
	}
	c.Frame(0.05, Keys{})
	before := c.Camera()

	c.SetMode(Orbit)
	if o := c.Orbit(); o.Pivot != before.Position {
		t.Errorf("orbit pivot = %+v, want %+v", o.Pivot, before.Position)
	}

	b.calls = nil
	for i := 0; i < 5; i++ {
		c.Frame(0.05, Keys{Forward: true, TurnLeft: true})
	}
	if len(b.calls) != 0 {
		t.Errorf("orbit frames wrote to the body: %v", b.calls)
	}
	c.OrbitInput(1, 0.2, -10)

	c.SetMode(FirstPerson)
	after := c.Frame(0.05, Keys{})
	if after.Position != before.Position || after.Yaw != before.Yaw {
		t.Errorf("pose after orbit = %+v, want %+v", after, before)
	}
}

func TestOrbitInput_Clamped(t *testing.T) {
	c, _ := newTestController(t)

	c.OrbitInput(1, 1, 1)
	if c.Orbit() != (OrbitCamera{}) {
		t.Error("orbit input applied in first-person mode")
	}

	c.SetMode(Orbit)
	c.OrbitInput(0, 10, 1000)
	o := c.Orbit()
	if o.Elevation != orbitMaxElevate || o.Distance != orbitMaxDist {
		t.Errorf("orbit = %+v", o)
	}
	c.OrbitInput(0, -10, -1000)
	o = c.Orbit()
	if o.Elevation != -orbitMaxElevate || o.Distance != orbitMinDist {
		t.Errorf("orbit = %+v", o)
	}
}

func TestOrbitCamera_Eye(t *testing.T) {
	o := OrbitCamera{Pivot: Vec3{X: 1, Y: 2, Z: 3}, Distance: 10}
	eye := o.Eye()
	if !near(eye.X, 1) || !near(eye.Y, 2) || !near(eye.Z, 13) {
		t.Errorf("eye = %+v", eye)
	}
}

func TestController_WallsStopWalking(t *testing.T) {
	reg := NewRegistry(Location{Key: Home, Position: Vec3{Y: BaseHeight}})
	world := physics.NewWorld(0, 32)
	world.SetDamping(LinearDamping)
	world.AddStatic(physics.BoxAt(Vec3{Y: 8, Z: -12}, Vec3{X: 40, Y: 32, Z: 4}))
	body := physics.NewBody(Vec3{Y: BaseHeight}, BodyRadius)
	world.AddBody(body)

	c := NewController(body, reg)
	dt := 1.0 / 30
	for i := 0; i < 90; i++ {
		c.Frame(dt, Keys{Forward: true})
		world.Step(dt)
	}

	// The wall's near face is at Z=-10.
	if z := body.Position().Z; z < -10 {
		t.Errorf("walked through the wall: z = %v", z)
	}
	if z := body.Position().Z; z > -8 {
		t.Errorf("stopped short of the wall: z = %v", z)
	}
}

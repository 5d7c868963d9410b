package physics

import (
	"math"
	"testing"
)

const eps = 1e-9

func newTestWorld(b *Body) *World {
	w := NewWorld(0, 32)
	w.AddBody(b)
	return w
}

func TestStep_VelocityAppliesFromNextStep(t *testing.T) {
	b := NewBody(Vec3{Y: 14}, 0.5)
	w := newTestWorld(b)
	b.SetVelocity(Vec3{X: 2})

	w.Step(0.5)
	if got := b.Position(); got.X != 0 {
		t.Errorf("position after write step = %+v, want unmoved", got)
	}
	w.Step(0.5)
	if got := b.Position(); math.Abs(got.X-1) > eps || got.Y != 14 || math.Abs(got.Z) > eps {
		t.Errorf("position = %+v, want (1,14,0)", got)
	}
}

func TestSetVelocity_ZeroStopsAtOnce(t *testing.T) {
	b := NewBody(Vec3{}, 0.5)
	w := newTestWorld(b)
	b.SetVelocity(Vec3{X: 5})
	w.Step(0.1)

	b.SetVelocity(Vec3{})
	if v := b.Velocity(); v != (Vec3{}) {
		t.Fatalf("velocity = %+v, want zero before stepping", v)
	}
	x := b.Position().X
	w.Step(0.1)
	if got := b.Position().X; got != x {
		t.Errorf("stopped body moved from %v to %v", x, got)
	}
}

func TestStep_Damping(t *testing.T) {
	b := NewBody(Vec3{}, 0.5)
	w := newTestWorld(b)
	w.SetDamping(0.95)
	b.SetVelocity(Vec3{Z: 10})

	w.Step(1)

	if got := b.Velocity().Z; math.Abs(got-0.5) > 1e-6 {
		t.Errorf("velocity after 1s = %v, want 0.5", got)
	}
}

func TestStep_SleepingBodyIsFrozen(t *testing.T) {
	b := NewBody(Vec3{X: 3}, 0.5)
	w := newTestWorld(b)
	b.SetVelocity(Vec3{X: 100})
	b.Sleep()
	if !b.Sleeping() {
		t.Fatal("body not sleeping after Sleep")
	}

	w.Step(1)
	if b.Position().X != 3 {
		t.Errorf("sleeping body moved to %+v", b.Position())
	}

	b.Wake()
	w.Step(0.01)
	w.Step(0.01)
	if b.Position().X == 3 {
		t.Error("woken body did not move")
	}
}

func TestSleep_OutsideWorldIsNoop(t *testing.T) {
	b := NewBody(Vec3{}, 0.5)
	b.Sleep()
	if b.Sleeping() {
		t.Error("detached body reports sleeping")
	}
}

func TestStep_WallStopsBody(t *testing.T) {
	b := NewBody(Vec3{Y: 14}, 0.5)
	w := newTestWorld(b)
	b.SetPosition(Vec3{X: 0.25, Y: 14})
	w.AddStatic(BoxAt(Vec3{X: 10, Y: 8}, Vec3{X: 4, Y: 32, Z: 100}))

	for i := 0; i < 120; i++ {
		b.SetVelocity(Vec3{X: 30})
		w.Step(1.0 / 30)
	}

	// The wall's near face is at X=8.
	if got := b.Position().X; got > 8 {
		t.Errorf("body penetrated wall: x = %v", got)
	}
	if got := b.Position().X; got < 7 {
		t.Errorf("body stopped short of the wall: x = %v", got)
	}
	if got := b.Velocity().X; got > 1e-6 {
		t.Errorf("inward velocity not cancelled: %v", got)
	}
}

func TestStep_SlidesAlongWall(t *testing.T) {
	b := NewBody(Vec3{Y: 14}, 0.5)
	w := newTestWorld(b)
	w.AddStatic(BoxAt(Vec3{X: 1, Y: 8}, Vec3{X: 1, Y: 32, Z: 100}))

	for i := 0; i < 10; i++ {
		b.SetVelocity(Vec3{X: 1, Z: -1})
		w.Step(0.1)
	}

	got := b.Position()
	if got.Z > -0.5 {
		t.Errorf("tangential motion lost: %+v", got)
	}
	if got.X > 0.25 {
		t.Errorf("body pushed into the wall: %+v", got)
	}
}

func TestAddStatic_SkipsSlabsOutsideBand(t *testing.T) {
	w := NewWorld(0, 32)
	w.AddStatic(
		BoxAt(Vec3{Y: -1}, Vec3{X: 100, Y: 2, Z: 100}), // floor
		BoxAt(Vec3{Y: 33}, Vec3{X: 100, Y: 2, Z: 100}), // ceiling
		BoxAt(Vec3{X: 20, Y: 3}, Vec3{X: 4, Y: 6, Z: 4}),
	)
	if got := w.Statics(); len(got) != 1 || got[0].Min.X != 18 {
		t.Errorf("statics = %+v, want only the bench", got)
	}

	b := NewBody(Vec3{Y: 14}, 0.5)
	w.AddBody(b)
	w.Step(1.0 / 30)
	if got := b.Position(); got != (Vec3{Y: 14}) {
		t.Errorf("body inside the floor footprint moved to %+v", got)
	}
}

func TestStep_NonPositiveDtIsNoop(t *testing.T) {
	b := NewBody(Vec3{}, 0.5)
	w := newTestWorld(b)
	b.SetVelocity(Vec3{X: 1})
	w.Step(0.1)
	x := b.Position().X

	w.Step(0)
	w.Step(-1)
	if b.Position().X != x {
		t.Errorf("position = %+v", b.Position())
	}
}

func TestPlanarDist(t *testing.T) {
	d := Vec3{X: 3, Y: 100, Z: 4}.PlanarDist(Vec3{})
	if d != 5 {
		t.Errorf("PlanarDist = %v, want 5", d)
	}
}

package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A single solid tile at (2,0), everything else open
func oneWall(x, y int) bool {
	return x == 2 && y == 0
}

func TestStep_ZeroInputZeroDisplacement(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	b := Body{Pos: Vec{X: 0.5, Y: 0.5}, Heading: 1.2}

	for _, dt := range []float64{0.001, 0.05, 0.25, 1.0} {
		out := Step(b, Input{}, dt, oneWall, p)
		assert.Equal(t, b.Pos, out.Pos, "dt=%v", dt)
		assert.Equal(t, b.Heading, out.Heading)
		assert.Equal(t, Vec{}, out.Vel)
	}
}

func TestStep_NoObstacleMovesStraight(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	b := Body{Pos: Vec{X: 0.5, Y: 0.5}} // heading 0 → +X

	out := Step(b, Input{Forward: 1}, 0.5, nil, p)
	assert.InDelta(t, 0.5+p.MaxSpeed*0.5, out.Pos.X, 1e-9)
	assert.InDelta(t, 0.5, out.Pos.Y, 1e-9)
}

func TestStep_WallHaltsAtRadius(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	// Drive straight into the wall tile at x ∈ [2,3)
	b := Body{Pos: Vec{X: 0.5, Y: 0.5}}

	for i := 0; i < 100; i++ {
		b = Step(b, Input{Forward: 1}, 0.05, oneWall, p)
	}

	// Halted no closer than radius to the tile edge…
	assert.LessOrEqual(t, b.Pos.X, 2.0-p.Radius+1e-6)
	// …but pressed right against it
	assert.Greater(t, b.Pos.X, 2.0-p.Radius-0.01)
	// X velocity was zeroed by the collision
	assert.Zero(t, b.Vel.X)
	// Resolved position never intersects the solid tile
	assert.False(t, collides(b.Pos.X, b.Pos.Y, p.Radius, oneWall))
}

func TestStep_SlidesAlongWall(t *testing.T) {
	t.Parallel()

	// Solid wall across y=2, player heads diagonally into it
	wall := func(x, y int) bool { return y == 2 }
	p := DefaultParams()
	b := Body{Pos: Vec{X: 0.5, Y: 0.5}, Heading: math.Pi / 4}

	startX := b.Pos.X
	for i := 0; i < 40; i++ {
		b = Step(b, Input{Forward: 1}, 0.05, wall, p)
	}

	// Y is blocked at the wall, X keeps sliding
	assert.LessOrEqual(t, b.Pos.Y, 2.0-p.Radius+1e-6)
	assert.Greater(t, b.Pos.X, startX+1.0)
}

func TestStep_TurnChangesHeading(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	b := Body{Pos: Vec{X: 0.5, Y: 0.5}}

	out := Step(b, Input{Turn: 1}, 0.1, nil, p)
	assert.InDelta(t, p.TurnRate*0.1, out.Heading, 1e-9)

	out = Step(b, Input{Turn: -1}, 0.1, nil, p)
	assert.InDelta(t, -p.TurnRate*0.1, out.Heading, 1e-9)
}

func TestStep_InputClamped(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	b := Body{Pos: Vec{X: 0.5, Y: 0.5}}

	fast := Step(b, Input{Forward: 50}, 0.1, nil, p)
	normal := Step(b, Input{Forward: 1}, 0.1, nil, p)
	assert.InDelta(t, normal.Pos.X, fast.Pos.X, 1e-9)
}

func TestNormalizeAngle(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, normalizeAngle(2*math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi/2, normalizeAngle(3*math.Pi/2), 1e-9)
	assert.InDelta(t, 0.5, normalizeAngle(0.5), 1e-9)
}

// Package motion advances drifting thoughts by one tick and bounces them off
// the canvas edges.
//
// Positions are card centers. A tick displaces every drifting thought by
// velocity*DtScale, a fixed fraction per tick rather than elapsed wall time,
// then resolves each axis independently against the canvas interior: a card
// whose box leaves the interior is clamped back onto the edge and its
// velocity component on that axis is turned to point inward. Speed is
// preserved; overshoot distance is not.
package motion

import (
	"math"

	"github.com/pbaille/flux/internal/domain"
)

// DefaultDtScale is the per-tick displacement factor applied to velocity.
const DefaultDtScale = 0.3

// Params are the fixed physical constants of the simulation.
type Params struct {
	Footprint domain.Footprint
	DtScale   float64
}

// Gate decides which thoughts drift during a tick.
type Gate interface {
	Drifts(t domain.Thought) bool
}

// Stats summarizes one tick.
type Stats struct {
	Moved   int
	Bounces int
	// Skipped is set when the canvas was degenerate and nothing moved.
	Skipped bool
}

// Integrate returns the candidate next position of t.
func Integrate(t domain.Thought, dtScale float64) (x, y float64) {
	return t.PositionX + t.VelocityX*dtScale, t.PositionY + t.VelocityY*dtScale
}

// collideAxis resolves one axis. lo and hi are the allowed range of the
// card center on that axis.
func collideAxis(pos, vel, lo, hi float64) (float64, float64, bool) {
	switch {
	case pos < lo:
		return lo, math.Abs(vel), true
	case pos > hi:
		return hi, -math.Abs(vel), true
	}
	return pos, vel, false
}

// Collide resolves a candidate position against the bounds and returns the
// settled thought along with the number of axes that bounced.
func Collide(t domain.Thought, b domain.Bounds, fp domain.Footprint, x, y float64) (domain.Thought, int) {
	bounces := 0
	var hit bool

	x, t.VelocityX, hit = collideAxis(x, t.VelocityX, fp.Width/2, b.Width-fp.Width/2)
	if hit {
		bounces++
	}
	y, t.VelocityY, hit = collideAxis(y, t.VelocityY, fp.Height/2, b.Height-fp.Height/2)
	if hit {
		bounces++
	}

	t.PositionX, t.PositionY = x, y
	return t, bounces
}

// Step advances every thought the gate lets drift and returns a new slice.
// Thoughts held back by the gate are copied through unchanged. A degenerate
// canvas makes the whole tick a no-op.
func Step(thoughts []domain.Thought, gate Gate, b domain.Bounds, p Params) ([]domain.Thought, Stats) {
	if b.Degenerate(p.Footprint) || isBad(b.Width) || isBad(b.Height) {
		return thoughts, Stats{Skipped: true}
	}

	var stats Stats
	next := make([]domain.Thought, len(thoughts))
	for i, t := range thoughts {
		if !gate.Drifts(t) {
			next[i] = t
			continue
		}
		x, y := Integrate(t, p.DtScale)
		if isBad(x) || isBad(y) {
			next[i] = t
			continue
		}
		settled, bounces := Collide(t, b, p.Footprint, x, y)
		next[i] = settled
		stats.Moved++
		stats.Bounces += bounces
	}
	return next, stats
}

func isBad(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

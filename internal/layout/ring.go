// Package layout computes card poses: the horizontal viewing ring every card
// starts on, and the preview arrangement around a selected card.
//
// All functions are pure. Angles are radians, Y is up, and a card at angle
// theta on the ring sits at (r·sinθ, y, r·cosθ) facing rotationY = theta.
package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a card position and its rotation about the Y axis.
type Pose struct {
	Position  r3.Vec
	RotationY float64
}

// Segment is a connector line between two points.
type Segment struct {
	From, To r3.Vec
}

// Place returns the ring pose of the card at index out of total cards.
// total must be positive.
func Place(index, total int, baseHeight, radius float64) Pose {
	theta := 2 * math.Pi * float64(index) / float64(total)
	return Pose{
		Position:  r3.Vec{X: radius * math.Sin(theta), Y: baseHeight, Z: radius * math.Cos(theta)},
		RotationY: theta,
	}
}

// Ring returns the poses of total evenly spaced cards, or nil if total <= 0.
func Ring(total int, baseHeight, radius float64) []Pose {
	if total <= 0 {
		return nil
	}
	out := make([]Pose, total)
	for i := range out {
		out[i] = Place(i, total, baseHeight, radius)
	}
	return out
}

// RotateY turns p about the Y axis by rad. The ring is walked in the
// direction of decreasing card angle, matching a card's rotationY -= rad.
func RotateY(p r3.Vec, rad float64) r3.Vec {
	sin, cos := math.Sincos(rad)
	return r3.Vec{
		X: p.X*cos - p.Z*sin,
		Y: p.Y,
		Z: p.X*sin + p.Z*cos,
	}
}

// AxisAngle rotates p by angle about the unit axis through the origin
// (Rodrigues' rotation).
func AxisAngle(p, axis r3.Vec, angle float64) r3.Vec {
	return r3.Rotate(p, angle, axis)
}

// Translate returns s moved by d.
func (s Segment) Translate(d r3.Vec) Segment {
	return Segment{From: r3.Add(s.From, d), To: r3.Add(s.To, d)}
}

// RotateY returns s with both endpoints turned about the Y axis.
func (s Segment) RotateY(rad float64) Segment {
	return Segment{From: RotateY(s.From, rad), To: RotateY(s.To, rad)}
}

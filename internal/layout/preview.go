package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Slot is a titled card pose as seen by the preview engine. Titles are
// expected in normalized form.
type Slot struct {
	Title string
	Pose
}

// PreviewParams tunes the preview arrangement.
type PreviewParams struct {
	// HalfAngle is the wedge kept free on each side of the selected card's
	// azimuth. It also sets the preview ring offset, Radius·sin(HalfAngle).
	HalfAngle float64
	// Radius is the viewing ring radius.
	Radius float64
}

// PreviewResult holds the targets computed for one selection.
type PreviewResult struct {
	// Targets maps every moved card title to its new pose. The selected card
	// is never included.
	Targets map[string]Pose
	// Lines connect the selected card to every linked card's target.
	Lines []Segment
	// Linked and Unlinked count the cards on the preview ring and the cards
	// redistributed over the remaining circle.
	Linked, Unlinked int
}

// Empty reports whether the selection moves nothing.
func (r PreviewResult) Empty() bool {
	return len(r.Targets) == 0
}

// Preview arranges cards around selected. Cards whose titles are in linked
// move onto a ring tilted about the axis through the origin and the selected
// card; the others spread evenly over the main circle outside the reserved
// wedge. Linked cards take angles in the order they appear in cards.
//
// With no linked card present Preview returns an empty result: nothing is
// redistributed and no lines are drawn.
func Preview(selected Slot, linked []string, cards []Slot, p PreviewParams) PreviewResult {
	linkSet := make(map[string]struct{}, len(linked))
	for _, t := range linked {
		linkSet[t] = struct{}{}
	}

	var linkedCards, otherCards []Slot
	for _, c := range cards {
		if c.Title == selected.Title {
			continue
		}
		if _, ok := linkSet[c.Title]; ok {
			linkedCards = append(linkedCards, c)
		} else {
			otherCards = append(otherCards, c)
		}
	}

	k := len(linkedCards)
	if k == 0 {
		return PreviewResult{Targets: map[string]Pose{}}
	}
	m := len(otherCards)

	res := PreviewResult{
		Targets:  make(map[string]Pose, k+m),
		Lines:    make([]Segment, 0, k),
		Linked:   k,
		Unlinked: m,
	}

	axis := r3.Vec{Y: 1}
	if r3.Norm(selected.Position) > 0 {
		axis = r3.Unit(selected.Position)
	}
	ref := r3.Add(selected.Position, r3.Vec{Y: p.Radius * math.Sin(p.HalfAngle)})
	linkStep := 2 * math.Pi / float64(k)
	for i, c := range linkedCards {
		pos := AxisAngle(ref, axis, linkStep*float64(i))
		res.Targets[c.Title] = Pose{Position: pos, RotationY: selected.RotationY}
		res.Lines = append(res.Lines, Segment{From: selected.Position, To: pos})
	}

	if m == 0 {
		return res
	}
	otherStep := (2*math.Pi - 2*p.HalfAngle) / float64(m)
	for j, c := range otherCards {
		angle := p.HalfAngle + otherStep*float64(j)
		res.Targets[c.Title] = Pose{
			Position:  RotateY(selected.Position, angle),
			RotationY: selected.RotationY - angle,
		}
	}
	return res
}

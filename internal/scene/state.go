// Package scene owns the card scene: the ordered cards of one project, their
// link graph, the connector lines, and the animation countdown that moves
// cards between layouts one frame at a time.
package scene

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/layout"
	"github.com/starford/cardring/internal/linkgraph"
	"github.com/starford/cardring/internal/texture"
)

var (
	// ErrBusy is returned for layout requests made while an animation runs.
	ErrBusy = apperr.ErrBusy
	// ErrUnknownCard is returned when a title has no card on the ring.
	ErrUnknownCard = fmt.Errorf("scene: unknown card: %w", apperr.ErrNotFound)
)

// Params are the layout and animation constants of a scene.
type Params struct {
	Radius     float64
	BaseHeight float64
	// PreviewHalfAngle is the wedge, in radians, kept free on each side of
	// a selected card.
	PreviewHalfAngle float64
	PreviewFrames    int
	RotationFrames   int
	SpinFrames       int
}

// DefaultParams returns the constants the web client was tuned with.
func DefaultParams() Params {
	return Params{
		Radius:           0.6,
		BaseHeight:       0,
		PreviewHalfAngle: math.Pi / 8,
		PreviewFrames:    45,
		RotationFrames:   30,
		SpinFrames:       100,
	}
}

// Card is the scene object for one page.
type Card struct {
	// Title is the normalized page title and the card identity.
	Title string
	// Display is the title as the source spelled it.
	Display          string
	Position         r3.Vec
	RotationY        float64
	Velocity         r3.Vec
	AngularVelocityY float64
	Texture          texture.Handle

	target *layout.Pose
}

func (c *Card) slot() layout.Slot {
	return layout.Slot{Title: c.Title, Pose: layout.Pose{Position: c.Position, RotationY: c.RotationY}}
}

// State is everything the scheduler mutates. It is not safe for concurrent
// use; Session serializes access to it.
type State struct {
	Generation      uuid.UUID
	Cards           []*Card
	Links           linkgraph.Graph
	Lines           []layout.Segment
	Selected        string
	FramesRemaining int
	Frame           uint64

	byTitle map[string]*Card
}

func newState(cards []*Card, links linkgraph.Graph) *State {
	if links == nil {
		links = linkgraph.Graph{}
	}
	st := &State{
		Generation: uuid.New(),
		Cards:      cards,
		Links:      links,
		byTitle:    make(map[string]*Card, len(cards)),
	}
	for _, c := range cards {
		st.byTitle[c.Title] = c
	}
	return st
}

// Card returns the card with the given title, compared case-insensitively.
func (st *State) Card(title string) (*Card, bool) {
	c, ok := st.byTitle[linkgraph.Normalize(title)]
	return c, ok
}

// Animating reports whether a transition is in flight.
func (st *State) Animating() bool {
	return st.FramesRemaining > 0
}

func (st *State) slots() []layout.Slot {
	out := make([]layout.Slot, len(st.Cards))
	for i, c := range st.Cards {
		out[i] = c.slot()
	}
	return out
}

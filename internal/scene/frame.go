package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/starford/cardring/internal/layout"
)

// Event kinds passed to a FrameSink.
const (
	EventFrame = "scene.frame"
	EventReset = "scene.reset"
)

// FrameSink receives a snapshot whenever the scene changes. It is called from
// the session goroutine and must not block.
type FrameSink func(kind string, f Frame)

// Point is a JSON-friendly 3D point.
type Point [3]float64

func pointOf(v r3.Vec) Point { return Point{v.X, v.Y, v.Z} }

// Vec converts p back to a vector.
func (p Point) Vec() r3.Vec { return r3.Vec{X: p[0], Y: p[1], Z: p[2]} }

// CardPose is what the render sink needs to draw one card.
type CardPose struct {
	Title     string   `json:"title"`
	Display   string   `json:"display"`
	Position  Point    `json:"position"`
	RotationY float64  `json:"rotation_y"`
	Texture   string   `json:"texture,omitempty"`
	Links     []string `json:"links"`
}

// Frame is a snapshot of the scene for the render sink.
type Frame struct {
	Generation      string     `json:"generation"`
	Frame           uint64     `json:"frame"`
	FramesRemaining int        `json:"frames_remaining"`
	Selected        string     `json:"selected,omitempty"`
	Cards           []CardPose `json:"cards"`
	Lines           [][2]Point `json:"lines"`
}

// Snapshot copies the drawable part of st.
func (st *State) Snapshot() Frame {
	f := Frame{
		Generation:      st.Generation.String(),
		Frame:           st.Frame,
		FramesRemaining: st.FramesRemaining,
		Selected:        st.Selected,
		Cards:           make([]CardPose, len(st.Cards)),
		Lines:           make([][2]Point, len(st.Lines)),
	}
	for i, c := range st.Cards {
		links := st.Links[c.Title]
		if links == nil {
			links = []string{}
		}
		f.Cards[i] = CardPose{
			Title:     c.Title,
			Display:   c.Display,
			Position:  pointOf(c.Position),
			RotationY: c.RotationY,
			Texture:   c.Texture.Key,
			Links:     append([]string(nil), links...),
		}
	}
	for i, l := range st.Lines {
		f.Lines[i] = segmentPoints(l)
	}
	return f
}

func segmentPoints(l layout.Segment) [2]Point {
	return [2]Point{pointOf(l.From), pointOf(l.To)}
}

package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/starford/cardring/internal/layout"
	"github.com/starford/cardring/internal/linkgraph"
)

// Scheduler drives the scene between two states: Idle (no frames left) and
// Animating. A transition fixes every moving card's per-frame velocity so
// that it lands on its target after exactly the frame budget. Requests that
// would start a transition while one is running are rejected with ErrBusy;
// nothing is queued and a running transition is never interrupted.
type Scheduler struct {
	params Params
	state  *State
	// step returns the ring rotation for the frame about to be played, given
	// the frames remaining. nil when the transition does not rotate the ring.
	step func(remaining int) float64
}

// NewScheduler returns a scheduler over an empty scene.
func NewScheduler(p Params) *Scheduler {
	return &Scheduler{params: p, state: newState(nil, nil)}
}

// Params returns the scheduler constants.
func (s *Scheduler) Params() Params { return s.params }

// State returns the scene state. Callers must not mutate it.
func (s *Scheduler) State() *State { return s.state }

// Idle reports whether a new transition may start.
func (s *Scheduler) Idle() bool { return !s.state.Animating() }

// Reset replaces the scene with cards placed evenly on the ring, in order.
// It drops any running transition and starts a new generation.
func (s *Scheduler) Reset(cards []*Card, links linkgraph.Graph) {
	poses := layout.Ring(len(cards), s.params.BaseHeight, s.params.Radius)
	for i, c := range cards {
		c.Position = poses[i].Position
		c.RotationY = poses[i].RotationY
		c.Velocity = r3.Vec{}
		c.AngularVelocityY = 0
		c.target = nil
	}
	s.state = newState(cards, links)
	s.step = nil
}

// StartPreview selects the card titled title and starts moving its linked
// cards onto the preview ring and the others around the rest of the circle.
// It returns false without error when the card has no linked card on the
// ring, in which case nothing changes.
func (s *Scheduler) StartPreview(title string) (bool, error) {
	if !s.Idle() {
		return false, ErrBusy
	}
	st := s.state
	sel, ok := st.Card(title)
	if !ok {
		return false, ErrUnknownCard
	}
	sel.Velocity = r3.Vec{}
	sel.AngularVelocityY = 0

	res := layout.Preview(sel.slot(), st.Links[sel.Title], st.slots(), layout.PreviewParams{
		HalfAngle: s.params.PreviewHalfAngle,
		Radius:    s.params.Radius,
	})
	if res.Empty() {
		return false, nil
	}

	frames := float64(s.params.PreviewFrames)
	for _, c := range st.Cards {
		tgt, ok := res.Targets[c.Title]
		if !ok {
			continue
		}
		c.Velocity = r3.Scale(1/frames, r3.Sub(tgt.Position, c.Position))
		c.AngularVelocityY = (tgt.RotationY - c.RotationY) / frames
		c.target = &tgt
	}
	st.Lines = res.Lines
	st.Selected = sel.Title
	st.FramesRemaining = s.params.PreviewFrames
	s.step = nil
	return true, nil
}

// StartRotation turns every card and line about the Y axis by delta, spread
// evenly over the rotation frame budget.
func (s *Scheduler) StartRotation(delta float64) error {
	if !s.Idle() {
		return ErrBusy
	}
	inc := delta / float64(s.params.RotationFrames)
	s.step = func(int) float64 { return inc }
	s.state.FramesRemaining = s.params.RotationFrames
	return nil
}

// StartSpin starts the eased free spin played after a shake: fast at first,
// slowing to a stop.
func (s *Scheduler) StartSpin() error {
	if !s.Idle() {
		return ErrBusy
	}
	frames := s.params.SpinFrames
	s.step = func(remaining int) float64 { return spinStep(remaining, frames) }
	s.state.FramesRemaining = frames
	return nil
}

func spinStep(remaining, frames int) float64 {
	r, f := float64(remaining), float64(frames)
	switch {
	case r > f*0.8:
		return 0.05
	case r > f*0.5:
		return 0.03
	default:
		return math.Min(0.03, r/f)
	}
}

// RotateNow turns the scene about the Y axis immediately, without a
// transition. Only allowed while idle.
func (s *Scheduler) RotateNow(delta float64) error {
	if !s.Idle() {
		return ErrBusy
	}
	s.rotate(delta)
	s.state.Frame++
	return nil
}

// Lift moves every card and line up by dy. Only allowed while idle.
func (s *Scheduler) Lift(dy float64) error {
	if !s.Idle() {
		return ErrBusy
	}
	d := r3.Vec{Y: dy}
	for _, c := range s.state.Cards {
		c.Position = r3.Add(c.Position, d)
	}
	for i, l := range s.state.Lines {
		s.state.Lines[i] = l.Translate(d)
	}
	s.state.Frame++
	return nil
}

// Tick plays one frame. It reports whether anything moved.
func (s *Scheduler) Tick() bool {
	st := s.state
	if st.FramesRemaining == 0 {
		return false
	}
	if s.step != nil {
		s.rotate(s.step(st.FramesRemaining))
	}
	for _, c := range st.Cards {
		c.Position = r3.Add(c.Position, c.Velocity)
		c.RotationY += c.AngularVelocityY
	}
	st.FramesRemaining--
	st.Frame++
	if st.FramesRemaining == 0 {
		s.settle()
	}
	return true
}

// settle ends a transition: cards with a target snap onto it so float
// accumulation never leaves them short, and all velocities are cleared.
func (s *Scheduler) settle() {
	for _, c := range s.state.Cards {
		if c.target != nil {
			c.Position = c.target.Position
			c.RotationY = c.target.RotationY
			c.target = nil
		}
		c.Velocity = r3.Vec{}
		c.AngularVelocityY = 0
	}
	s.step = nil
}

func (s *Scheduler) rotate(rad float64) {
	for _, c := range s.state.Cards {
		c.Position = layout.RotateY(c.Position, rad)
		c.RotationY -= rad
	}
	for i, l := range s.state.Lines {
		s.state.Lines[i] = l.RotateY(rad)
	}
}

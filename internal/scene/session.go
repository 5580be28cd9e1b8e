package scene

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/linkgraph"
)

type request struct {
	fn    func() (any, error)
	reply chan result
}

type result struct {
	v   any
	err error
}

// Session runs the scene of one project.
//
// Concurrency model: a single goroutine owns the Scheduler and its State. It
// plays one frame per ticker tick and serves requests between frames; public
// methods hand it closures over a channel and wait for the reply. The
// scheduler therefore only ever has one writer and needs no locks.
type Session struct {
	project  string
	sched    *Scheduler
	interval time.Duration
	sink     FrameSink
	logger   *slog.Logger
	shake    ShakeDetector

	reqCh   chan request
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewSession starts an empty session ticking at fps frames per second. sink
// may be nil.
func NewSession(project string, p Params, fps int, sink FrameSink, logger *slog.Logger) *Session {
	if fps <= 0 {
		fps = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		project:  project,
		sched:    NewScheduler(p),
		interval: time.Second / time.Duration(fps),
		sink:     sink,
		logger:   logger.With(slog.String("project", project)),
		reqCh:    make(chan request),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case req := <-s.reqCh:
			v, err := req.fn()
			req.reply <- result{v: v, err: err}
		case <-ticker.C:
			if s.sched.Tick() {
				s.publish(EventFrame)
			}
		}
	}
}

func (s *Session) publish(kind string) {
	if s.sink != nil {
		s.sink(kind, s.sched.State().Snapshot())
	}
}

// Project returns the project name.
func (s *Session) Project() string { return s.project }

// Close stops the session goroutine. Pending and later calls fail with
// apperr.ErrClosed.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}

func (s *Session) do(ctx context.Context, fn func() (any, error)) (any, error) {
	if s.closed.Load() {
		return nil, apperr.ErrClosed
	}
	req := request{fn: fn, reply: make(chan result, 1)}
	select {
	case s.reqCh <- req:
	case <-s.stopped:
		return nil, apperr.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.v, r.err
	case <-s.stopped:
		return nil, apperr.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) exec(ctx context.Context, fn func() error) error {
	_, err := s.do(ctx, func() (any, error) { return nil, fn() })
	return err
}

// Reset replaces the scene with cards placed on the ring.
func (s *Session) Reset(ctx context.Context, cards []*Card, links linkgraph.Graph) error {
	return s.exec(ctx, func() error {
		s.sched.Reset(cards, links)
		s.logger.Info("scene: reset",
			slog.Int("cards", len(cards)),
			slog.String("generation", s.sched.State().Generation.String()))
		s.publish(EventReset)
		return nil
	})
}

// Load fetches the project through f and resets the scene with the result.
// Fetching happens outside the session goroutine; frames keep playing.
func (s *Session) Load(ctx context.Context, f Fetcher, concurrency int) error {
	cards, links, err := LoadProject(ctx, f, s.project, concurrency, s.logger)
	if err != nil {
		return err
	}
	return s.Reset(ctx, cards, links)
}

// Select starts the preview transition for title. It reports false when the
// card has no linked card on the ring.
func (s *Session) Select(ctx context.Context, title string) (bool, error) {
	v, err := s.do(ctx, func() (any, error) {
		started, err := s.sched.StartPreview(title)
		if started {
			s.logger.Debug("scene: preview started", slog.String("title", title))
			s.publish(EventFrame)
		}
		return started, err
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Rotate starts an animated rotation of the whole scene by delta radians.
func (s *Session) Rotate(ctx context.Context, delta float64) error {
	return s.exec(ctx, func() error { return s.sched.StartRotation(delta) })
}

// Spin starts the eased free spin.
func (s *Session) Spin(ctx context.Context) error {
	return s.exec(ctx, func() error { return s.sched.StartSpin() })
}

// RotateNow rotates the scene immediately while idle.
func (s *Session) RotateNow(ctx context.Context, delta float64) error {
	return s.exec(ctx, func() error {
		if err := s.sched.RotateNow(delta); err != nil {
			return err
		}
		s.publish(EventFrame)
		return nil
	})
}

// Lift moves the scene up by dy while idle.
func (s *Session) Lift(ctx context.Context, dy float64) error {
	return s.exec(ctx, func() error {
		if err := s.sched.Lift(dy); err != nil {
			return err
		}
		s.publish(EventFrame)
		return nil
	})
}

// Camera feeds the viewer position of the current frame to the shake
// detector. A detected shake starts a spin when the scene is idle; the
// result reports whether one was started.
func (s *Session) Camera(ctx context.Context, pos r3.Vec) (bool, error) {
	v, err := s.do(ctx, func() (any, error) {
		if !s.shake.Observe(pos) || !s.sched.Idle() {
			return false, nil
		}
		s.logger.Debug("scene: shake detected")
		return true, s.sched.StartSpin()
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Snapshot returns the current frame.
func (s *Session) Snapshot(ctx context.Context) (Frame, error) {
	v, err := s.do(ctx, func() (any, error) { return s.sched.State().Snapshot(), nil })
	if err != nil {
		return Frame{}, err
	}
	return v.(Frame), nil
}

// WaitIdle blocks until no transition is running and returns that frame.
func (s *Session) WaitIdle(ctx context.Context) (Frame, error) {
	for {
		f, err := s.Snapshot(ctx)
		if err != nil {
			return Frame{}, err
		}
		if f.FramesRemaining == 0 {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

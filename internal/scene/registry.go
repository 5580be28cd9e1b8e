package scene

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// RegistryConfig configures the sessions a Registry creates.
type RegistryConfig struct {
	Params      Params
	FPS         int
	Concurrency int
	// Sink returns the frame sink of a project's session. Optional.
	Sink func(project string) FrameSink
}

type entry struct {
	session *Session
	ready   chan struct{}
	err     error
}

// Registry lazily creates and loads one Session per project.
type Registry struct {
	fetcher Fetcher
	cfg     RegistryConfig
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates a registry loading projects through f.
func NewRegistry(f Fetcher, cfg RegistryConfig, logger *slog.Logger) *Registry {
	return &Registry{
		fetcher: f,
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Session returns the loaded session of project, loading it on first use.
// Concurrent callers for the same project share one load. A failed load is
// forgotten so the next call retries.
func (r *Registry) Session(ctx context.Context, project string) (*Session, error) {
	r.mu.Lock()
	e, ok := r.entries[project]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.entries[project] = e
	}
	r.mu.Unlock()

	if !ok {
		e.session, e.err = r.open(ctx, project)
		if e.err != nil {
			r.mu.Lock()
			delete(r.entries, project)
			r.mu.Unlock()
		}
		close(e.ready)
	}

	select {
	case <-e.ready:
		return e.session, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) open(ctx context.Context, project string) (*Session, error) {
	var sink FrameSink
	if r.cfg.Sink != nil {
		sink = r.cfg.Sink(project)
	}
	s := NewSession(project, r.cfg.Params, r.cfg.FPS, sink, r.logger)
	if err := s.Load(ctx, r.fetcher, r.cfg.Concurrency); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Reload refetches a project that already has a session. Projects never
// opened are left alone.
func (r *Registry) Reload(ctx context.Context, project string) error {
	r.mu.Lock()
	e, ok := r.entries[project]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if e.session == nil {
		return nil
	}
	return e.session.Load(ctx, r.fetcher, r.cfg.Concurrency)
}

// Projects returns the names of the projects with a session, sorted.
func (r *Registry) Projects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.session != nil {
			e.session.Close()
		}
	}
}

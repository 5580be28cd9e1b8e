package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/starford/cardring/internal/scene"
	"github.com/starford/cardring/internal/sse"
)

// Scenes resolves the running scene of a project.
type Scenes interface {
	Session(ctx context.Context, project string) (*scene.Session, error)
}

// SceneHandler holds the scene route handlers.
type SceneHandler struct {
	scenes Scenes
	broker *sse.Broker
}

// NewSceneHandler creates a new SceneHandler. broker may be nil, in which
// case the events endpoint is not served.
func NewSceneHandler(scenes Scenes, broker *sse.Broker) *SceneHandler {
	return &SceneHandler{scenes: scenes, broker: broker}
}

func (h *SceneHandler) session(w http.ResponseWriter, r *http.Request) (*scene.Session, bool) {
	s, err := h.scenes.Session(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, "load scene", err)
		return nil, false
	}
	return s, true
}

func (h *SceneHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, s *scene.Session, status int) {
	f, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, "snapshot", err)
		return
	}
	writeJSON(w, status, f)
}

// Get handles GET /api/scenes/{project}.
//
//	@Summary		Current frame of a project scene
//	@Tags			scenes
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Success		200		{object}	scene.Frame
//	@Router			/api/scenes/{project} [get]
func (h *SceneHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// Select handles POST /api/scenes/{project}/select.
//
//	@Summary		Select a card and start the preview transition
//	@Tags			scenes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectRequest	true	"Card title"
//	@Success		200		{object}	SelectResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/api/scenes/{project}/select [post]
func (h *SceneHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	started, err := s.Select(r.Context(), req.Title)
	if err != nil {
		writeError(w, "select", err)
		return
	}
	f, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, SelectResponse{Started: started, Scene: f})
}

// Rotate handles POST /api/scenes/{project}/rotate.
//
//	@Summary		Start an animated rotation about the vertical axis
//	@Tags			scenes
//	@Accept			json
//	@Param			body	body		RotateRequest	true	"Angle"
//	@Success		202		{object}	scene.Frame
//	@Failure		409		{object}	errResponse
//	@Router			/api/scenes/{project}/rotate [post]
func (h *SceneHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	var req RotateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Rotate(r.Context(), req.Radians); err != nil {
		writeError(w, "rotate", err)
		return
	}
	h.writeSnapshot(w, r, s, http.StatusAccepted)
}

// Spin handles POST /api/scenes/{project}/spin.
//
//	@Summary		Start the eased free spin
//	@Tags			scenes
//	@Success		202	{object}	scene.Frame
//	@Failure		409	{object}	errResponse
//	@Router			/api/scenes/{project}/spin [post]
func (h *SceneHandler) Spin(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Spin(r.Context()); err != nil {
		writeError(w, "spin", err)
		return
	}
	h.writeSnapshot(w, r, s, http.StatusAccepted)
}

// Lift handles POST /api/scenes/{project}/lift.
//
//	@Summary		Move the scene vertically
//	@Tags			scenes
//	@Accept			json
//	@Param			body	body		LiftRequest	true	"Offset"
//	@Success		200		{object}	scene.Frame
//	@Failure		409		{object}	errResponse
//	@Router			/api/scenes/{project}/lift [post]
func (h *SceneHandler) Lift(w http.ResponseWriter, r *http.Request) {
	var req LiftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Lift(r.Context(), req.DY); err != nil {
		writeError(w, "lift", err)
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// Camera handles POST /api/scenes/{project}/camera.
//
//	@Summary		Report the viewer position of a rendered frame
//	@Tags			scenes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CameraRequest	true	"Viewer position"
//	@Success		200		{object}	CameraResponse
//	@Router			/api/scenes/{project}/camera [post]
func (h *SceneHandler) Camera(w http.ResponseWriter, r *http.Request) {
	var req CameraRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	spun, err := s.Camera(r.Context(), r3.Vec{X: req.X, Y: req.Y, Z: req.Z})
	if err != nil {
		writeError(w, "camera", err)
		return
	}
	writeJSON(w, http.StatusOK, CameraResponse{Spun: spun})
}

// Events handles GET /api/scenes/{project}/events. The stream opens with
// the current frame.
func (h *SceneHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	err := h.broker.ServeTopic(w, r, s.Project(), func() ([]sse.Event, error) {
		f, err := s.Snapshot(r.Context())
		if err != nil {
			return nil, err
		}
		return []sse.Event{{Type: scene.EventFrame, Data: f}}, nil
	})
	if err != nil {
		writeError(w, "snapshot", err)
	}
}

package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starford/cardring/internal/scene"
	"github.com/starford/cardring/internal/texture"
)

// Opener launches URLs on the host machine.
type Opener interface {
	Open(ctx context.Context, rawURL string) error
}

// Handler holds the proxy route handlers.
type Handler struct {
	fetcher scene.Fetcher
	opener  Opener
}

// NewHandler creates a new Handler.
func NewHandler(f scene.Fetcher, o Opener) *Handler {
	return &Handler{fetcher: f, opener: o}
}

// ProjectData handles GET /projectData.
//
//	@Summary		List the pages of a project
//	@Tags			proxy
//	@Produce		json
//	@Param			project	query		string	true	"Project name"
//	@Success		200		{object}	ProjectDataResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/projectData [get]
func (h *Handler) ProjectData(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'project' is required"))
		return
	}
	pages, err := h.fetcher.ProjectPages(r.Context(), project)
	if err != nil {
		writeError(w, "project data", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectDataResponse{Pages: pages})
}

// PageData handles GET /pageData.
//
//	@Summary		Get one page with its links
//	@Tags			proxy
//	@Produce		json
//	@Param			project	query		string	true	"Project name"
//	@Param			page	query		string	true	"Page title"
//	@Success		200		{object}	PageDataResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/pageData [get]
func (h *Handler) PageData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	project, page := q.Get("project"), q.Get("page")
	if project == "" || page == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'project' and 'page' are required"))
		return
	}
	d, err := h.fetcher.PageDetail(r.Context(), project, page)
	if err != nil {
		writeError(w, "page data", err)
		return
	}
	writeJSON(w, http.StatusOK, pageDataResponse(d))
}

// URL2Base64 handles GET /url2base64.
//
//	@Summary		Fetch an image as a data URI
//	@Tags			proxy
//	@Produce		plain
//	@Param			url	query		string	true	"Image URL"
//	@Success		200	{string}	string	"data URI; a 1x1 GIF when the image is unavailable"
//	@Router			/url2base64 [get]
func (h *Handler) URL2Base64(w http.ResponseWriter, r *http.Request) {
	uri := texture.Placeholder
	if u := r.URL.Query().Get("url"); u != "" {
		uri = h.fetcher.ImageDataURI(r.Context(), u)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(uri))
}

// Open handles GET /open.
//
//	@Summary		Open a URL in the browser of the host
//	@Tags			proxy
//	@Param			url	query	string	true	"http or https URL"
//	@Success		204	"Opened"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/open [get]
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if err := h.opener.Open(r.Context(), u); err != nil {
		writeError(w, "open", err)
		return
	}
	slog.Info("opened url on host", slog.String("url", u))
	w.WriteHeader(http.StatusNoContent)
}

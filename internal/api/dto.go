package api

import (
	"errors"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/scene"
)

// ProjectDataResponse is the project listing in Scrapbox shape.
type ProjectDataResponse struct {
	Pages []models.PageSummary `json:"pages" validate:"required"`
}

// RelatedPage is one entry of RelatedPages.
type RelatedPage struct {
	Title string `json:"title" example:"Help" validate:"required"`
}

// RelatedPages holds the titles one hop away from a page.
type RelatedPages struct {
	Links1Hop []RelatedPage `json:"links1hop" validate:"required"`
}

// PageDataResponse is one page in Scrapbox shape.
type PageDataResponse struct {
	Title        string       `json:"title" example:"Help" validate:"required"`
	Image        string       `json:"image,omitempty" example:"https://gyazo.com/abc/raw"`
	Links        []string     `json:"links" validate:"required"`
	RelatedPages RelatedPages `json:"relatedPages" validate:"required"`
}

func pageDataResponse(d *models.PageDetail) PageDataResponse {
	resp := PageDataResponse{
		Title:        d.Title,
		Image:        d.Image,
		Links:        d.Links,
		RelatedPages: RelatedPages{Links1Hop: make([]RelatedPage, 0, len(d.Related))},
	}
	if resp.Links == nil {
		resp.Links = []string{}
	}
	for _, t := range d.Related {
		resp.RelatedPages.Links1Hop = append(resp.RelatedPages.Links1Hop, RelatedPage{Title: t})
	}
	return resp
}

// SelectRequest is the request body for selecting a card.
type SelectRequest struct {
	Title string `json:"title" example:"Help" validate:"required"`
}

// Validate validates the request.
func (r *SelectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required),
	)
}

// SelectResponse reports whether a preview transition started.
type SelectResponse struct {
	Started bool        `json:"started"`
	Scene   scene.Frame `json:"scene"`
}

// RotateRequest is the request body for an animated rotation.
type RotateRequest struct {
	Radians float64 `json:"radians" example:"0.785"`
}

// Validate validates the request.
func (r *RotateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Radians, validation.By(finite)),
	)
}

// LiftRequest is the request body for moving the scene vertically.
type LiftRequest struct {
	DY float64 `json:"dy" example:"0.1"`
}

// Validate validates the request.
func (r *LiftRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DY, validation.By(finite)),
	)
}

// CameraRequest is the viewer position of one rendered frame.
type CameraRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Validate validates the request.
func (r *CameraRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.X, validation.By(finite)),
		validation.Field(&r.Y, validation.By(finite)),
		validation.Field(&r.Z, validation.By(finite)),
	)
}

// CameraResponse reports whether the camera motion started a spin.
type CameraResponse struct {
	Spun bool `json:"spun"`
}

func finite(v any) error {
	f, _ := v.(float64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a finite number")
	}
	return nil
}

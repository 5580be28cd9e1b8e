// Package texture describes the card face for a page: the decoded thumbnail
// and where it is fitted on the card canvas. Drawing is left to the client.
package texture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoders
	_ "image/jpeg" // register decoders
	_ "image/png"  // register decoders
	"strings"

	_ "golang.org/x/image/webp" // register decoders

	"github.com/starford/cardring/internal/checksum"
)

// Card canvas geometry in pixels.
const (
	CardWidth   = 200
	TitleHeight = 50
	ImageHeight = 150
)

// Placeholder is the 1×1 transparent GIF served when an image cannot be fetched.
const Placeholder = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEHAAEALAAAAAABAAEAAAICTAEAOw=="

// ErrInvalidDataURI is returned when the input is not a base64 data URI.
var ErrInvalidDataURI = errors.New("texture: invalid data URI")

// Handle identifies a built card face.
type Handle struct {
	// Key is the checksum.Key of the decoded image bytes.
	Key   string `json:"key"`
	Title string `json:"title"`
	MIME  string `json:"mime"`
	// Source is the decoded image size.
	Source image.Point `json:"source"`
	// Thumb is where the image is drawn on the card canvas.
	Thumb image.Rectangle `json:"thumb"`
}

// Build decodes dataURI and fits the image into the thumbnail area below the
// title band, keeping its aspect ratio.
func Build(title, dataURI string) (Handle, error) {
	mime, raw, err := decodeDataURI(dataURI)
	if err != nil {
		return Handle{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Handle{}, fmt.Errorf("texture: decode %s: %w", mime, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Handle{}, fmt.Errorf("texture: empty image %dx%d", cfg.Width, cfg.Height)
	}
	return Handle{
		Key:    checksum.Key(raw),
		Title:  title,
		MIME:   mime,
		Source: image.Pt(cfg.Width, cfg.Height),
		Thumb:  Fit(cfg.Width, cfg.Height),
	}, nil
}

// Fallback builds the handle for the placeholder image. It never fails.
func Fallback(title string) Handle {
	h, err := Build(title, Placeholder)
	if err != nil {
		return Handle{Title: title, MIME: "image/gif"}
	}
	return h
}

// Fit scales a w×h image to the card width, or to the thumbnail height when
// that would overflow, and centers it in the thumbnail area.
func Fit(w, h int) image.Rectangle {
	fw := CardWidth
	fh := h * CardWidth / w
	if fh > ImageHeight {
		fw = w * ImageHeight / h
		fh = ImageHeight
	}
	cx, cy := CardWidth/2, TitleHeight+ImageHeight/2
	origin := image.Pt(cx-fw/2, cy-fh/2)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(fw, fh))}
}

func decodeDataURI(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return mime, raw, nil
}

// EncodeDataURI returns data as a base64 data URI of the given MIME type.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

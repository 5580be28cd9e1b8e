// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrBusy       = errors.New("animation in progress")
	ErrInvalidURL = errors.New("invalid url")
	ErrClosed     = errors.New("closed")
)

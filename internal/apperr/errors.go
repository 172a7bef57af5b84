// Package apperr defines the closed set of error kinds surfaced by the
// application. Callers classify failures with errors.Is against these
// sentinels and decide handling per kind.
package apperr

import "errors"

var (
	ErrValidation = errors.New("invalid input")
	ErrDuplicate  = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")
	ErrCorrupt    = errors.New("registry corrupt")
)

// Package service implements the PackVault core: upload, diff, reuse and
// reconstruction of category archives.
package service

import "errors"

// Common service errors.
var (
	// ErrInternalError wraps infrastructure failures (database, object
	// store) so handlers can map them without leaking details.
	ErrInternalError = errors.New("internal error")
)

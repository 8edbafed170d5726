// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoSelection       = errors.New("no selection")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidCommand    = errors.New("invalid command")
	ErrUnknownCommand    = errors.New("unknown command")
)

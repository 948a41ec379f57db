// Package database defines the errors shared by storage implementations.
package database

import "errors"

var (
	// ErrShortCodeExists is returned when an insert collides with an existing
	// short code. Generated-code collisions are transient and retried by the
	// service with a fresh code.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrAliasExists is returned when an insert collides with an existing
	// custom alias or short code in the shared identifier namespace.
	ErrAliasExists = errors.New("custom alias exists")
	// ErrURLNotFound is returned when no record matches the given identifier.
	ErrURLNotFound = errors.New("url not found")
)

// Package models defines the entities shared between the storage and
// service layers: the shortened URL record and its recorded visits.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trimlink/trimlink/pkg/device"
)

// CountryUnknown is recorded when the visitor's country cannot be resolved.
const CountryUnknown = "Unknown"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the generated code associated with the original URL.
	ShortCode string
	// CustomAlias is an optional user-chosen code; empty when not set.
	// It shares the uniqueness namespace with ShortCode and is stored lowercase.
	CustomAlias string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// OwnerID identifies the principal that created the record.
	OwnerID uuid.UUID
	// VisitCount tracks the number of times the shortened URL has been visited.
	// It always equals the number of recorded visits.
	VisitCount int64
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt is the optional absolute expiry; nil means the URL never expires.
	ExpiresAt *time.Time
}

// Identifier returns the code the record is shared under: the custom alias
// when one was set, otherwise the generated short code.
func (u *URL) Identifier() string {
	if u.CustomAlias != "" {
		return u.CustomAlias
	}
	return u.ShortCode
}

// Expired reports whether the record is past its expiry at the given instant.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

// Visit is a single recorded redirect of a shortened URL.
// Visits are append-only and owned exclusively by their URL record.
type Visit struct {
	ID        int64
	URLID     int64
	Timestamp time.Time
	Country   string
	Device    device.Class
	// IP and UserAgent are best-effort request metadata and may be empty.
	IP        string
	UserAgent string
}

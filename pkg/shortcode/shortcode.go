// Package shortcode generates short codes for URL records and validates
// user-supplied custom aliases.
package shortcode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultLength is the default short code length. Seven characters over the
// 64-character nanoid alphabet give ~4 * 10^12 combinations, which keeps the
// collision probability negligible for populations up to 10^7 records.
const DefaultLength = 7

const (
	// MinAliasLength is the minimum allowed custom alias length.
	MinAliasLength = 3
	// MaxAliasLength is the maximum allowed custom alias length.
	MaxAliasLength = 50
)

var (
	// ErrAliasLength is returned when an alias is outside the allowed length bounds.
	ErrAliasLength = fmt.Errorf("alias must be between %d and %d characters", MinAliasLength, MaxAliasLength)
	// ErrAliasCharset is returned when an alias contains characters outside [A-Za-z0-9_-].
	ErrAliasCharset = errors.New("alias can only contain letters, numbers, hyphens and underscores")
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generate returns a new random short code of the given length, drawn from
// the URL-safe nanoid alphabet. Uniqueness is enforced by the store at insert
// time; on conflict the caller retries with a fresh code.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	return gonanoid.New(length)
}

// ValidateAlias checks custom alias syntax. It is purely syntactic and never
// touches the store; uniqueness is checked separately at insert time.
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return ErrAliasLength
	}
	if !aliasPattern.MatchString(alias) {
		return ErrAliasCharset
	}
	return nil
}

// Normalize lowercases an alias for storage. Aliases are stored and resolved
// in their normalized form.
func Normalize(alias string) string {
	return strings.ToLower(alias)
}

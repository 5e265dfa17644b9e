// Package store provides profile and path management for Courier.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidProfileID indicates the profile ID format is invalid.
var ErrInvalidProfileID = errors.New("invalid profile ID: must be lowercase alphanumeric with hyphens, 1-64 characters")

// profileIDRegex validates profile ID format.
// - Lowercase alphanumeric and hyphens (a-z, 0-9, -)
// - Length: 1-64 characters
// - No leading/trailing hyphens, no consecutive hyphens
var profileIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// ValidateProfileID validates a profile ID format.
// Returns ErrInvalidProfileID if the ID doesn't match the required pattern.
func ValidateProfileID(id string) error {
	if id == "" || len(id) > 64 {
		return ErrInvalidProfileID
	}
	if strings.Contains(id, "--") {
		return ErrInvalidProfileID
	}
	if !profileIDRegex.MatchString(id) {
		return ErrInvalidProfileID
	}
	return nil
}

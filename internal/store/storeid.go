// Package store resolves curator store IDs to database paths.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// Store ID validation errors.
var (
	// ErrInvalidStoreID indicates the store ID format is invalid.
	ErrInvalidStoreID = errors.New("invalid store ID: must be lowercase alphanumeric with hyphens, 1-4 path segments")

	// ErrReservedStoreID indicates the store ID is reserved and cannot be created.
	ErrReservedStoreID = errors.New("reserved store ID")
)

// DefaultStoreID is used when no store is named explicitly or via the environment.
const DefaultStoreID = "default"

// storeIDPattern: 1-4 "/"-separated segments of [a-z0-9-], 1-64 chars each,
// no leading or trailing hyphen.
var storeIDPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?(/[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?){0,3}$`)

var reservedStoreIDs = map[string]bool{
	DefaultStoreID: true,
	"_system":      true,
}

// ValidateStoreID checks the format of a store ID. Reserved IDs are valid targets.
func ValidateStoreID(id string) error {
	if reservedStoreIDs[id] {
		return nil
	}
	if id == "" || len(id) > 256 || strings.Contains(id, "--") {
		return ErrInvalidStoreID
	}
	if !storeIDPattern.MatchString(id) {
		return ErrInvalidStoreID
	}
	return nil
}

// ValidateStoreIDForCreation additionally rejects reserved IDs.
func ValidateStoreIDForCreation(id string) error {
	if err := ValidateStoreID(id); err != nil {
		return err
	}
	if reservedStoreIDs[id] {
		return ErrReservedStoreID
	}
	return nil
}

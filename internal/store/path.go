package store

import (
	"os"
	"path/filepath"
	"strings"
)

// DatabaseFile is the file name of a store's SQLite database.
const DatabaseFile = "curator.db"

// DefaultStoreRoot returns the directory holding all stores.
// CURATOR_HOME overrides the default of ~/.curator; without a home
// directory ./.curator is used.
func DefaultStoreRoot() string {
	if home := os.Getenv("CURATOR_HOME"); home != "" {
		return filepath.Join(home, "stores")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".curator", "stores")
	}
	return filepath.Join(home, ".curator", "stores")
}

// EncodeStorePath maps a path-style store ID to a single directory name.
func EncodeStorePath(storeID string) string {
	return strings.ReplaceAll(storeID, "/", "__")
}

// DecodeStorePath reverses EncodeStorePath.
func DecodeStorePath(encoded string) string {
	return strings.ReplaceAll(encoded, "__", "/")
}

// StoreDBPath returns the database path for a store.
// StoreDBPath("org/team") -> ~/.curator/stores/org__team/curator.db
func StoreDBPath(storeID string) string {
	return filepath.Join(DefaultStoreRoot(), EncodeStorePath(storeID), DatabaseFile)
}

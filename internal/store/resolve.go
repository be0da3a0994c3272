package store

import (
	"fmt"
	"os"
)

// ResolveStore picks the store ID: explicit > CURATOR_STORE > DefaultStoreID.
func ResolveStore(explicit string) (string, error) {
	if explicit != "" {
		if err := ValidateStoreID(explicit); err != nil {
			return "", fmt.Errorf("invalid store ID %q: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv("CURATOR_STORE"); env != "" {
		if err := ValidateStoreID(env); err != nil {
			return "", fmt.Errorf("invalid CURATOR_STORE %q: %w", env, err)
		}
		return env, nil
	}

	return DefaultStoreID, nil
}

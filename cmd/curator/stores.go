package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hyperengineering/curator"
	"github.com/hyperengineering/curator/internal/store"
	"github.com/spf13/cobra"
)

var storesCmd = &cobra.Command{
	Use:     "stores",
	Short:   "Manage local stores",
	GroupID: groupStore,
}

var storesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List local stores",
	Example: `  curator stores list --json`,
	Args:    cobra.NoArgs,
	RunE:    runStoresList,
}

var storesCreateCmd = &cobra.Command{
	Use:   "create <store-id>",
	Short: "Create a new store",
	Long: `Create a new local store.

Store ID format:
  - Lowercase alphanumeric characters and hyphens
  - 1 to 4 path segments separated by '/'
  - Each segment 1-64 characters
  - No leading/trailing hyphens, no consecutive hyphens`,
	Example: `  curator stores create companion-nl
  curator stores create care/companion`,
	Args: cobra.ExactArgs(1),
	RunE: runStoresCreate,
}

func init() {
	storesCmd.AddCommand(storesListCmd)
	storesCmd.AddCommand(storesCreateCmd)
	rootCmd.AddCommand(storesCmd)
}

// storeEntry is one row of the store listing.
type storeEntry struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	SeedCount   int    `json:"seed_count"`
	ActiveSeeds int    `json:"active_seeds"`
	Error       string `json:"error,omitempty"`
}

func runStoresList(cmd *cobra.Command, args []string) error {
	root := store.DefaultStoreRoot()
	out := cmd.OutOrStdout()

	dirs, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read stores directory: %w", err)
	}

	entries := []storeEntry{}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(root, d.Name(), store.DatabaseFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		entries = append(entries, describeStore(cmd, store.DecodeStorePath(d.Name()), path))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	if outputJSON {
		return outputAsJSON(cmd, map[string]interface{}{"stores": entries, "total": len(entries)})
	}
	if len(entries) == 0 {
		printWarning(out, "No stores found in %s.", root)
		printMuted(out, "Create one with: curator stores create <store-id>")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		seeds := fmt.Sprintf("%d (%d active)", e.SeedCount, e.ActiveSeeds)
		if e.Error != "" {
			seeds = "unreadable: " + e.Error
		}
		rows = append(rows, []string{e.ID, seeds})
	}
	fmt.Fprintln(out, renderTable([]string{"STORE", "SEEDS"}, rows))
	return nil
}

func describeStore(cmd *cobra.Command, id, path string) storeEntry {
	entry := storeEntry{ID: id, Path: path}

	s, err := curator.NewStore(path)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.SeedCount = stats.SeedCount
	entry.ActiveSeeds = stats.ActiveSeeds
	return entry
}

func runStoresCreate(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := store.ValidateStoreIDForCreation(id); err != nil {
		return fmt.Errorf("store %q: %w", id, err)
	}

	path := store.StoreDBPath(id)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("store %q already exists", id)
	}

	s, err := curator.NewStore(path)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, storeEntry{ID: id, Path: path})
	}
	printSuccess(cmd.OutOrStdout(), "Created store '%s'", id)
	printMuted(cmd.OutOrStdout(), "  %s", path)
	return nil
}

package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ReportVersion is the current version of the effectiveness report format.
const ReportVersion = "1"

// EffectivenessReport is the top-level structure of an exported scan.
type EffectivenessReport struct {
	Version     string                 `json:"version"`
	GeneratedAt time.Time              `json:"generated_at"`
	StoreID     string                 `json:"store_id"`
	Threshold   float64                `json:"threshold"`
	Prunable    []string               `json:"prunable"`
	Profiles    []EffectivenessProfile `json:"profiles"`
}

// WriteEffectivenessReport streams profiles as a JSON report to w. Prunable
// lists the seeds a prune at threshold would deactivate.
func WriteEffectivenessReport(ctx context.Context, w io.Writer, storeID string, threshold float64, profiles []EffectivenessProfile) error {
	if err := validateThreshold(threshold); err != nil {
		return err
	}

	prunable := SelectPrunable(profiles, threshold)
	if prunable == nil {
		prunable = []string{}
	}
	prunableJSON, err := json.Marshal(prunable)
	if err != nil {
		return fmt.Errorf("encode prunable: %w", err)
	}

	header := fmt.Sprintf(`{"version":%s,"generated_at":%s,"store_id":%s,"threshold":%v,"prunable":%s,"profiles":[`,
		jsonString(ReportVersion),
		jsonString(time.Now().UTC().Format(time.RFC3339)),
		jsonString(storeID),
		threshold,
		prunableJSON,
	)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	enc := json.NewEncoder(w)
	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		if err := enc.Encode(profiles[i]); err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
	}

	if _, err := io.WriteString(w, "]}\n"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	return nil
}

// Backup copies the store's database file to destPath after a WAL checkpoint.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint WAL: %w", err)
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("copy database: %w", err)
	}
	return dst.Sync()
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

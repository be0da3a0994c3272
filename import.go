package curator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = "1"

// SnapshotSeed is a seed in snapshot format. Active defaults to true.
type SnapshotSeed struct {
	Seed
	Active *bool `json:"active,omitempty"`
}

// ImportResult summarizes a snapshot import.
type ImportResult struct {
	Seeds     int      `json:"seeds"`
	Skipped   int      `json:"skipped"`
	Feedback  int      `json:"feedback"`
	Usage     int      `json:"usage"`
	Decisions int      `json:"decisions"`
	APICalls  int      `json:"api_calls"`
	DryRun    bool     `json:"dry_run"`
	Errors    []string `json:"errors,omitempty"`
}

// ImportSnapshot streams a JSON snapshot of seeds, feedback, usage and logs
// into the store. Seeds whose ID already exists are skipped. Malformed or
// rejected entries are recorded in the result and the import continues.
func (s *Store) ImportSnapshot(ctx context.Context, r io.Reader, dryRun bool) (*ImportResult, error) {
	dec := json.NewDecoder(r)
	result := &ImportResult{DryRun: dryRun}

	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected opening brace, got %v", token)
	}

	var version string
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}
		field, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", token)
		}

		switch field {
		case "version":
			if err := dec.Decode(&version); err != nil {
				return nil, fmt.Errorf("decode version: %w", err)
			}
			if version != SnapshotVersion {
				return nil, fmt.Errorf("unsupported snapshot version %q (expected %q)", version, SnapshotVersion)
			}
		case "seeds":
			err = importArray(ctx, dec, result, func(v SnapshotSeed) error {
				return s.importSeed(ctx, v, result)
			})
		case "feedback":
			err = importArray(ctx, dec, result, func(v FeedbackRecord) error {
				return s.importOne(dryRun, &result.Feedback, validateFeedback(v), func() error { return s.RecordFeedback(ctx, v) })
			})
		case "usage":
			err = importArray(ctx, dec, result, func(v UsageStat) error {
				return s.importOne(dryRun, &result.Usage, nil, func() error { return s.RecordUsage(ctx, v) })
			})
		case "decisions":
			err = importArray(ctx, dec, result, func(v DecisionLogEntry) error {
				return s.importOne(dryRun, &result.Decisions, nil, func() error { return s.LogDecision(ctx, v) })
			})
		case "api_calls":
			err = importArray(ctx, dec, result, func(v APICollaborationLogEntry) error {
				return s.importOne(dryRun, &result.APICalls, nil, func() error { return s.LogAPICollaboration(ctx, v) })
			})
		default:
			var discard any
			err = dec.Decode(&discard)
		}
		if err != nil {
			return result, fmt.Errorf("import %s: %w", field, err)
		}
	}

	if version == "" {
		return nil, fmt.Errorf("missing version field in snapshot")
	}
	return result, nil
}

func (s *Store) importSeed(ctx context.Context, v SnapshotSeed, result *ImportResult) error {
	seed := v.Seed
	seed.Active = v.Active == nil || *v.Active

	if seed.ID != "" {
		_, err := s.Seed(ctx, seed.ID)
		switch {
		case err == nil:
			result.Skipped++
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}
	return s.importOne(result.DryRun, &result.Seeds, validateSeed(seed), func() error { return s.InsertSeed(ctx, &seed) })
}

// importOne counts an entry that passes check and, unless dryRun, is
// written successfully. check mirrors the store's own validation so a dry
// run reports the same rejections as a real import.
func (s *Store) importOne(dryRun bool, counter *int, check error, write func() error) error {
	if check != nil {
		return check
	}
	if !dryRun {
		if err := write(); err != nil {
			return err
		}
	}
	*counter++
	return nil
}

func validateSeed(seed Seed) error {
	if strings.TrimSpace(seed.Response) == "" {
		return ErrEmptyResponse
	}
	return nil
}

func validateFeedback(rec FeedbackRecord) error {
	if !rec.Rating.IsValid() {
		return ErrInvalidRating
	}
	return nil
}

// importArray decodes a JSON array element by element, handing each to fn.
// Per-element failures are appended to result.Errors.
func importArray[T any](ctx context.Context, dec *json.Decoder, result *ImportResult, fn func(T) error) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read array start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected array, got %v", token)
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var v T
		if err := dec.Decode(&v); err != nil {
			// The decoder cannot resynchronize after a syntax error.
			var syn *json.SyntaxError
			if errors.As(err, &syn) || errors.Is(err, io.ErrUnexpectedEOF) {
				return err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: decode: %v", i, err))
			continue
		}
		if err := fn(v); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: %v", i, err))
		}
	}

	token, err = dec.Token()
	if err != nil {
		return fmt.Errorf("read array end: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != ']' {
		return fmt.Errorf("expected array end, got %v", token)
	}
	return nil
}

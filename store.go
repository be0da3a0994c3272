package curator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/curator/internal/store/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "2"

// timeLayout is fixed-width so that lexical order of stored timestamps
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the SQLite knowledge base and audit logs.
// It implements KnowledgeStore and LogStore.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

var (
	_ KnowledgeStore = (*Store)(nil)
	_ LogStore       = (*Store)(nil)
)

// NewStore opens or creates a curator store at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// --- knowledge reads ---

const seedColumns = `id, emotion, response, triggers, weight, meta, active, created_at, updated_at`

// ActiveSeeds returns every seed with active = 1.
func (s *Store) ActiveSeeds(ctx context.Context) ([]Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+seedColumns+` FROM seeds WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: query active seeds: %w", err)
	}
	defer rows.Close()

	var results []Seed
	for rows.Next() {
		seed, err := scanSeed(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *seed)
	}
	return results, rows.Err()
}

// Seed retrieves a seed by ID regardless of its active flag.
func (s *Store) Seed(ctx context.Context, id string) (*Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+seedColumns+` FROM seeds WHERE id = ?`, id)
	return scanSeed(row)
}

// Feedback returns all feedback records, newest first.
func (s *Store) Feedback(ctx context.Context) ([]FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seed_id, rating, created_at FROM seed_feedback
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query feedback: %w", err)
	}
	defer rows.Close()

	var results []FeedbackRecord
	for rows.Next() {
		var (
			rec       FeedbackRecord
			rating    string
			createdAt string
		)
		if err := rows.Scan(&rec.SeedID, &rating, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan feedback: %w", err)
		}
		rec.Rating = Rating(rating)
		rec.CreatedAt = parseTime(createdAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// UsageStats returns every usage ledger row.
func (s *Store) UsageStats(ctx context.Context) ([]UsageStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id, usage_count, confidence_score, last_used FROM knowledge_usage
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query usage: %w", err)
	}
	defer rows.Close()

	var results []UsageStat
	for rows.Next() {
		var (
			stat     UsageStat
			lastUsed sql.NullString
		)
		if err := rows.Scan(&stat.ContentID, &stat.UsageCount, &stat.ConfidenceScore, &lastUsed); err != nil {
			return nil, fmt.Errorf("store: scan usage: %w", err)
		}
		if lastUsed.Valid && lastUsed.String != "" {
			t := parseTime(lastUsed.String)
			stat.LastUsed = &t
		}
		results = append(results, stat)
	}
	return results, rows.Err()
}

// --- knowledge writes ---

// UpdateSeedResponse replaces the response text of a seed.
func (s *Store) UpdateSeedResponse(ctx context.Context, id, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE seeds SET response = ?, updated_at = ? WHERE id = ?
	`, response, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: update response: %w", err)
	}
	return requireAffected(res)
}

// SetSeedActive sets the active flag of a single seed.
func (s *Store) SetSeedActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE seeds SET active = ?, updated_at = ? WHERE id = ?
	`, boolToInt(active), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: set active: %w", err)
	}
	return requireAffected(res)
}

// DeactivateSeeds sets active = 0 on every listed seed in one transaction.
// Seeds that are already inactive are left untouched. Returns the number of
// seeds whose flag changed.
func (s *Store) DeactivateSeeds(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	placeholders := make([]string, len(ids))
	args := []any{formatTime(time.Now())}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`UPDATE seeds SET active = 0, updated_at = ? WHERE active = 1 AND id IN (%s)`,
		strings.Join(placeholders, ","))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: deactivate seeds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit deactivation: %w", err)
	}
	return int(n), nil
}

// InsertSeed stores a new seed. A ULID is assigned when ID is empty.
func (s *Store) InsertSeed(ctx context.Context, seed *Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if strings.TrimSpace(seed.Response) == "" {
		return ErrEmptyResponse
	}

	if seed.ID == "" {
		seed.ID = ulid.Make().String()
	}
	if seed.Weight == 0 {
		seed.Weight = seed.Meta.WeightOr()
	}
	now := time.Now().UTC()
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = now
	}
	if seed.UpdatedAt.IsZero() {
		seed.UpdatedAt = seed.CreatedAt
	}

	triggers := seed.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	triggersJSON, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("store: marshal triggers: %w", err)
	}
	metaJSON, err := json.Marshal(seed.Meta)
	if err != nil {
		return fmt.Errorf("store: marshal meta: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO seeds (`+seedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seed.ID,
		seed.Emotion,
		seed.Response,
		string(triggersJSON),
		seed.Weight,
		string(metaJSON),
		boolToInt(seed.Active),
		formatTime(seed.CreatedAt),
		formatTime(seed.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert seed: %w", err)
	}
	return nil
}

// RecordFeedback appends a feedback record.
func (s *Store) RecordFeedback(ctx context.Context, rec FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if !rec.Rating.IsValid() {
		return ErrInvalidRating
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seed_feedback (seed_id, rating, created_at) VALUES (?, ?, ?)
	`, rec.SeedID, string(rec.Rating), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert feedback: %w", err)
	}
	return nil
}

// RecordUsage appends a usage ledger row.
func (s *Store) RecordUsage(ctx context.Context, stat UsageStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var lastUsed *string
	if stat.LastUsed != nil {
		ts := formatTime(*stat.LastUsed)
		lastUsed = &ts
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_usage (content_id, usage_count, confidence_score, last_used)
		VALUES (?, ?, ?, ?)
	`, stat.ContentID, stat.UsageCount, stat.ConfidenceScore, lastUsed)
	if err != nil {
		return fmt.Errorf("store: insert usage: %w", err)
	}
	return nil
}

// --- audit logs ---

// LogDecision appends a decision log row.
func (s *Store) LogDecision(ctx context.Context, entry DecisionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	decision, err := json.Marshal(entry.HybridDecision)
	if err != nil {
		return fmt.Errorf("store: marshal hybrid decision: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_log (created_at, confidence_score, user_input, hybrid_decision)
		VALUES (?, ?, ?, ?)
	`, formatTime(entry.CreatedAt), entry.ConfidenceScore, entry.UserInput, string(decision))
	if err != nil {
		return fmt.Errorf("store: insert decision: %w", err)
	}
	return nil
}

// LogAPICollaboration appends an API collaboration log row.
func (s *Store) LogAPICollaboration(ctx context.Context, entry APICollaborationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_collaboration_log (created_at, success, error_details)
		VALUES (?, ?, ?)
	`, formatTime(entry.CreatedAt), boolToInt(entry.Success), nullString(entry.ErrorDetails))
	if err != nil {
		return fmt.Errorf("store: insert api collaboration: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decision rows, newest first.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]DecisionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, confidence_score, user_input, hybrid_decision
		FROM decision_log ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query decisions: %w", err)
	}
	defer rows.Close()

	var results []DecisionLogEntry
	for rows.Next() {
		var (
			entry     DecisionLogEntry
			createdAt string
			decision  string
		)
		if err := rows.Scan(&entry.ID, &createdAt, &entry.ConfidenceScore, &entry.UserInput, &decision); err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		entry.CreatedAt = parseTime(createdAt)
		// A malformed decision payload leaves the emotion empty rather than failing the read.
		_ = json.Unmarshal([]byte(decision), &entry.HybridDecision)
		results = append(results, entry)
	}
	return results, rows.Err()
}

// RecentAPICollaborations returns up to limit API collaboration rows, newest first.
func (s *Store) RecentAPICollaborations(ctx context.Context, limit int) ([]APICollaborationLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, success, error_details
		FROM api_collaboration_log ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query api collaborations: %w", err)
	}
	defer rows.Close()

	var results []APICollaborationLogEntry
	for rows.Next() {
		var (
			entry     APICollaborationLogEntry
			createdAt string
			success   int
			details   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &createdAt, &success, &details); err != nil {
			return nil, fmt.Errorf("store: scan api collaboration: %w", err)
		}
		entry.CreatedAt = parseTime(createdAt)
		entry.Success = success != 0
		entry.ErrorDetails = details.String
		results = append(results, entry)
	}
	return results, rows.Err()
}

// AppendReflection records a reflection event. A ULID is assigned when ID is empty.
func (s *Store) AppendReflection(ctx context.Context, ev ReflectionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	var contextJSON *string
	if len(ev.Context) > 0 {
		c := string(ev.Context)
		contextJSON = &c
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reflection_log (id, trigger_type, context_json, seeds_generated, learning_impact, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.TriggerType, contextJSON, ev.SeedsGenerated, ev.LearningImpact, formatTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert reflection: %w", err)
	}
	return nil
}

// Reflections returns up to limit reflection events, newest first.
func (s *Store) Reflections(ctx context.Context, limit int) ([]ReflectionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_type, context_json, seeds_generated, learning_impact, created_at
		FROM reflection_log ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query reflections: %w", err)
	}
	defer rows.Close()

	var results []ReflectionEvent
	for rows.Next() {
		var (
			ev          ReflectionEvent
			contextJSON sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&ev.ID, &ev.TriggerType, &contextJSON, &ev.SeedsGenerated, &ev.LearningImpact, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan reflection: %w", err)
		}
		if contextJSON.Valid {
			ev.Context = json.RawMessage(contextJSON.String)
		}
		ev.CreatedAt = parseTime(createdAt)
		results = append(results, ev)
	}
	return results, rows.Err()
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{SchemaVersion: schemaVersion}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM seeds", &stats.SeedCount},
		{"SELECT COUNT(*) FROM seeds WHERE active = 1", &stats.ActiveSeeds},
		{"SELECT COUNT(*) FROM seed_feedback", &stats.FeedbackCount},
		{"SELECT COUNT(*) FROM knowledge_usage", &stats.UsageEntries},
		{"SELECT COUNT(*) FROM decision_log", &stats.DecisionCount},
		{"SELECT COUNT(*) FROM api_collaboration_log", &stats.APICallCount},
		{"SELECT COUNT(*) FROM reflection_log", &stats.ReflectionCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}
	return stats, nil
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanSeed scans a single seed row. Returns ErrNotFound only for sql.ErrNoRows.
func scanSeed(sc scanner) (*Seed, error) {
	var (
		seed      Seed
		triggers  string
		meta      string
		active    int
		createdAt string
		updatedAt string
	)

	err := sc.Scan(
		&seed.ID,
		&seed.Emotion,
		&seed.Response,
		&triggers,
		&seed.Weight,
		&meta,
		&active,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan seed: %w", err)
	}

	if err := json.Unmarshal([]byte(triggers), &seed.Triggers); err != nil {
		seed.Triggers = nil
	}
	if err := json.Unmarshal([]byte(meta), &seed.Meta); err != nil {
		seed.Meta = SeedMeta{}
	}
	seed.Active = active != 0
	seed.CreatedAt = parseTime(createdAt)
	seed.UpdatedAt = parseTime(updatedAt)

	return &seed, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

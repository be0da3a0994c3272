package curator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errBoom = errors.New("database unreachable")

// memKnowledge is an in-memory KnowledgeStore with failure injection.
type memKnowledge struct {
	mu       sync.Mutex
	seeds    map[string]*Seed
	order    []string
	feedback []FeedbackRecord
	usage    []UsageStat

	failSeeds      error
	failFeedback   error
	failUsage      error
	failUpdate     map[string]error
	failDeactivate error

	batchCalls int
}

func newMemKnowledge(seeds ...Seed) *memKnowledge {
	m := &memKnowledge{seeds: make(map[string]*Seed), failUpdate: make(map[string]error)}
	for i := range seeds {
		s := seeds[i]
		m.seeds[s.ID] = &s
		m.order = append(m.order, s.ID)
	}
	return m
}

func (m *memKnowledge) ActiveSeeds(ctx context.Context) ([]Seed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSeeds != nil {
		return nil, m.failSeeds
	}
	var out []Seed
	for _, id := range m.order {
		if s := m.seeds[id]; s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memKnowledge) Feedback(ctx context.Context) ([]FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFeedback != nil {
		return nil, m.failFeedback
	}
	return append([]FeedbackRecord(nil), m.feedback...), nil
}

func (m *memKnowledge) UsageStats(ctx context.Context) ([]UsageStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUsage != nil {
		return nil, m.failUsage
	}
	return append([]UsageStat(nil), m.usage...), nil
}

func (m *memKnowledge) UpdateSeedResponse(ctx context.Context, id, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[id]; err != nil {
		return err
	}
	s, ok := m.seeds[id]
	if !ok {
		return ErrNotFound
	}
	s.Response = response
	return nil
}

func (m *memKnowledge) SetSeedActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[id]; err != nil {
		return err
	}
	s, ok := m.seeds[id]
	if !ok {
		return ErrNotFound
	}
	s.Active = active
	return nil
}

func (m *memKnowledge) DeactivateSeeds(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.failDeactivate != nil {
		return 0, m.failDeactivate
	}
	n := 0
	for _, id := range ids {
		if s, ok := m.seeds[id]; ok && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (m *memKnowledge) active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeds[id].Active
}

func (m *memKnowledge) response(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeds[id].Response
}

// memLogs is an in-memory LogStore with failure injection.
type memLogs struct {
	mu          sync.Mutex
	decisions   []DecisionLogEntry
	calls       []APICollaborationLogEntry
	reflections []ReflectionEvent

	failDecisions error
	failCalls     error
	failAppend    error

	lastLimit int
}

func (m *memLogs) RecentDecisions(ctx context.Context, limit int) ([]DecisionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.failDecisions != nil {
		return nil, m.failDecisions
	}
	if len(m.decisions) > limit {
		return append([]DecisionLogEntry(nil), m.decisions[:limit]...), nil
	}
	return append([]DecisionLogEntry(nil), m.decisions...), nil
}

func (m *memLogs) RecentAPICollaborations(ctx context.Context, limit int) ([]APICollaborationLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCalls != nil {
		return nil, m.failCalls
	}
	if len(m.calls) > limit {
		return append([]APICollaborationLogEntry(nil), m.calls[:limit]...), nil
	}
	return append([]APICollaborationLogEntry(nil), m.calls...), nil
}

func (m *memLogs) AppendReflection(ctx context.Context, ev ReflectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	m.reflections = append(m.reflections, ev)
	return nil
}

func (m *memLogs) triggers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.reflections {
		out = append(out, ev.TriggerType)
	}
	return out
}

// observedEngine returns an engine whose log output can be inspected.
func observedEngine(t *testing.T, k KnowledgeStore, l LogStore, opts ...Option) (*Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	opts = append([]Option{WithLogger(zap.New(core))}, opts...)
	return NewEngine(k, l, opts...), logs
}

func seed(id, response string, triggers ...string) Seed {
	return Seed{ID: id, Emotion: "calm", Response: response, Triggers: triggers, Weight: 1, Active: true}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func feedbackN(seedID string, rating Rating, n int, start time.Time) []FeedbackRecord {
	out := make([]FeedbackRecord, n)
	for i := range out {
		out[i] = FeedbackRecord{SeedID: seedID, Rating: rating, CreatedAt: start.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

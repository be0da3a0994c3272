package curator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// KnowledgeStore is the read/write contract the engine needs from the seed store.
type KnowledgeStore interface {
	ActiveSeeds(ctx context.Context) ([]Seed, error)
	Feedback(ctx context.Context) ([]FeedbackRecord, error)
	UsageStats(ctx context.Context) ([]UsageStat, error)
	UpdateSeedResponse(ctx context.Context, id, response string) error
	SetSeedActive(ctx context.Context, id string, active bool) error
	// DeactivateSeeds must apply all updates or none.
	DeactivateSeeds(ctx context.Context, ids []string) (int, error)
}

// LogStore is the contract the engine needs from the decision/audit log store.
type LogStore interface {
	RecentDecisions(ctx context.Context, limit int) ([]DecisionLogEntry, error)
	RecentAPICollaborations(ctx context.Context, limit int) ([]APICollaborationLogEntry, error)
	AppendReflection(ctx context.Context, ev ReflectionEvent) error
}

// SafetyClassifier classifies raw user input for prompt-injection and policy risk.
type SafetyClassifier interface {
	ClassifyPrompt(ctx context.Context, text string) (*RawSafetyResponse, error)
}

// BiasClassifier classifies a generated response for demographic or cultural bias.
type BiasClassifier interface {
	ClassifyBias(ctx context.Context, userInput, response string) (*RawBiasResponse, error)
}

// OverspecificPredicate reports whether a response is bound to a narrow context.
type OverspecificPredicate func(text string, triggers []string) bool

// Engine runs the knowledge lifecycle and governance operations.
// It holds no mutable state of its own and is safe for concurrent use.
type Engine struct {
	knowledge KnowledgeStore
	logs      LogStore
	safety    SafetyClassifier
	bias      BiasClassifier
	logger    *zap.Logger

	sampleSize     int
	pruneThreshold float64

	// closer is set when the engine opened its own store.
	closer func() error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSafetyClassifier sets the prompt safety classifier.
func WithSafetyClassifier(c SafetyClassifier) Option {
	return func(e *Engine) { e.safety = c }
}

// WithBiasClassifier sets the response bias classifier.
func WithBiasClassifier(c BiasClassifier) Option {
	return func(e *Engine) { e.bias = c }
}

// WithSampleSize sets how many recent log rows pattern mining reads per log.
func WithSampleSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sampleSize = n
		}
	}
}

// WithPruneThreshold sets the default threshold used by PruneDefault.
func WithPruneThreshold(threshold float64) Option {
	return func(e *Engine) { e.pruneThreshold = threshold }
}

// NewEngine creates an engine over the given stores.
func NewEngine(knowledge KnowledgeStore, logs LogStore, opts ...Option) *Engine {
	e := &Engine{
		knowledge:      knowledge,
		logs:           logs,
		logger:         zap.NewNop(),
		sampleSize:     DefaultSampleSize,
		pruneThreshold: DefaultPruneThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// New opens the configured store and returns an engine over it.
// Classifiers are not created here; pass them as options.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	base := []Option{
		WithSampleSize(cfg.SampleSize),
		WithPruneThreshold(cfg.Threshold()),
	}
	e := NewEngine(store, store, append(base, opts...)...)
	e.closer = store.Close
	return e, nil
}

// Store returns the underlying SQLite store when the engine was built with New
// or over a *Store, or nil otherwise.
func (e *Engine) Store() *Store {
	s, _ := e.knowledge.(*Store)
	return s
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// PruneThreshold returns the threshold PruneDefault uses.
func (e *Engine) PruneThreshold() float64 {
	return e.pruneThreshold
}

// Stats returns store statistics when backed by a *Store.
func (e *Engine) Stats(ctx context.Context) (*StoreStats, error) {
	s := e.Store()
	if s == nil {
		return nil, fmt.Errorf("engine: stats unavailable: %w", ErrStoreClosed)
	}
	return s.Stats(ctx)
}

// HealthCheck reports store reachability and which classifiers are configured.
func (e *Engine) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:          true,
		StoreOK:          true,
		SafetyConfigured: e.safety != nil,
		BiasConfigured:   e.bias != nil,
	}

	if _, err := e.knowledge.ActiveSeeds(ctx); err != nil {
		status.StoreOK = false
		status.Healthy = false
		status.Error = err.Error()
	}
	return status
}

// Close releases the store if the engine opened it.
func (e *Engine) Close() error {
	_ = e.logger.Sync()
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// reflect appends a reflection event. Failures are logged and never returned.
func (e *Engine) reflect(ctx context.Context, ev ReflectionEvent) {
	if e.logs == nil {
		return
	}
	if err := e.logs.AppendReflection(ctx, ev); err != nil {
		e.logger.Warn("append reflection failed",
			zap.String("trigger", ev.TriggerType),
			zap.Error(err))
	}
}

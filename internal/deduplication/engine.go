package deduplication

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
	"github.com/Saberlve/LLM-Kit-sub000/internal/priorities"
	"github.com/Saberlve/LLM-Kit-sub000/internal/progress"
	"github.com/Saberlve/LLM-Kit-sub000/internal/tokenize"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// Compile-time check that Engine implements Deduplicator
var _ Deduplicator = (*Engine)(nil)

// Tokenizer turns text into the token set that gets signed.
type Tokenizer interface {
	Tokenize(text string) tokenize.TokenSet
}

// Engine is the MinHash/LSH dedup orchestrator.
//
// An Engine holds no per-pass state: every Dedup call builds its own
// index and discards it on return. The priority map is the only value
// shared between passes; each pass reads one snapshot of it at start.
type Engine struct {
	cfg       Config
	tokenizer Tokenizer
	signer    *minhash.Signer
	logger    zerolog.Logger
	hook      events.Hook
	progress  progress.Func

	mu         sync.RWMutex
	priorities priorities.PriorityMap
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEventHook receives every pass event, including data tolerance
// decisions. The hook runs on the pass goroutine and must not block.
func WithEventHook(hook events.Hook) Option {
	return func(e *Engine) {
		e.hook = hook
	}
}

// WithProgress sets the progress callback. It is invoked at phase
// boundaries and must not block; a panic inside it is recovered.
func WithProgress(fn progress.Func) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithPriorityMap sets the initial source priority.
func WithPriorityMap(m priorities.PriorityMap) Option {
	return func(e *Engine) {
		e.priorities = m
	}
}

// WithTokenizer replaces the default gse tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(e *Engine) {
		e.tokenizer = t
	}
}

// WithSigner replaces the signer built from Config.NumPerm and Config.Seed.
// Its permutation count must equal Config.NumPerm; a pass fails with
// ErrConfiguration otherwise.
func WithSigner(s *minhash.Signer) Option {
	return func(e *Engine) {
		e.signer = s
	}
}

// NewEngine validates cfg and loads the tokenizer and permutations.
// Every construction failure wraps ErrConfiguration.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.tokenizer == nil {
		tok, err := tokenize.New()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		e.tokenizer = tok
	}

	if e.signer == nil {
		signer, err := minhash.NewSigner(cfg.NumPerm, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		e.signer = signer
	}

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetPriorityMap replaces the source priority for subsequent passes.
// A pass already running keeps the snapshot it started with.
func (e *Engine) SetPriorityMap(m priorities.PriorityMap) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.priorities = m
}

// PriorityMap returns the current source priority.
func (e *Engine) PriorityMap() priorities.PriorityMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.priorities
}

// Run normalizes raw records and runs a pass over them.
//
// A missing question or answer defaults to the empty string and a missing
// id is assigned as record_<index>; each decision is emitted as a data
// tolerance event. Repeated ids are reassigned as <id>#<n> by Dedup.
func (e *Engine) Run(ctx context.Context, raw []types.RawQARecord) (*Result, error) {
	passID := events.PassIDFromContext(ctx)
	if passID == "" {
		passID = events.NewPassID()
		ctx = events.WithPassID(ctx, passID)
	}

	supplied := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if hasID(r) {
			supplied[*r.ID] = struct{}{}
		}
	}

	records := make([]types.QARecord, len(raw))
	for i, r := range raw {
		rec := types.QARecord{}

		if !hasID(r) {
			rec.ID = freshID(fmt.Sprintf("record_%d", i), supplied)
			e.tolerate(passID, events.DataToleranceData{
				Kind:        events.ToleranceMissingID,
				RecordID:    rec.ID,
				RecordIndex: i,
				Detail:      "id assigned from record position",
			})
		} else {
			rec.ID = *r.ID
		}

		if r.Question == nil {
			e.tolerate(passID, events.DataToleranceData{
				Kind:        events.ToleranceMissingQuestion,
				RecordID:    rec.ID,
				RecordIndex: i,
				Detail:      "question defaulted to empty string",
			})
		} else {
			rec.Question = *r.Question
		}

		if r.Answer == nil {
			e.tolerate(passID, events.DataToleranceData{
				Kind:        events.ToleranceMissingAnswer,
				RecordID:    rec.ID,
				RecordIndex: i,
				Detail:      "answer defaulted to empty string",
			})
		} else {
			rec.Answer = *r.Answer
		}

		records[i] = rec
	}

	return e.Dedup(ctx, records)
}

// Dedup runs one pass. See Deduplicator.
func (e *Engine) Dedup(ctx context.Context, records []types.QARecord) (*Result, error) {
	passID := events.PassIDFromContext(ctx)
	if passID == "" {
		passID = events.NewPassID()
	}

	p := &pass{
		engine:     e,
		id:         passID,
		cfg:        e.cfg,
		priorities: e.PriorityMap(),
		logger:     e.logger.With().Str("pass_id", passID).Str("mode", string(e.cfg.Mode)).Logger(),
	}

	result, err := p.run(ctx, records)
	if err != nil {
		p.fail(err)
		return nil, err
	}
	return result, nil
}

func hasID(r types.RawQARecord) bool {
	return r.ID != nil && strings.TrimSpace(*r.ID) != ""
}

// tolerate records a non-fatal data decision.
func (e *Engine) tolerate(passID string, data events.DataToleranceData) {
	e.logger.Warn().
		Str("pass_id", passID).
		Str("kind", string(data.Kind)).
		Str("record_id", data.RecordID).
		Int("record_index", data.RecordIndex).
		Msg(data.Detail)

	event, err := events.NewDataToleranceEvent(passID,
		fmt.Sprintf("record %s: %s", data.RecordID, data.Detail), data)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to build data tolerance event")
		return
	}
	e.emit(event)
}

// emit delivers event to the hook, recovering from hook panics.
func (e *Engine) emit(event *events.Event) {
	if e.hook == nil || event == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Interface("panic", r).Str("event_type", string(event.Type)).Msg("event hook panicked")
		}
	}()
	e.hook(event)
}

// report delivers a progress percentage, recovering from callback panics.
func (e *Engine) report(percent int) {
	if e.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Interface("panic", r).Int("percent", percent).Msg("progress callback panicked")
		}
	}()
	e.progress(percent)
}

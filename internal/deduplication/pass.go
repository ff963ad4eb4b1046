package deduplication

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/Saberlve/LLM-Kit-sub000/internal/events"
	"github.com/Saberlve/LLM-Kit-sub000/internal/lsh"
	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
	"github.com/Saberlve/LLM-Kit-sub000/internal/priorities"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// Phase is a state of the pass state machine.
type Phase string

const (
	PhaseIndexing    Phase = "indexing"
	PhaseResolving   Phase = "resolving"
	PhaseSelecting   Phase = "selecting"
	PhasePartitioned Phase = "partitioned"
)

// Progress milestones, in percent.
const (
	progressLoaded   = 10
	progressIndexed  = 40
	progressResolved = 90
	progressSelected = 95
	progressDone     = 100
)

// PhaseAt returns the phase a reported progress percentage belongs to.
func PhaseAt(percent int) Phase {
	switch {
	case percent < progressIndexed:
		return PhaseIndexing
	case percent < progressResolved:
		return PhaseResolving
	case percent < progressDone:
		return PhaseSelecting
	default:
		return PhasePartitioned
	}
}

// pass holds the state of one dedup invocation. Nothing in it outlives
// the call.
type pass struct {
	engine     *Engine
	id         string
	cfg        Config
	priorities priorities.PriorityMap
	logger     zerolog.Logger
	phase      Phase
	start      time.Time
}

func (p *pass) enter(phase Phase) {
	p.phase = phase
	p.logger.Debug().Str("phase", string(phase)).Msg("entering phase")
}

func (p *pass) run(ctx context.Context, records []types.QARecord) (*Result, error) {
	p.start = time.Now()
	p.enter(PhaseIndexing)

	// labels are filled in on a copy; the caller's slice is not modified
	records = slices.Clone(records)

	inputIDs, err := p.prepare(records)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Int("records", len(records)).
		Float64("threshold", p.cfg.Threshold).
		Int("num_perm", p.cfg.NumPerm).
		Int("min_answer_length", p.cfg.MinAnswerLength).
		Int("priority_labels", p.priorities.Len()).
		Msg("dedup pass started")
	p.emitStarted(len(records))

	if !p.cfg.Mode.TracksDeletedGroups() {
		p.logger.Warn().Msg("by_answer mode does not track deleted groups; merged records are reported by id only")
		p.engine.emit(events.NewEvent(events.EventTypeModeAsymmetry, p.id, events.SeverityWarning,
			"by_answer mode does not track deleted groups", nil))
	}

	eligible, filtered := p.filter(records)
	p.engine.report(progressLoaded)

	// Indexing
	index, err := lsh.New(p.cfg.Threshold, p.cfg.NumPerm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if n := p.engine.signer.NumPerm(); n != index.NumPerm() {
		return nil, fmt.Errorf("%w: %w: signer uses %d, index expects %d",
			ErrConfiguration, minhash.ErrPermutationMismatch, n, index.NumPerm())
	}
	signField := p.cfg.Mode.SignField()
	ids := make([]string, len(eligible))
	sigs := make([]minhash.Signature, len(eligible))
	for i, rec := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig := p.engine.signer.Sign(p.engine.tokenizer.Tokenize(rec.Text(signField)))
		if err := index.Insert(rec.ID, sig); err != nil {
			return nil, invariantErrorf("index record %s: %v", rec.ID, err)
		}
		ids[i] = rec.ID
		sigs[i] = sig
	}
	stats := index.Stats()
	p.logger.Debug().
		Int("entries", stats.Entries).
		Int("bands", stats.Bands).
		Int("rows", stats.Rows).
		Int("buckets", stats.TotalBuckets).
		Int("max_bucket", stats.MaxBucketSize).
		Msg("index built")
	p.engine.report(progressIndexed)

	// Resolving
	p.enter(PhaseResolving)
	res := newResolver(index, ids, sigs)
	var clusters []cluster
	step := max(1, len(eligible)/10)
	for i := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i%step == 0 {
			p.engine.report(progressIndexed + (progressResolved-progressIndexed)*i/len(eligible))
		}
		if res.isSeen(i) {
			continue
		}
		c, err := res.resolve(i)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	p.engine.report(progressResolved)

	// Selecting
	p.enter(PhaseSelecting)
	result := &Result{
		PassID:        p.id,
		Mode:          p.cfg.Mode,
		Kept:          make([]types.QARecord, 0, len(clusters)),
		DeletedGroups: []DeletedGroup{},
		Filtered:      filtered,
	}
	tieBreak := p.cfg.Mode.TieBreakField()
	for _, c := range clusters {
		result.Stats.Candidates += c.candidates
		if c.singleton() {
			result.Kept = append(result.Kept, eligible[c.members[0]])
			result.Stats.Singletons++
			continue
		}

		members := make([]types.QARecord, len(c.members))
		for j, pos := range c.members {
			members[j] = eligible[pos]
		}
		chosen, err := SelectRepresentative(members, p.priorities, tieBreak)
		if err != nil {
			return nil, err
		}

		kept := members[chosen]
		dups := make([]types.QARecord, 0, len(members)-1)
		for j, m := range members {
			if j != chosen {
				dups = append(dups, m)
			}
		}

		result.Kept = append(result.Kept, kept)
		result.Stats.Clusters++
		if p.cfg.Mode.TracksDeletedGroups() {
			result.DeletedGroups = append(result.DeletedGroups, DeletedGroup{Kept: kept, Duplicates: dups})
		} else {
			for _, d := range dups {
				result.Merged = append(result.Merged, d.ID)
			}
		}
		p.clusterFormed(kept, dups, c.candidates)
	}
	p.engine.report(progressSelected)

	// Partitioned
	p.enter(PhasePartitioned)
	result.Stats.Total = len(records)
	result.Stats.Kept = len(result.Kept)
	result.Stats.Groups = len(result.DeletedGroups)
	for _, g := range result.DeletedGroups {
		result.Stats.Duplicates += len(g.Duplicates)
	}
	result.Stats.Merged = len(result.Merged)
	result.Stats.Filtered = len(result.Filtered)
	result.Stats.ProcessingTimeMs = time.Since(p.start).Milliseconds()

	if err := result.Validate(inputIDs); err != nil {
		return nil, err
	}

	p.logger.Info().
		Int("total", result.Stats.Total).
		Int("kept", result.Stats.Kept).
		Int("groups", result.Stats.Groups).
		Int("duplicates", result.Stats.Duplicates+result.Stats.Merged).
		Int("filtered", result.Stats.Filtered).
		Int64("elapsed_ms", result.Stats.ProcessingTimeMs).
		Msg("dedup pass completed")
	p.emitCompleted(result.Stats)
	p.engine.report(progressDone)

	return result, nil
}

// prepare validates records, reassigns repeated ids, and derives source
// labels from ids where none was supplied. A repeated id keeps the source
// label of the id it was given.
func (p *pass) prepare(records []types.QARecord) ([]string, error) {
	taken := make(map[string]struct{}, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, invariantErrorf("record %d: %v", i, err)
		}
		taken[records[i].ID] = struct{}{}
	}

	ids := make([]string, len(records))
	labelFrom := make([]string, len(records))
	seen := make(map[string]int, len(records))
	for i := range records {
		rec := &records[i]
		labelFrom[i] = rec.ID
		if prev, dup := seen[rec.ID]; dup {
			original := rec.ID
			rec.ID = freshID(original, taken)
			p.engine.tolerate(p.id, events.DataToleranceData{
				Kind:        events.ToleranceDuplicateID,
				RecordID:    rec.ID,
				RecordIndex: i,
				Detail:      fmt.Sprintf("id %s already used by record %d; reassigned", original, prev),
			})
		}
		seen[rec.ID] = i
		ids[i] = rec.ID
	}

	for i := range records {
		if records[i].SourceLabel != "" {
			continue
		}
		label, ok := priorities.ParseSourceLabel(labelFrom[i])
		if !ok {
			p.engine.tolerate(p.id, events.DataToleranceData{
				Kind:        events.ToleranceUnparseableSource,
				RecordID:    records[i].ID,
				RecordIndex: i,
				Detail:      fmt.Sprintf("id has no <file>_<index> form; source label %s ranks lowest", label),
			})
		}
		records[i].SourceLabel = label
	}
	return ids, nil
}

// freshID returns base, or base#k for the smallest k > 0 not in taken,
// and marks the result taken.
func freshID(base string, taken map[string]struct{}) string {
	id := base
	for k := 1; ; k++ {
		if _, used := taken[id]; !used {
			break
		}
		id = fmt.Sprintf("%s#%d", base, k)
	}
	taken[id] = struct{}{}
	return id
}

// filter applies the by_answer minimum-length filter. Filtered records are
// excluded from every output partition except Filtered.
func (p *pass) filter(records []types.QARecord) ([]types.QARecord, []string) {
	if p.cfg.Mode != types.ModeByAnswer {
		return records, nil
	}

	eligible := make([]types.QARecord, 0, len(records))
	var filtered []string
	for _, rec := range records {
		if rec.TextLength(types.FieldAnswer) < p.cfg.MinAnswerLength {
			filtered = append(filtered, rec.ID)
			continue
		}
		eligible = append(eligible, rec)
	}
	if len(filtered) > 0 {
		p.logger.Info().
			Int("filtered", len(filtered)).
			Int("min_answer_length", p.cfg.MinAnswerLength).
			Msg("dropped short answers")
	}
	return eligible, filtered
}

func (p *pass) clusterFormed(kept types.QARecord, dups []types.QARecord, candidates int) {
	dupIDs := make([]string, len(dups))
	for i, d := range dups {
		dupIDs[i] = d.ID
	}

	if e := p.logger.Debug(); e.Enabled() {
		logged := dupIDs
		if limit := p.cfg.MaxClusterLogSize; limit > 0 && len(logged) > limit {
			logged = logged[:limit]
		}
		e.Str("kept_id", kept.ID).
			Str("source", kept.SourceLabel).
			Strs("duplicate_ids", logged).
			Int("size", len(dups)+1).
			Msg("cluster resolved")
	}

	event, err := events.NewClusterFormedEvent(p.id,
		fmt.Sprintf("kept %s over %d near-duplicates", kept.ID, len(dups)),
		events.ClusterFormedData{KeptID: kept.ID, DuplicateIDs: dupIDs, Candidates: candidates})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to build cluster event")
		return
	}
	p.engine.emit(event)
}

func (p *pass) emitStarted(total int) {
	event, err := events.NewPassStartedEvent(p.id, "dedup pass started", events.PassStartedData{
		Mode:            string(p.cfg.Mode),
		Threshold:       p.cfg.Threshold,
		NumPerm:         p.cfg.NumPerm,
		MinAnswerLength: p.cfg.MinAnswerLength,
		TotalRecords:    total,
		PriorityOrder:   p.priorities.Order(),
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to build pass started event")
		return
	}
	p.engine.emit(event)
}

func (p *pass) emitCompleted(s Stats) {
	event, err := events.NewPassCompletedEvent(p.id, "dedup pass completed", events.PassCompletedData{
		Total:            s.Total,
		Kept:             s.Kept,
		Groups:           s.Groups,
		Duplicates:       s.Duplicates + s.Merged,
		Filtered:         s.Filtered,
		Singletons:       s.Singletons,
		ProcessingTimeMs: s.ProcessingTimeMs,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to build pass completed event")
		return
	}
	p.engine.emit(event)
}

func (p *pass) fail(err error) {
	level := zerolog.ErrorLevel
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		level = zerolog.WarnLevel
	}
	p.logger.WithLevel(level).Err(err).Str("phase", string(p.phase)).Msg("dedup pass aborted")

	event, buildErr := events.NewPassFailedEvent(p.id, "dedup pass aborted", events.PassFailedData{
		Phase: string(p.phase),
		Error: err.Error(),
	})
	if buildErr != nil {
		return
	}
	p.engine.emit(event)
}

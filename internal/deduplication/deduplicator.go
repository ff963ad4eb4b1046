package deduplication

import (
	"context"

	"github.com/Saberlve/LLM-Kit-sub000/internal/priorities"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// Deduplicator defines the interface for near-duplicate QA removal.
//
// Example usage:
//
//	engine, err := deduplication.NewEngine(deduplication.DefaultConfig(),
//	    deduplication.WithLogger(logger),
//	    deduplication.WithPriorityMap(priorities.FromOrder([]string{"fileA.json", "fileB.json"})),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := engine.Run(ctx, rawRecords)
//	if err != nil {
//	    return err
//	}
//	logger.Info().Int("kept", len(result.Kept)).Int("groups", len(result.DeletedGroups)).Msg("dedup done")
type Deduplicator interface {
	// Dedup runs one pass over records in input order and returns the
	// kept/deleted partition. A repeated id is reassigned as <id>#<n>
	// and reported as a data tolerance event.
	//
	// Returns:
	// - Result with kept records, deleted groups (by_question mode) and statistics
	// - Error wrapping ErrConfiguration if the pass could not start, including
	//   a signer whose permutation count differs from the index's
	// - Error wrapping ErrInvariantViolation if the partition is inconsistent
	// - ctx.Err() if the context is cancelled between records
	Dedup(ctx context.Context, records []types.QARecord) (*Result, error)

	// Run is Dedup for records decoded from upstream JSON. Missing fields
	// are defaulted and reported as data tolerance events.
	Run(ctx context.Context, records []types.RawQARecord) (*Result, error)

	// SetPriorityMap replaces the source priority used by later passes.
	SetPriorityMap(m priorities.PriorityMap)
}

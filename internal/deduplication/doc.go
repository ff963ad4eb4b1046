// Package deduplication removes near-duplicate QA pairs with MinHash
// signatures and a locality-sensitive hashing index.
//
// # Overview
//
// A pass takes a batch of QA records and partitions it: every record ends
// up either kept, listed as a duplicate inside a deleted group, merged
// away (by_answer mode), or filtered for a short answer. Records are
// tokenized (gse segmentation for CJK, stop words removed), signed with
// NumPerm MinHash permutations and inserted into an LSH index whose band
// and row counts are derived from Threshold.
//
// # Pass phases
//
//  1. Indexing: sign every eligible record and insert it.
//  2. Resolving: walk records in input order; each unclaimed record queries
//     the index and claims every unclaimed candidate (greedy, first-come).
//  3. Selecting: pick one representative per cluster by source priority,
//     then by the longer tie-break text, then by input order.
//  4. Partitioned: compute stats and check the partition invariants.
//
// The result is a function of the records, their order, the configuration
// and the priority map. Two runs with the same inputs give the same output.
//
// # Modes
//
// by_question signs the question and breaks ties on the answer. Deleted
// groups are tracked with the kept record first.
//
// by_answer signs the answer and breaks ties on the question. Records whose
// answer is shorter than MinAnswerLength runes are filtered before
// indexing. Merged records are reported by id only; no deleted groups are
// produced and each pass logs a warning about it.
//
// # Errors
//
// Configuration problems wrap ErrConfiguration. Most are reported by
// NewEngine; a signer injected with WithSigner whose permutation count
// differs from the index's fails the pass before indexing. Broken
// partitions wrap ErrInvariantViolation. A cancelled context aborts the
// pass with the context's error. Missing fields and repeated ids are not
// errors: they are defaulted or reassigned, each with a data_tolerance
// event.
//
// # Usage
//
//	cfg := deduplication.DefaultConfig()
//	cfg.Threshold = 0.85
//	engine, err := deduplication.NewEngine(cfg,
//	    deduplication.WithLogger(logger),
//	    deduplication.WithPriorityMap(priorities.FromOrder(order)),
//	    deduplication.WithProgress(relay.Report),
//	)
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Run(ctx, raw)
package deduplication

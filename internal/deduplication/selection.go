package deduplication

import (
	"github.com/Saberlve/LLM-Kit-sub000/internal/priorities"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// selectionKey orders cluster members: lower rank first, then longer
// tie-break text.
type selectionKey struct {
	rank   int
	length int
}

func (k selectionKey) less(other selectionKey) bool {
	if k.rank != other.rank {
		return k.rank < other.rank
	}
	return k.length > other.length
}

// SelectRepresentative picks the record to keep from a cluster.
//
// The primary key is the priority rank of the record's source label
// (unmapped labels rank last). Ties go to the record with the longer
// tieBreak text, which is the field the pass did not sign on. A full tie
// keeps the earliest member. An empty cluster is an invariant violation.
func SelectRepresentative(cluster []types.QARecord, pm priorities.PriorityMap, tieBreak types.Field) (int, error) {
	if len(cluster) == 0 {
		return -1, invariantErrorf("selection called with an empty cluster")
	}

	best := 0
	bestKey := keyFor(cluster[0], pm, tieBreak)
	for i := 1; i < len(cluster); i++ {
		k := keyFor(cluster[i], pm, tieBreak)
		if k.less(bestKey) {
			best, bestKey = i, k
		}
	}
	return best, nil
}

func keyFor(r types.QARecord, pm priorities.PriorityMap, tieBreak types.Field) selectionKey {
	return selectionKey{
		rank:   pm.Rank(r.SourceLabel),
		length: r.TextLength(tieBreak),
	}
}

package deduplication

import (
	"github.com/Saberlve/LLM-Kit-sub000/internal/lsh"
	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
)

// cluster is a set of record positions resolved together. The record that
// triggered resolution is always first.
type cluster struct {
	members []int
	// candidates is the raw query size before seen ids were excluded
	candidates int
}

func (c cluster) singleton() bool {
	return len(c.members) == 1
}

// resolver performs greedy single-pass clustering over an index that holds
// every eligible record. A record claimed by an earlier cluster is never
// reconsidered, so clusters do not overlap and traversal order decides
// which record absorbs an ambiguous neighbour.
type resolver struct {
	index     *lsh.Index
	ids       []string
	sigs      []minhash.Signature
	positions map[string]int
	seen      map[string]struct{}
}

func newResolver(index *lsh.Index, ids []string, sigs []minhash.Signature) *resolver {
	positions := make(map[string]int, len(ids))
	for i, id := range ids {
		positions[id] = i
	}
	return &resolver{
		index:     index,
		ids:       ids,
		sigs:      sigs,
		positions: positions,
		seen:      make(map[string]struct{}, len(ids)),
	}
}

func (r *resolver) isSeen(pos int) bool {
	_, ok := r.seen[r.ids[pos]]
	return ok
}

// resolve builds the cluster for the record at pos and marks every member
// seen. The caller must skip records that are already seen.
func (r *resolver) resolve(pos int) (cluster, error) {
	self := r.ids[pos]
	raw, err := r.index.Query(r.sigs[pos])
	if err != nil {
		return cluster{}, err
	}

	c := cluster{members: []int{pos}}
	r.seen[self] = struct{}{}
	for _, id := range raw {
		if id == self {
			continue
		}
		c.candidates++
		if _, claimed := r.seen[id]; claimed {
			continue
		}
		other, ok := r.positions[id]
		if !ok {
			return cluster{}, invariantErrorf("index returned unknown id %s", id)
		}
		r.seen[id] = struct{}{}
		c.members = append(c.members, other)
	}
	return c, nil
}

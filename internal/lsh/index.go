// Package lsh implements a banded locality-sensitive hashing index over
// MinHash signatures.
//
// Each signature is cut into bands of consecutive rows. Two signatures are
// candidates when they hash to the same bucket in at least one band. The
// band/row split is derived from the similarity threshold so that pairs at
// or above the threshold collide with high probability.
package lsh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
)

var (
	// ErrInvalidThreshold is returned for a threshold outside (0, 1].
	ErrInvalidThreshold = errors.New("threshold must be in (0, 1]")

	// ErrInvalidPermutations is returned when numPerm is too small to band.
	ErrInvalidPermutations = errors.New("permutation count must be at least 2")

	// ErrSignatureLength is returned when a signature does not match the
	// permutation count the index was built for.
	ErrSignatureLength = errors.New("signature length does not match index")
)

type entry struct {
	sig minhash.Signature
	seq uint64
}

// Index is a banded LSH index keyed by record id.
//
// The index is pass-scoped: it is built once, queried, and discarded.
// It is safe for concurrent use.
type Index struct {
	numPerm int
	params  Params

	mu      sync.RWMutex
	buckets []map[uint64][]string // per band: band hash -> ids
	entries map[string]entry
	nextSeq uint64
}

// New creates an index tuned for threshold over signatures of numPerm slots.
func New(threshold float64, numPerm int) (*Index, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	if numPerm < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPermutations, numPerm)
	}

	params := OptimalParams(threshold, numPerm)
	buckets := make([]map[uint64][]string, params.Bands)
	for i := range buckets {
		buckets[i] = make(map[uint64][]string)
	}

	return &Index{
		numPerm: numPerm,
		params:  params,
		buckets: buckets,
		entries: make(map[string]entry),
	}, nil
}

// Params returns the band/row split in use.
func (x *Index) Params() Params {
	return x.params
}

// NumPerm returns the signature length the index accepts.
func (x *Index) NumPerm() int {
	return x.numPerm
}

// Insert adds sig under id. Re-inserting an existing id replaces its
// signature and keeps its original insertion position.
func (x *Index) Insert(id string, sig minhash.Signature) error {
	if err := x.check(sig); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	seq := x.nextSeq
	if old, exists := x.entries[id]; exists {
		x.removeFromBuckets(id, old.sig)
		seq = old.seq
	} else {
		x.nextSeq++
	}

	x.entries[id] = entry{sig: sig, seq: seq}
	for band := range x.buckets {
		h := x.hashBand(sig, band)
		x.buckets[band][h] = append(x.buckets[band][h], id)
	}
	return nil
}

// removeFromBuckets drops id from every band bucket of sig.
// Caller must hold the write lock.
func (x *Index) removeFromBuckets(id string, sig minhash.Signature) {
	for band := range x.buckets {
		h := x.hashBand(sig, band)
		bucket := x.buckets[band][h]

		filtered := bucket[:0]
		for _, other := range bucket {
			if other != id {
				filtered = append(filtered, other)
			}
		}

		if len(filtered) > 0 {
			x.buckets[band][h] = filtered
		} else {
			delete(x.buckets[band], h)
		}
	}
}

// Query returns the ids sharing at least one band with sig, ordered by
// insertion. The result is approximate: it may contain pairs below the
// threshold and may miss pairs just above it.
func (x *Index) Query(sig minhash.Signature) ([]string, error) {
	if err := x.check(sig); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[string]struct{})
	for band := range x.buckets {
		for _, id := range x.buckets[band][x.hashBand(sig, band)] {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return x.entries[ids[i]].seq < x.entries[ids[j]].seq
	})
	return ids, nil
}

func (x *Index) check(sig minhash.Signature) error {
	if sig.Len() != x.numPerm {
		return fmt.Errorf("%w: got %d slots, index expects %d", ErrSignatureLength, sig.Len(), x.numPerm)
	}
	return nil
}

// hashBand hashes the rows of one band.
func (x *Index) hashBand(sig minhash.Signature, band int) uint64 {
	start := band * x.params.Rows
	end := start + x.params.Rows

	h := fnv.New64a()
	var buf [4]byte
	for _, v := range sig.Values[start:end] {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Stats reports the shape of the index.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	total, maxSize := 0, 0
	for _, band := range x.buckets {
		total += len(band)
		for _, bucket := range band {
			if len(bucket) > maxSize {
				maxSize = len(bucket)
			}
		}
	}

	return Stats{
		Entries:       len(x.entries),
		Bands:         x.params.Bands,
		Rows:          x.params.Rows,
		TotalBuckets:  total,
		MaxBucketSize: maxSize,
	}
}

// Stats contains statistics about the index.
type Stats struct {
	// Entries is the number of indexed signatures.
	Entries int `json:"entries"`

	// Bands is the number of bands.
	Bands int `json:"bands"`

	// Rows is the number of rows per band.
	Rows int `json:"rows"`

	// TotalBuckets is the total number of non-empty buckets.
	TotalBuckets int `json:"total_buckets"`

	// MaxBucketSize is the size of the largest bucket.
	MaxBucketSize int `json:"max_bucket_size"`
}

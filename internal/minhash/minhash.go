// Package minhash builds fixed-length MinHash signatures that estimate the
// Jaccard similarity of token sets.
package minhash

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/bits"
	"math/rand"
)

const (
	// DefaultNumPerm is the permutation count used when none is configured.
	DefaultNumPerm = 128

	// DefaultSeed fixes the permutation parameters so signatures are
	// reproducible across processes.
	DefaultSeed int64 = 1

	// mersennePrime is 2^61 - 1, the modulus for universal hashing.
	mersennePrime uint64 = (1 << 61) - 1

	maxHash uint64 = math.MaxUint32
)

var (
	// ErrPermutationMismatch is returned when a signer and the index it
	// feeds disagree on the permutation count.
	ErrPermutationMismatch = errors.New("permutation count mismatch")

	// ErrInvalidPermutations is returned for a non-positive permutation count.
	ErrInvalidPermutations = errors.New("permutation count must be positive")
)

// Signature is a MinHash signature: one minimum hash value per permutation.
type Signature struct {
	Values []uint32 `json:"values"`
}

// Len returns the number of permutations the signature was built with.
func (s Signature) Len() int {
	return len(s.Values)
}

// permutation is one universal hash function h(x) = ((a*x + b) mod p) & 0xFFFFFFFF
type permutation struct {
	a uint64
	b uint64
}

func (p permutation) apply(x uint64) uint64 {
	hi, lo := bits.Mul64(p.a, x)
	v := bits.Rem64(hi, lo, mersennePrime)
	v += p.b
	if v >= mersennePrime {
		v -= mersennePrime
	}
	return v & maxHash
}

// Signer computes signatures with a fixed set of permutations.
// A Signer is immutable after construction and safe for concurrent use.
type Signer struct {
	perms []permutation
}

// NewSigner creates a Signer with numPerm permutations drawn from seed.
func NewSigner(numPerm int, seed int64) (*Signer, error) {
	if numPerm <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPermutations, numPerm)
	}

	rng := rand.New(rand.NewSource(seed))
	perms := make([]permutation, numPerm)
	for i := range perms {
		// a must be non-zero and below the prime
		perms[i] = permutation{
			a: uint64(rng.Int63n(int64(mersennePrime-1))) + 1,
			b: uint64(rng.Int63n(int64(mersennePrime))),
		}
	}

	return &Signer{perms: perms}, nil
}

// NumPerm returns the permutation count.
func (s *Signer) NumPerm() int {
	return len(s.perms)
}

// Sign returns the signature of tokens. An empty set yields the maximum
// hash value in every slot.
func (s *Signer) Sign(tokens map[string]struct{}) Signature {
	values := make([]uint32, len(s.perms))
	for i := range values {
		values[i] = uint32(maxHash)
	}

	for token := range tokens {
		base := baseHash(token)
		for i, p := range s.perms {
			if h := uint32(p.apply(base)); h < values[i] {
				values[i] = h
			}
		}
	}

	return Signature{Values: values}
}

func baseHash(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64()
}

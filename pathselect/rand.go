package pathselect

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Rand is the entropy source of a Selector. *rand.Rand from math/rand/v2
// satisfies it, which lets tests pin outcomes with a seeded source.
type Rand interface {
	IntN(n int) int
}

// CryptoRand returns a Rand backed by crypto/rand.
func CryptoRand() Rand {
	return rand.New(cryptoSource{})
}

type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Ranker orders or filters version compatible candidates. The selector draws
// uniformly from its result, falling back to the unranked set when the
// ranker returns nothing.
//
// A ranker may use Candidate.Perf (exit side: info failures, request
// failures, ongoing requests, latencies) and Candidate.EntryPerf (segment and
// message retrieval statistics, ping).
type Ranker func([]Candidate) []Candidate

// Unranked is the active strategy: every compatible candidate is equally
// likely.
func Unranked(cands []Candidate) []Candidate {
	return cands
}

// Package dedup suppresses links the crawl has already seen.
package dedup

import (
	"github.com/bits-and-blooms/bloom/v3"

	"flora-crawler/pkg/parse"
)

// Filter is a probabilistic set of observed link identities.
// False positives are possible at roughly the configured rate; false negatives are not.
// A Filter is owned by a single crawl and is not safe for concurrent use.
type Filter struct {
	bf    *bloom.BloomFilter
	added uint
}

// New sizes a filter for capacity distinct identities at the given false-positive rate.
func New(capacity uint, falsePositiveRate float64) *Filter {
	if capacity == 0 {
		capacity = 1
	}
	return &Filter{bf: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

// Observe reports whether identity was seen before and marks it as seen.
func (f *Filter) Observe(identity string) bool {
	seen := f.bf.TestOrAddString(parse.IdentityKey(identity))
	if !seen {
		f.added++
	}
	return seen
}

// Seen reports membership without recording identity.
func (f *Filter) Seen(identity string) bool {
	return f.bf.TestString(parse.IdentityKey(identity))
}

// Count returns how many identities were recorded as new.
func (f *Filter) Count() uint {
	return f.added
}

// EstimatedFalsePositiveRate returns the expected false-positive rate at the current fill.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	return bloom.EstimateFalsePositiveRate(f.bf.Cap(), f.bf.K(), f.added)
}

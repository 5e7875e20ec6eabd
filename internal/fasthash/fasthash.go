// Package fasthash provides a non-cryptographic hashed string set.
//
// It exists for the same reason the original implementation reached for
// an FNV-backed hasher: speed over DoS-resistance for small, trusted,
// process-internal keys (backing paths). Go's builtin
// map already uses a fast non-cryptographic hash internally, but it does
// not expose a way to seed or swap it, so the set implemented here
// buckets explicitly on top of xxhash to keep that property visible and
// tunable (initial capacity, bucket count) the way the original's
// with_capacity constructor was.
package fasthash

import (
	"github.com/cespare/xxhash/v2"
)

const defaultBucketCount = 16

// StringSet is a hash set of strings bucketed by xxhash.Sum64String.
// It is used by the inode cache to hold the set of backing paths that
// resolve to one inode (hard links).
type StringSet struct {
	buckets [][]string
	count   int
}

// NewStringSet returns a set pre-sized for roughly `capacity` elements.
func NewStringSet(capacity int) *StringSet {
	n := defaultBucketCount
	for n < capacity/4 {
		n *= 2
	}
	return &StringSet{buckets: make([][]string, n)}
}

func (s *StringSet) bucketIndex(v string) int {
	return int(xxhash.Sum64String(v) % uint64(len(s.buckets)))
}

// Add inserts v, returning false if it was already present.
func (s *StringSet) Add(v string) bool {
	i := s.bucketIndex(v)
	for _, existing := range s.buckets[i] {
		if existing == v {
			return false
		}
	}
	s.buckets[i] = append(s.buckets[i], v)
	s.count++
	return true
}

// Remove deletes v, returning false if it was not present.
func (s *StringSet) Remove(v string) bool {
	i := s.bucketIndex(v)
	bucket := s.buckets[i]
	for j, existing := range bucket {
		if existing == v {
			s.buckets[i] = append(bucket[:j], bucket[j+1:]...)
			s.count--
			return true
		}
	}
	return false
}

// Contains reports whether v is in the set.
func (s *StringSet) Contains(v string) bool {
	i := s.bucketIndex(v)
	for _, existing := range s.buckets[i] {
		if existing == v {
			return true
		}
	}
	return false
}

// Len returns the number of elements currently in the set.
func (s *StringSet) Len() int {
	return s.count
}

// Any returns an arbitrary element of the set and true, or "" and false
// if the set is empty.
func (s *StringSet) Any() (string, bool) {
	for _, bucket := range s.buckets {
		if len(bucket) > 0 {
			return bucket[0], true
		}
	}
	return "", false
}

// Each calls f for every element. f must not mutate the set.
func (s *StringSet) Each(f func(string)) {
	for _, bucket := range s.buckets {
		for _, v := range bucket {
			f(v)
		}
	}
}

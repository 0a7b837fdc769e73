// Package filter implements the shared cuckoo-filter substrate used by the
// broken-sessions and executive-report payload filters: bucket layout,
// fingerprint derivation, alternate-bucket computation, the cuckoo
// eviction loop, capacity sizing, the mutable query/insert/delete path and
// the on-disk serialization format. Concrete payload policies live in
// sibling packages (brokensessions, executivereport) and plug into this
// substrate through a PayloadCodec and a MergeFunc.
package filter

// BucketSize is the fixed arity of every bucket: the number of
// (fingerprint, payload) slots scanned on every probe.
const BucketSize = 4

// FingerprintBits is the width of a non-zero fingerprint; fingerprint
// value 0 is reserved as the "empty slot" sentinel.
const FingerprintBits = 16

// HashSeed seeds both the primary key hash and the alternate-bucket
// rehash. It is part of the on-disk format: changing it changes every
// derived bucket index and invalidates previously persisted filters.
const HashSeed = 1

// MaxKicks bounds the cuckoo eviction loop. It is not a time bound; it
// exists solely to guarantee Insert terminates.
const MaxKicks = 512

package filter

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// PayloadCodec describes how a policy's payload type is packed onto the
// wire. Size must equal the exact serialized byte count for one payload;
// Go struct padding is never relied on, so the persisted blob's size is
// always num_buckets * (BucketSize*2 + BucketSize*Size) regardless of how
// the payload is represented in memory.
type PayloadCodec[P any] struct {
	Size   int
	Encode func(dst []byte, p P)
	Decode func(src []byte) P
}

// MergeFunc implements a policy's insert_lookup semantics for a fingerprint
// match found in a bucket. handled=false means "no match, try elsewhere";
// handled=true means the incoming entry was consumed by this match (the
// only further thing an insert can do is return code to the caller).
type MergeFunc[P any] func(existing *P, incoming P) (code int, handled bool)

// Outcome reports how Core.Insert resolved.
type Outcome struct {
	Inserted bool // a fresh fingerprint was added; Count() increased
	Handled  bool // an existing fingerprint absorbed the insert; see Code
	Code     int  // policy-specific result code, meaningful when Handled
	Failed   bool // the eviction loop exhausted MaxKicks; nothing changed cnt
}

type bucketSlots[P any] struct {
	entries [BucketSize]uint16
	data    [BucketSize]P
}

// Core is the generic cuckoo-filter substrate shared by every payload
// policy. It owns bucket storage, sizing, hashing, the cuckoo eviction
// loop and serialization; policies supply the payload shape (PayloadCodec),
// the match-merge rule (MergeFunc) and an optional onAdd hook invoked the
// moment a payload is placed into a previously-empty slot.
type Core[P any] struct {
	numBuckets uint64
	nlz        uint32
	cnt        uint64
	items      uint64
	byteLen    uint64
	buckets    []bucketSlots[P]
	codec      PayloadCodec[P]
	merge      MergeFunc[P]
	onAdd      func(p *P)
	rng        RNG
}

// NewCore builds a filter substrate sized for at least requestedItems
// entries. requestedItems must exceed 4; actual capacity is rounded up to
// num_buckets * BucketSize where num_buckets is the next power of two.
func NewCore[P any](requestedItems uint64, codec PayloadCodec[P], merge MergeFunc[P], onAdd func(p *P), rng RNG) (*Core[P], error) {
	if requestedItems <= 4 {
		return nil, &Error{Op: "new_core", Err: ErrItemsTooSmall}
	}
	if codec.Size <= 0 || codec.Encode == nil || codec.Decode == nil {
		return nil, &Error{Op: "new_core", Err: ErrPayloadCodec}
	}
	if rng == nil {
		rng = DefaultRNG()
	}

	numBuckets := nextPowerOfTwo((requestedItems + BucketSize - 1) / BucketSize)
	bucketBytes := uint64(BucketSize*2 + BucketSize*codec.Size)

	return &Core[P]{
		numBuckets: numBuckets,
		nlz:        uint32(bits.LeadingZeros32(uint32(numBuckets))) + 1,
		items:      numBuckets * BucketSize,
		byteLen:    numBuckets * bucketBytes,
		buckets:    make([]bucketSlots[P], numBuckets),
		codec:      codec,
		merge:      merge,
		onAdd:      onAdd,
		rng:        rng,
	}, nil
}

func nextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << uint(64-bits.LeadingZeros64(n-1))
}

// Items returns the logical capacity: num_buckets * BucketSize.
func (c *Core[P]) Items() uint64 { return c.items }

// Bytes returns the exact on-disk size of the bucket array.
func (c *Core[P]) Bytes() uint64 { return c.byteLen }

// NumBuckets returns the bucket count (always a power of two).
func (c *Core[P]) NumBuckets() uint64 { return c.numBuckets }

// Count returns the number of occupied slots.
func (c *Core[P]) Count() uint64 { return c.cnt }

func (c *Core[P]) primaryIndex(key []byte) (uint64, uint16) {
	h := hashKey(key)
	fp := fingerprint(h)
	return uint64(h) % c.numBuckets, fp
}

func (c *Core[P]) altIndex(i uint64, fp uint16) uint64 {
	shifted := altHash(fp) >> c.nlz
	return i ^ uint64(shifted)
}

func (c *Core[P]) bucketQuery(idx uint64, fp uint16) bool {
	b := &c.buckets[idx]
	for i := 0; i < BucketSize; i++ {
		if b.entries[i] == fp {
			return true
		}
	}
	return false
}

func (c *Core[P]) bucketDelete(idx uint64, fp uint16) bool {
	b := &c.buckets[idx]
	for i := 0; i < BucketSize; i++ {
		if b.entries[i] == fp {
			b.entries[i] = 0
			var zero P
			b.data[i] = zero
			return true
		}
	}
	return false
}

func (c *Core[P]) bucketAdd(idx uint64, fp uint16, payload P) bool {
	b := &c.buckets[idx]
	for i := 0; i < BucketSize; i++ {
		if b.entries[i] == 0 {
			if c.onAdd != nil {
				c.onAdd(&payload)
			}
			b.entries[i] = fp
			b.data[i] = payload
			return true
		}
	}
	return false
}

func (c *Core[P]) bucketInsertLookup(idx uint64, fp uint16, payload P) (int, bool) {
	b := &c.buckets[idx]
	for i := 0; i < BucketSize; i++ {
		if b.entries[i] == fp {
			return c.merge(&b.data[i], payload)
		}
	}
	return 0, false
}

// Insert runs the full add protocol from the shared substrate: a match in
// either candidate bucket is merged in place via MergeFunc; otherwise the
// payload is placed in an empty slot, falling back to cuckoo eviction.
//
// A known edge case inherited from the reference implementation: if a
// mid-eviction displaced entry turns out to match an existing fingerprint
// in its alternate bucket, the displaced entry's payload is merged into
// that match and Insert returns Handled with the merge's code. The entry
// that started the eviction chain keeps the slot it was swapped into, but
// Count() is not incremented for it. This mirrors the reference's
// bucket_insert loop exactly and is not treated as a bug.
func (c *Core[P]) Insert(key []byte, payload P) Outcome {
	i1, fp := c.primaryIndex(key)
	i2 := c.altIndex(i1, fp)

	if code, handled := c.bucketInsertLookup(i1, fp, payload); handled {
		return Outcome{Handled: true, Code: code}
	}
	if code, handled := c.bucketInsertLookup(i2, fp, payload); handled {
		return Outcome{Handled: true, Code: code}
	}
	if c.bucketAdd(i1, fp, payload) {
		c.cnt++
		return Outcome{Inserted: true}
	}
	if c.bucketAdd(i2, fp, payload) {
		c.cnt++
		return Outcome{Inserted: true}
	}

	ri := i1
	if c.rng.Intn(2) == 1 {
		ri = i2
	}
	for i := 0; i < MaxKicks; i++ {
		slot := c.rng.Intn(BucketSize)
		b := &c.buckets[ri]
		victimFP := b.entries[slot]
		victimPayload := b.data[slot]
		b.entries[slot] = fp
		b.data[slot] = payload

		fp = victimFP
		payload = victimPayload
		ri = c.altIndex(ri, fp)

		if code, handled := c.bucketInsertLookup(ri, fp, payload); handled {
			return Outcome{Handled: true, Code: code}
		}
		if c.bucketAdd(ri, fp, payload) {
			c.cnt++
			return Outcome{Inserted: true}
		}
	}
	return Outcome{Failed: true}
}

// Query reports whether key's fingerprint is present in either candidate
// bucket. It never inspects or mutates payloads.
func (c *Core[P]) Query(key []byte) bool {
	i1, fp := c.primaryIndex(key)
	if c.bucketQuery(i1, fp) {
		return true
	}
	return c.bucketQuery(c.altIndex(i1, fp), fp)
}

// Delete clears the first matching slot across both candidate buckets.
func (c *Core[P]) Delete(key []byte) bool {
	i1, fp := c.primaryIndex(key)
	if c.bucketDelete(i1, fp) {
		c.cnt--
		return true
	}
	i2 := c.altIndex(i1, fp)
	if c.bucketDelete(i2, fp) {
		c.cnt--
		return true
	}
	return false
}

// Clear zeroes every bucket and resets the occupancy count.
func (c *Core[P]) Clear() {
	for i := range c.buckets {
		c.buckets[i] = bucketSlots[P]{}
	}
	c.cnt = 0
}

// ForEachOccupied visits every non-empty slot in bucket order, handing the
// caller a pointer into live storage so a policy-level aggregation (such
// as executivereport's Report) can mutate payloads in place.
func (c *Core[P]) ForEachOccupied(fn func(fp uint16, payload *P)) {
	for i := range c.buckets {
		b := &c.buckets[i]
		for j := 0; j < BucketSize; j++ {
			if b.entries[j] != 0 {
				fn(b.entries[j], &b.data[j])
			}
		}
	}
}

// Serialize emits the raw bucket array exactly as it must be persisted:
// each bucket as BucketSize little-endian fingerprints followed by
// BucketSize codec-encoded payloads, matching the on-disk layout pinned by
// Bytes(). The result is suitable as the blob argument of FromString.
func (c *Core[P]) Serialize() []byte {
	buf := make([]byte, c.byteLen)
	bucketBytes := int(c.byteLen / c.numBuckets)
	for i := range c.buckets {
		b := &c.buckets[i]
		off := i * bucketBytes
		for j := 0; j < BucketSize; j++ {
			binary.LittleEndian.PutUint16(buf[off+j*2:off+j*2+2], b.entries[j])
		}
		dataOff := off + BucketSize*2
		for j := 0; j < BucketSize; j++ {
			start := dataOff + j*c.codec.Size
			c.codec.Encode(buf[start:start+c.codec.Size], b.data[j])
		}
	}
	return buf
}

// FromString restores bucket contents and the occupancy counter from a
// previously serialized blob. The blob's length must equal Bytes()
// exactly; any mismatch leaves the filter untouched and returns
// ErrLengthMismatch.
func (c *Core[P]) FromString(cnt uint64, blob []byte) error {
	if uint64(len(blob)) != c.byteLen {
		return &Error{Op: "from_string", Err: fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(blob), c.byteLen)}
	}
	bucketBytes := int(c.byteLen / c.numBuckets)
	for i := range c.buckets {
		off := i * bucketBytes
		b := &c.buckets[i]
		for j := 0; j < BucketSize; j++ {
			b.entries[j] = binary.LittleEndian.Uint16(blob[off+j*2 : off+j*2+2])
		}
		dataOff := off + BucketSize*2
		for j := 0; j < BucketSize; j++ {
			start := dataOff + j*c.codec.Size
			b.data[j] = c.codec.Decode(blob[start : start+c.codec.Size])
		}
	}
	c.cnt = cnt
	return nil
}

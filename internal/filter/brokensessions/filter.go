// Package brokensessions implements the BS payload policy on top of the
// shared cuckoo-filter substrate in internal/filter: a monotonically
// advancing per-key "last consecutive session counter" with an 8-bit
// sliding window of missing counters, classifying every submission into
// one of seven outcomes.
package brokensessions

import (
	"fmt"

	"fxfilter/internal/filter"
)

// Result codes returned by Add, matching the reference plugin's
// fxbs_add contract exactly.
const (
	CodeInserted        = 0  // fresh fingerprint added
	CodeFoundCorrect    = 1  // exact next session counter observed
	CodeOutOfOrder      = 2  // counter observed but out of order, recorded in the window
	CodeTooManySessions = 3  // session_cnt > 255, filter untouched
	CodeDuplicate       = 4  // counter at or behind last_consecutive
	CodeTooManyMissing  = 5  // gap wider than the 8-bit window, window reset
	CodeFailed          = -1 // cuckoo eviction exhausted MaxKicks
)

// payload is the 2-byte BS wire format: last_consecutive plus an 8-bit
// bitmap of which of the next 8 counters have already been seen.
type payload struct {
	lastConsecutive uint8
	missing         uint8
}

var codec = filter.PayloadCodec[payload]{
	Size: 2,
	Encode: func(dst []byte, p payload) {
		dst[0] = p.lastConsecutive
		dst[1] = p.missing
	},
	Decode: func(src []byte) payload {
		return payload{lastConsecutive: src[0], missing: src[1]}
	},
}

// merge implements the insert_lookup decision table from spec.md §4.4.
// All arithmetic on lc/s is 8-bit and wraps by construction (both operands
// are uint8); this is load-bearing, not incidental, per the spec's note
// that a wider-integer port would silently change behavior.
func merge(existing *payload, incoming payload) (int, bool) {
	lc := existing.lastConsecutive
	s := incoming.lastConsecutive
	diff := s - lc

	switch {
	case diff == 1:
		existing.lastConsecutive = s
		if existing.missing != 0 {
			existing.missing >>= 1
			for existing.missing&1 == 1 {
				existing.missing >>= 1
				existing.lastConsecutive++
			}
		}
		return CodeFoundCorrect, true
	case s <= lc:
		return CodeDuplicate, true
	case diff <= 8:
		existing.missing |= uint8(1) << (diff - 1)
		return CodeOutOfOrder, true
	default:
		existing.lastConsecutive = s
		existing.missing = 0
		return CodeTooManyMissing, true
	}
}

// Filter is a fixed-capacity cuckoo filter tracking per-key session
// continuity. A zero-value Filter is not usable; construct with New.
type Filter struct {
	core *filter.Core[payload]
}

// New builds a filter with logical capacity rounded up from items, which
// must be greater than 4.
func New(items uint64) (*Filter, error) {
	core, err := filter.NewCore(items, codec, merge, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Filter{core: core}, nil
}

// Add submits a session counter observation for key. sessionCount must be
// 0-255; values above 255 are a valid domain outcome (CodeTooManySessions)
// rather than an argument error, matching the reference: only a
// non-numeric or negative input is rejected before the filter is touched.
func (f *Filter) Add(key string, sessionCount int) (int, error) {
	if sessionCount < 0 {
		return 0, fmt.Errorf("%w: session_cnt must not be negative", filter.ErrArgument)
	}
	if sessionCount > 255 {
		return CodeTooManySessions, nil
	}

	outcome := f.core.Insert([]byte(key), payload{lastConsecutive: uint8(sessionCount)})
	switch {
	case outcome.Failed:
		return CodeFailed, nil
	case outcome.Handled:
		return outcome.Code, nil
	default:
		return CodeInserted, nil
	}
}

// Query reports whether key's fingerprint is present.
func (f *Filter) Query(key string) bool { return f.core.Query([]byte(key)) }

// Delete removes key's fingerprint if present.
func (f *Filter) Delete(key string) bool { return f.core.Delete([]byte(key)) }

// Count returns the number of distinct keys currently tracked.
func (f *Filter) Count() uint64 { return f.core.Count() }

// Clear resets the filter to empty.
func (f *Filter) Clear() { f.core.Clear() }

// Items returns the logical capacity.
func (f *Filter) Items() uint64 { return f.core.Items() }

// Serialize returns the raw bucket bytes, suitable for the blob argument
// of FromString or for wrapping in filter.EmitReloadScript.
func (f *Filter) Serialize() []byte { return f.core.Serialize() }

// FromString restores bucket contents and the occupancy counter. blob's
// length must equal exactly the byte size reported at construction.
func (f *Filter) FromString(cnt uint64, blob []byte) error {
	return f.core.FromString(cnt, blob)
}

// TypeTable is the stable public name used in the emitted reload script,
// mirroring the reference Lua module table name.
const TypeTable = "fx.broken_sessions"

// Package executivereport implements the ER payload policy on top of the
// shared cuckoo-filter substrate in internal/filter: per-key browser
// attributes (country, channel, os, default-setting) plus a rolling
// day-of-week activity bitmap and a sticky "new key" flag, aggregated by
// Report into per-segment counters.
package executivereport

import (
	"fmt"
	"math/bits"

	"fxfilter/internal/filter"
)

const (
	newFlagBit = 1 << 7
	dowMask    = 0x7f
)

// payload is the 3-byte ER wire format: country, a packed byte of
// channel/os/dflt, and the dow bitmap with the new-flag in its top bit.
type payload struct {
	country uint8
	channel uint8 // 0-7
	os      uint8 // 0-3
	dflt    bool
	dow     uint8 // bits 0-6 are day-of-week activity, bit 7 is the new flag
}

func packAttrs(channel, os uint8, dflt bool) uint8 {
	b := channel&0x07 | (os&0x03)<<3
	if dflt {
		b |= 1 << 5
	}
	return b
}

func unpackAttrs(b uint8) (channel, os uint8, dflt bool) {
	return b & 0x07, (b >> 3) & 0x03, b&(1<<5) != 0
}

var codec = filter.PayloadCodec[payload]{
	Size: 3,
	Encode: func(dst []byte, p payload) {
		dst[0] = p.country
		dst[1] = packAttrs(p.channel, p.os, p.dflt)
		dst[2] = p.dow
	},
	Decode: func(src []byte) payload {
		channel, os, dflt := unpackAttrs(src[1])
		return payload{country: src[0], channel: channel, os: os, dflt: dflt, dow: src[2]}
	},
}

// merge implements the ER insert_lookup rule: a collision on an existing
// fingerprint always overwrites country/channel/os/dflt with the latest
// submission and ORs the incoming day-of-week bit into the rolling window.
// The new-flag (bit 7 of dow) is left untouched here; it is only ever set
// by onNewKey, whenever the core places an entry into an empty slot (a
// fresh insert, or an entry moved there during cuckoo eviction).
func merge(existing *payload, incoming payload) (int, bool) {
	existing.country = incoming.country
	existing.channel = incoming.channel
	existing.os = incoming.os
	existing.dflt = incoming.dflt
	existing.dow |= incoming.dow & dowMask
	return 0, true
}

// onNewKey sets the sticky new-flag the moment a fingerprint is placed
// into a previously-empty slot, mirroring bucket_add's unconditional
// `dow |= 128`.
func onNewKey(p *payload) {
	p.dow |= newFlagBit
}

// Filter is a fixed-capacity cuckoo filter tracking per-key browser
// segment attributes and weekly activity. A zero-value Filter is not
// usable; construct with New.
type Filter struct {
	core *filter.Core[payload]
}

// New builds a filter with logical capacity rounded up from items, which
// must be greater than 4.
func New(items uint64) (*Filter, error) {
	core, err := filter.NewCore(items, codec, merge, onNewKey, nil)
	if err != nil {
		return nil, err
	}
	return &Filter{core: core}, nil
}

// Add records a submission for key. It returns true when the submission
// was recorded, whether as a newly inserted fingerprint or merged into an
// existing entry, and false only when cuckoo eviction exhausted MaxKicks;
// it never fails on a duplicate since ER always accepts the update. country must be 0-255,
// channel 0-7, os 0-3 and day 0-6 (Sunday=0 .. Saturday=6); violating any
// range is an argument error and the filter is left untouched.
func (f *Filter) Add(key string, country, channel, os, day int, dflt bool) (bool, error) {
	if country < 0 || country > 255 {
		return false, fmt.Errorf("%w: country must be 0-255", filter.ErrArgument)
	}
	if channel < 0 || channel > 7 {
		return false, fmt.Errorf("%w: channel must be 0-7", filter.ErrArgument)
	}
	if os < 0 || os > 3 {
		return false, fmt.Errorf("%w: os must be 0-3", filter.ErrArgument)
	}
	if day < 0 || day > 6 {
		return false, fmt.Errorf("%w: day must be 0-6", filter.ErrArgument)
	}

	p := payload{
		country: uint8(country),
		channel: uint8(channel),
		os:      uint8(os),
		dflt:    dflt,
		dow:     1 << uint(day),
	}
	outcome := f.core.Insert([]byte(key), p)
	return !outcome.Failed, nil
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
const TypeTable = "fx.executive_report"

// fiveOfSeven reports whether at least 5 of the 7 low bits of dow are set.
func fiveOfSeven(dow uint8) bool {
	return bits.OnesCount8(dow&dowMask) >= 5
}

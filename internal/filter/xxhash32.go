package filter

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// hashKey computes the primary hash of a key: xxh32(key, HashSeed).
func hashKey(key []byte) uint32 {
	return xxhash.Checksum32S(key, HashSeed)
}

// altHash rehashes a fingerprint the same way the reference C plugins do:
// XXH32 over the 4 native-endian bytes of the fingerprint zero-extended to
// a machine word. We fix little-endian explicitly rather than relying on
// host byte order, since that choice is ours to make for a from-scratch
// Go serialization format (see DESIGN.md).
func altHash(fp uint16) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(fp))
	return xxhash.Checksum32S(buf[:], HashSeed)
}

// fingerprint derives a 16-bit non-zero fingerprint from a 32-bit hash by
// folding the upper and lower halves together. The mapping must stay
// stable: it is part of the persisted, interoperable bucket layout.
func fingerprint(h uint32) uint16 {
	fp := uint16(h>>16) ^ uint16(h)
	if fp == 0 {
		fp = 1
	}
	return fp
}

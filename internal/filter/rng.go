package filter

import (
	"math/rand"
	"sync"
	"time"
)

// RNG is the randomness source the cuckoo eviction loop consumes. It is
// deliberately narrow (just Intn) so tests can inject a deterministic
// sequence without pulling in the full math/rand.Rand surface.
type RNG interface {
	Intn(n int) int
}

// lockedRand adapts a *rand.Rand into an RNG safe for the process-wide
// default instance. Individual filters are single-owner per spec, but the
// default generator is shared across every filter that does not supply
// its own, so it needs its own lock.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

var processRNG = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}

// DefaultRNG returns the process-wide eviction RNG used when a filter is
// constructed without an explicit one. The reference implementation's RNG
// is unseeded and process-wide; this preserves that default behavior
// while still letting tests inject a seeded RNG for determinism.
func DefaultRNG() RNG { return processRNG }

// NewSeededRNG returns an RNG seeded deterministically, for tests that
// need reproducible eviction chains.
func NewSeededRNG(seed int64) RNG {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

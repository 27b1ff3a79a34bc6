package classifier

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	mathrand "math/rand"
	"sync"
)

// OverheadFactor compensates for the gap between a classifier result's
// self-reported size and its real footprint. spec.md §9 leaves the exact
// value open but requires the rationale (self-reported size undercounts
// real footprint) to be honoured; this repo keeps the source value rather
// than re-derive it.
const OverheadFactor = 0.65

// MaxEntrySize is the wire-protocol packet ceiling (0xffffff - 5); an
// entry whose self-reported size exceeds it is never admitted regardless
// of the cache's remaining capacity (I4).
const MaxEntrySize = 0xffffff - 5

// entry is the cache's internal record. It embeds Result plus the bits
// CacheEntry in spec.md §3 calls for: the SQL-mode/options the entry was
// inserted under, and a hit counter.
type entry struct {
	result  *Result
	sqlMode int
	options uint32
	hits    int64
}

// Stats is the per-cache set of mutable counters spec.md §3 calls
// CacheStats: current total byte size, inserts, hits, misses, evictions.
type Stats struct {
	Size      int64
	Inserts   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is a ParsingCache instance. It is strictly single-goroutine: one
// Cache belongs to exactly one long-lived worker goroutine (see
// proxy.worker), matching spec.md §3/§5's "per-thread, no cross-thread
// sharing" invariant realized with Go's actual concurrency primitive. The
// mutex below guards against the admin surface's read-only Stats()/State()
// snapshot calls running from a different goroutine, not against
// concurrent mutation from multiple workers — there is none.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	keys     []string // mirror of map keys, for O(1) random-bucket pick
	keyIndex map[string]int
	maxBytes int64
	rng      *mathrand.Rand
	stats    Stats
}

// New builds a Cache whose effective capacity is maxSize/threadCount,
// scaled by OverheadFactor, per spec.md §4.3. The per-cache Mersenne-
// Twister-style source is seeded from a hardware device (crypto/rand),
// matching the "random bucket ... seeded from a hardware device"
// eviction policy; Go's math/rand does not implement MT19937 itself, but
// math/rand.Rand is the stdlib's general-purpose PRNG and is what the
// rest of this corpus reaches for when it needs a seeded generator — no
// MT19937 package appears anywhere in the retrieved examples, so this is
// recorded as a standard-library choice in DESIGN.md rather than
// fabricated.
func New(processMaxSize int64, threadCount int) *Cache {
	if threadCount <= 0 {
		threadCount = 1
	}
	capBytes := int64(float64(processMaxSize) / float64(threadCount) * OverheadFactor)
	return &Cache{
		entries:  make(map[string]*entry),
		keyIndex: make(map[string]int),
		maxBytes: capBytes,
		rng:      mathrand.New(mathrand.NewSource(seedFromHardware())),
	}
}

func seedFromHardware() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failure is effectively impossible on a real OS; fall
		// back to a fixed seed rather than panic, since eviction order has
		// no correctness dependency on randomness quality.
		return 0
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// Get returns the cached Result for key iff an entry exists and was
// inserted under the parser's current SQL-mode and options; otherwise it
// evicts any stale entry and reports a miss, per spec.md §4.3/I3.
func (c *Cache) Get(p Parser, key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if e.sqlMode != p.SQLMode() || e.options != p.Options() {
		c.removeLocked(key)
		c.stats.Misses++
		return nil, false
	}
	e.hits++
	c.stats.Hits++
	return e.result, true
}

// Peek returns the cached Result without touching statistics or evicting
// a mode-mismatched entry.
func (c *Cache) Peek(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.result, true
}

// Insert stores result under key, evicting random buckets until enough
// room exists if necessary. Entries whose self-reported size exceeds
// MaxEntrySize, or whose size alone exceeds the cache's cap, are rejected
// (I4); the rejection is silent per spec.md §7.7, only visible through
// Misses.
func (c *Cache) Insert(p Parser, key string, result *Result) {
	size := result.SizeBytes()
	if size > MaxEntrySize || size > c.maxBytes {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.stats.Size -= old.result.SizeBytes()
		c.removeLocked(key)
	}

	for c.stats.Size+size > c.maxBytes && len(c.keys) > 0 {
		c.evictOneLocked()
	}

	c.entries[key] = &entry{result: result, sqlMode: p.SQLMode(), options: p.Options()}
	c.keyIndex[key] = len(c.keys)
	c.keys = append(c.keys, key)
	c.stats.Size += size
	c.stats.Inserts++
}

// UpdateTotalSize reports a non-negative size delta for an entry already
// in the cache whose classifier result grew after insertion (lazy field-
// info population), per spec.md §4.3.
func (c *Cache) UpdateTotalSize(delta int64) {
	if delta < 0 {
		return
	}
	c.mu.Lock()
	c.stats.Size += delta
	c.mu.Unlock()
}

// Clear removes every entry and returns the number of bytes freed.
func (c *Cache) Clear() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	freed := c.stats.Size
	c.entries = make(map[string]*entry)
	c.keyIndex = make(map[string]int)
	c.keys = nil
	c.stats.Size = 0
	return freed
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// State returns a (key -> (hitCount, summary)) snapshot for admin
// diagnostics, per spec.md §4.3's state() operation.
func (c *Cache) State() map[string]struct {
	Hits    int64
	Summary string
} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct {
		Hits    int64
		Summary string
	}, len(c.entries))
	for k, e := range c.entries {
		out[k] = struct {
			Hits    int64
			Summary string
		}{Hits: e.hits, Summary: e.result.Summary()}
	}
	return out
}

// evictOneLocked removes one entry chosen by picking a random index into
// the key slice (the "random bucket" of spec.md §4.3 — Go's hash map has
// no addressable bucket API, so a random slot in an O(1)-swap-removable
// key slice stands in for it; the eviction target is still "some
// arbitrary entry, not the least-recently-used one").
func (c *Cache) evictOneLocked() {
	if len(c.keys) == 0 {
		return
	}
	i := c.rng.Intn(len(c.keys))
	key := c.keys[i]
	c.stats.Size -= c.entries[key].result.SizeBytes()
	c.removeLocked(key)
	c.stats.Evictions++
	log.Printf("[classifier] evicted cache entry %s", shortKey(key))
}

// removeLocked deletes key from both the map and the key slice, swapping
// the last element into the freed slot to keep removal O(1).
func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	i, ok := c.keyIndex[key]
	if !ok {
		return
	}
	last := len(c.keys) - 1
	c.keys[i] = c.keys[last]
	c.keyIndex[c.keys[i]] = i
	c.keys = c.keys[:last]
	delete(c.keyIndex, key)
}

func shortKey(key string) string {
	if len(key) <= 16 {
		return key
	}
	return fmt.Sprintf("%s...", key[:16])
}

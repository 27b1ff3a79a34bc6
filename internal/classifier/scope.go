package classifier

// Scope is the RAII-style guard spec.md §4.3 calls for: on construction it
// attaches a cached annotation if present, remembers its size, and on
// Close either inserts the now-populated annotation or reports a size
// delta if it grew in place. Go has no destructors, so callers must defer
// Close explicitly — this is the one place the spec's C++ idiom is
// translated rather than mirrored, since Go simply does not have the
// underlying language feature.
type Scope struct {
	cache      *Cache
	parser     Parser
	key        string
	result     *Result
	hit        bool
	cacheable  bool
	sizeAtOpen int64
}

// Open begins a classification scope for canonical. If a valid cached
// entry exists it is returned via Result(); otherwise the caller is
// expected to parse and call Populate before Close.
func Open(cache *Cache, parser Parser, canonical string) *Scope {
	s := &Scope{cache: cache, parser: parser, key: canonical, cacheable: true}
	if r, ok := cache.Get(parser, canonical); ok {
		s.result = r
		s.hit = true
		s.sizeAtOpen = r.SizeBytes()
	}
	return s
}

// Hit reports whether Open found a valid cached entry.
func (s *Scope) Hit() bool { return s.hit }

// Result returns the current classifier result, cached or freshly parsed.
func (s *Scope) Result() *Result { return s.result }

// Populate records a freshly parsed result for a cache miss. Call this
// only when Hit() is false.
func (s *Scope) Populate(r *Result) {
	s.result = r
	s.sizeAtOpen = r.SizeBytes()
}

// MarkNonCacheable opts this statement out of caching entirely, e.g. for
// a kill-command or other result the parser flags as unsafe to memoize.
func (s *Scope) MarkNonCacheable() { s.cacheable = false }

// Close inserts a freshly parsed result into the cache, or reports a
// growth delta for a result that was already cached but whose self-
// reported size changed while the scope was open (lazy field-info
// population). Safe to call multiple times; a second call is a no-op.
func (s *Scope) Close() {
	if s.result == nil || !s.cacheable || s.cache == nil {
		return
	}
	if s.hit {
		if delta := s.result.SizeBytes() - s.sizeAtOpen; delta > 0 {
			s.cache.UpdateTotalSize(delta)
		}
	} else {
		s.cache.Insert(s.parser, s.key, s.result)
	}
	s.cache = nil
}

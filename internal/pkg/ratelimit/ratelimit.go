// Package ratelimit implements an in-process fixed-window request counter.
// It is coarse abuse deterrence, not a fairness scheduler; callers wanting
// smoother behavior can swap in a token bucket behind the same contract.
package ratelimit

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// DefaultCapacity bounds the number of tracked identifiers per shard so the
// window map cannot grow without limit for an ever-changing key set.
const DefaultCapacity = 4096

// Limiter counts events per identifier in fixed windows. Each shard holds its
// own lock, so unrelated identifiers never serialize on one another.
type Limiter struct {
	window   time.Duration
	max      int
	capacity int
	shards   [shardCount]shard
	now      func() time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
}

type window struct {
	key     string
	count   int
	resetAt time.Time
}

// New creates a limiter allowing max events per window for each identifier.
func New(max int, windowDur time.Duration) *Limiter {
	return NewWithCapacity(max, windowDur, DefaultCapacity)
}

// NewWithCapacity creates a limiter with an explicit per-shard identifier cap.
// Least-recently-seen identifiers are evicted beyond the cap.
func NewWithCapacity(max int, windowDur time.Duration, capacity int) *Limiter {
	if max <= 0 {
		max = 1
	}
	if windowDur <= 0 {
		windowDur = time.Minute
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Limiter{window: windowDur, max: max, capacity: capacity, now: time.Now}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*list.Element)
		l.shards[i].lru = list.New()
	}
	return l
}

// Allow records an event for identifier and reports whether it is within the
// window budget. A denied call does not consume budget. Absence of a prior
// window is not an error; this never fails.
func (l *Limiter) Allow(identifier string) bool {
	sh := &l.shards[shardIndex(identifier)]
	now := l.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.entries[identifier]; ok {
		w := el.Value.(*window)
		sh.lru.MoveToFront(el)
		// At or past the stored reset time a fresh window starts.
		if !now.Before(w.resetAt) {
			w.count = 1
			w.resetAt = now.Add(l.window)
			return true
		}
		if w.count >= l.max {
			return false
		}
		w.count++
		return true
	}

	if sh.lru.Len() >= l.capacity {
		oldest := sh.lru.Back()
		if oldest != nil {
			sh.lru.Remove(oldest)
			delete(sh.entries, oldest.Value.(*window).key)
		}
	}
	sh.entries[identifier] = sh.lru.PushFront(&window{
		key:     identifier,
		count:   1,
		resetAt: now.Add(l.window),
	})
	return true
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

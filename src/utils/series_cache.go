package utils

import (
	"sync"
	"time"

	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// SeriesCache keeps recently built chart payloads in memory so a repeated
// selection redraws without touching the database or the network. The cache
// is bounded by a total candle-point budget, evicting oldest entries first.
// -----------------------------------------------------------------------------

type SeriesCache struct {
	entries     map[string]*seriesEntry
	maxPoints   int
	totalPoints int
	ttl         time.Duration
	Logger      *logger.Logger
	mu          sync.RWMutex
}

type seriesEntry struct {
	data     *models.MChartData
	points   int
	storedAt time.Time
}

// -----------------------------------------------------------------------------

func NewSeriesCache(maxPoints int, ttl time.Duration, logLevel string) *SeriesCache {
	return &SeriesCache{
		entries:   make(map[string]*seriesEntry),
		maxPoints: maxPoints,
		ttl:       ttl,
		Logger:    logger.NewLogger(logLevel, "SeriesCache"),
	}
}

// -----------------------------------------------------------------------------

// Key builds the cache key for a chart selection.
func Key(symbol, start, end string) string {
	return symbol + "|" + start + "|" + end
}

// -----------------------------------------------------------------------------

// Get returns a cached payload, or nil when absent or expired.
func (sc *SeriesCache) Get(key string) *models.MChartData {
	sc.mu.RLock()
	entry, ok := sc.entries[key]
	sc.mu.RUnlock()

	if !ok {
		return nil
	}

	if sc.ttl > 0 && time.Since(entry.storedAt) > sc.ttl {
		sc.mu.Lock()
		// A concurrent Put may have replaced the entry since the read
		// lock was dropped, only evict the one that actually expired
		if cur, ok := sc.entries[key]; ok && cur == entry {
			sc.evict(key)
		}
		sc.mu.Unlock()
		return nil
	}

	return entry.data
}

// -----------------------------------------------------------------------------

// Put stores a payload, evicting oldest entries until the point budget fits.
func (sc *SeriesCache) Put(key string, data *models.MChartData) {
	points := len(data.Dates)
	if points > sc.maxPoints {
		// A single oversized series would evict everything for nothing
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if old, ok := sc.entries[key]; ok {
		sc.totalPoints -= old.points
	}

	for sc.totalPoints+points > sc.maxPoints && len(sc.entries) > 0 {
		sc.evictOldest()
	}

	sc.entries[key] = &seriesEntry{data: data, points: points, storedAt: time.Now()}
	sc.totalPoints += points
}

// -----------------------------------------------------------------------------

// evict removes one entry. Caller holds the write lock.
func (sc *SeriesCache) evict(key string) {
	if entry, ok := sc.entries[key]; ok {
		sc.totalPoints -= entry.points
		delete(sc.entries, key)
	}
}

// -----------------------------------------------------------------------------

func (sc *SeriesCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time

	for k, e := range sc.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
		}
	}

	if oldestKey != "" {
		sc.Logger.Debug("Evicting cached series %s", oldestKey)
		sc.evict(oldestKey)
	}
}

// -----------------------------------------------------------------------------

// Invalidate drops every cached range for a symbol, used after fresh candles land.
func (sc *SeriesCache) Invalidate(symbol string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	prefix := symbol + "|"
	for k := range sc.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			sc.evict(k)
		}
	}
}

// -----------------------------------------------------------------------------

// Size returns the number of cached series.
func (sc *SeriesCache) Size() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.entries)
}

// -----------------------------------------------------------------------------

// TotalPoints returns the current point budget usage.
func (sc *SeriesCache) TotalPoints() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.totalPoints
}

package utils

import (
	"sync"
	"testing"
	"time"

	"stock-dashboard/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(symbol string, points int) *models.MChartData {
	dates := make([]string, points)
	return &models.MChartData{Symbol: symbol, Dates: dates}
}

func TestSeriesCachePutGet(t *testing.T) {
	sc := NewSeriesCache(100, time.Minute, "ERROR")

	key := Key("AAPL", "2024-01-01", "2024-01-31")
	sc.Put(key, payload("AAPL", 20))

	got := sc.Get(key)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 20, sc.TotalPoints())

	assert.Nil(t, sc.Get(Key("AAPL", "2024-01-01", "2024-02-28")))
}

func TestSeriesCacheEvictsOldestWhenBudgetExceeded(t *testing.T) {
	sc := NewSeriesCache(50, time.Minute, "ERROR")

	sc.Put(Key("AAPL", "a", "b"), payload("AAPL", 30))
	time.Sleep(5 * time.Millisecond)
	sc.Put(Key("MSFT", "a", "b"), payload("MSFT", 30))

	// First entry had to go to make room
	assert.Nil(t, sc.Get(Key("AAPL", "a", "b")))
	assert.NotNil(t, sc.Get(Key("MSFT", "a", "b")))
	assert.Equal(t, 1, sc.Size())
	assert.Equal(t, 30, sc.TotalPoints())
}

func TestSeriesCacheRejectsOversizedSeries(t *testing.T) {
	sc := NewSeriesCache(50, time.Minute, "ERROR")

	sc.Put(Key("AAPL", "a", "b"), payload("AAPL", 10))
	sc.Put(Key("SPY", "a", "b"), payload("SPY", 500))

	// Oversized entry is skipped, existing entries stay
	assert.Nil(t, sc.Get(Key("SPY", "a", "b")))
	assert.NotNil(t, sc.Get(Key("AAPL", "a", "b")))
}

func TestSeriesCacheReplacingKeyAdjustsBudget(t *testing.T) {
	sc := NewSeriesCache(100, time.Minute, "ERROR")

	key := Key("AAPL", "a", "b")
	sc.Put(key, payload("AAPL", 40))
	sc.Put(key, payload("AAPL", 10))

	assert.Equal(t, 1, sc.Size())
	assert.Equal(t, 10, sc.TotalPoints())
}

func TestSeriesCacheTTLExpiry(t *testing.T) {
	sc := NewSeriesCache(100, 10*time.Millisecond, "ERROR")

	key := Key("AAPL", "a", "b")
	sc.Put(key, payload("AAPL", 5))
	require.NotNil(t, sc.Get(key))

	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, sc.Get(key))
	assert.Equal(t, 0, sc.TotalPoints())
}

func TestSeriesCacheConcurrentExpiryKeepsBudgetConsistent(t *testing.T) {
	// Expiring Gets race with Puts replacing the same key. A Get that saw
	// a stale entry must not evict the fresh replacement behind the Put.
	sc := NewSeriesCache(1000, time.Millisecond, "ERROR")
	key := Key("AAPL", "2024-01-01", "2024-06-01")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				sc.Put(key, payload("AAPL", 10))
				sc.Get(key)
				if i%20 == 0 {
					time.Sleep(2 * time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()

	// Budget accounting must match whatever survived
	assert.Equal(t, sc.Size()*10, sc.TotalPoints())
}

func TestSeriesCacheInvalidateDropsAllRangesForSymbol(t *testing.T) {
	sc := NewSeriesCache(1000, time.Minute, "ERROR")

	sc.Put(Key("AAPL", "2024-01-01", "2024-01-31"), payload("AAPL", 20))
	sc.Put(Key("AAPL", "2024-02-01", "2024-02-29"), payload("AAPL", 20))
	sc.Put(Key("MSFT", "2024-01-01", "2024-01-31"), payload("MSFT", 20))

	sc.Invalidate("AAPL")

	assert.Nil(t, sc.Get(Key("AAPL", "2024-01-01", "2024-01-31")))
	assert.Nil(t, sc.Get(Key("AAPL", "2024-02-01", "2024-02-29")))
	assert.NotNil(t, sc.Get(Key("MSFT", "2024-01-01", "2024-01-31")))
}

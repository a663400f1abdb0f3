package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
	"stock-dashboard/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Test doubles
// -----------------------------------------------------------------------------

type stubSource struct {
	candles    []models.MCandle
	err        error
	fetchCalls int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Metrics() models.MFetchMetrics {
	return models.MFetchMetrics{RowsParsed: s.fetchCalls}
}

func (s *stubSource) ListMostActive() ([]models.MTicker, error) {
	return nil, fmt.Errorf("not used in tests")
}

func (s *stubSource) FetchHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	s.fetchCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

type stubCache struct {
	candles []models.MCandle
	saved   []models.MCandle
}

func (c *stubCache) Initialize() error                      { return nil }
func (c *stubCache) SaveTickers(t []models.MTicker) error   { return nil }
func (c *stubCache) LoadTickers() ([]models.MTicker, error) { return nil, nil }
func (c *stubCache) CleanupOldData() error                  { return nil }
func (c *stubCache) Close() error                           { return nil }

func (c *stubCache) SaveCandlesBulk(candles []models.MCandle) error {
	c.saved = append(c.saved, candles...)
	return nil
}

func (c *stubCache) LoadHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	var out []models.MCandle
	for _, cd := range c.candles {
		if cd.Symbol == symbol && cd.Timestamp >= start.Unix() && cd.Timestamp <= end.Unix() {
			out = append(out, cd)
		}
	}
	return out, nil
}

// blockingSource holds every history fetch until the gate opens, so tests
// can disconnect clients while a scrape is still in flight.
type blockingSource struct {
	stubSource
	gate chan struct{}
}

func (b *blockingSource) FetchHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	<-b.gate
	return b.stubSource.FetchHistory(symbol, start, end)
}

// -----------------------------------------------------------------------------

func newTestServer(source interfaces.IMarketSource, cache interfaces.IHistoryCache) *DashboardServer {
	cfg := &models.MConfig{
		Name:     "test",
		Host:     "127.0.0.1",
		Port:     8050,
		LogLevel: "ERROR",
		Source: models.MSourceConfig{
			DefaultSymbol:    "AAPL",
			DefaultStartDate: "2020-01-01",
			SMAWindow:        3,
			RefreshSeconds:   300,
		},
	}

	scheduler := utils.NewMarketScheduler([]string{"AAPL"}, logger.NewLogger("ERROR", "test"))
	return NewDashboardServer(cfg, logger.NewLogger("ERROR", "test"), source, cache, scheduler)
}

func doGet(s *DashboardServer, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.engine.ServeHTTP(w, req)
	return w
}

func recentCandles(symbol string, n int) []models.MCandle {
	candles := make([]models.MCandle, n)
	day := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < n; i++ {
		ts := day.AddDate(0, 0, -(n - 1 - i))
		price := 100.0 + float64(i)
		candles[i] = models.MCandle{
			Symbol:    symbol,
			Timestamp: ts.Unix(),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			AdjClose:  price,
			Volume:    1000,
		}
	}
	return candles
}

// -----------------------------------------------------------------------------
// Plain endpoints
// -----------------------------------------------------------------------------

func TestGetHealth(t *testing.T) {
	s := newTestServer(&stubSource{}, &stubCache{})
	s.SetTickers([]models.MTicker{{Symbol: "AAPL"}, {Symbol: "MSFT"}})

	w := doGet(s, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["tickers"])
}

func TestGetSymbols(t *testing.T) {
	s := newTestServer(&stubSource{}, &stubCache{})
	s.SetTickers([]models.MTicker{
		{Symbol: "NVDA", Name: "NVIDIA Corporation"},
		{Symbol: "TSLA", Name: "Tesla, Inc."},
	})

	w := doGet(s, "/api/symbols")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tickers []models.MTicker `json:"tickers"`
		Default string           `json:"default"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "AAPL", body.Default)
	require.Len(t, body.Tickers, 2)
	assert.Equal(t, "NVDA", body.Tickers[0].Symbol)
}

func TestGetConfig(t *testing.T) {
	s := newTestServer(&stubSource{}, &stubCache{})

	w := doGet(s, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body["default_symbol"])
	assert.Equal(t, "2020-01-01", body["default_start_date"])
	assert.Equal(t, "2000-01-01", body["min_date"])
}

func TestGetDashboardServesPage(t *testing.T) {
	s := newTestServer(&stubSource{}, &stubCache{})

	w := doGet(s, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "AAPL")
}

// -----------------------------------------------------------------------------
// History endpoint
// -----------------------------------------------------------------------------

func TestGetHistoryValidation(t *testing.T) {
	s := newTestServer(&stubSource{}, &stubCache{})

	w := doGet(s, "/api/history")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(s, "/api/history?symbol=AAPL&start=2024-06-01&end=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(s, "/api/history?symbol=AAPL&start=garbage")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistoryServedFromDatabaseCache(t *testing.T) {
	cache := &stubCache{candles: recentCandles("AAPL", 5)}
	source := &stubSource{}
	s := newTestServer(source, cache)

	start := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	w := doGet(s, "/api/history?symbol=AAPL&start="+start)
	require.Equal(t, http.StatusOK, w.Code)

	var payload models.MChartData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))

	assert.Equal(t, "Stock Prices: AAPL", payload.Title)
	assert.Equal(t, "INITIAL", payload.Type)
	assert.True(t, payload.FromCache)
	assert.Len(t, payload.Dates, 5)
	assert.Len(t, payload.SMA, 5)
	assert.Equal(t, 5, payload.Stats.Points)

	// Complete cached range, scraper never runs
	assert.Equal(t, 0, source.fetchCalls)
}

func TestGetHistoryScrapesOnCacheMiss(t *testing.T) {
	source := &stubSource{candles: recentCandles("AAPL", 4)}
	cache := &stubCache{}
	s := newTestServer(source, cache)

	start := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	w := doGet(s, "/api/history?symbol=AAPL&start="+start)
	require.Equal(t, http.StatusOK, w.Code)

	var payload models.MChartData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))

	assert.False(t, payload.FromCache)
	assert.Len(t, payload.Dates, 4)
	assert.Equal(t, 1, source.fetchCalls)

	// Fresh candles were persisted for next time
	assert.Len(t, cache.saved, 4)
}

func TestGetHistoryScrapeFailureReturns502(t *testing.T) {
	source := &stubSource{err: fmt.Errorf("blocked")}
	s := newTestServer(source, &stubCache{})

	w := doGet(s, "/api/history?symbol=AAPL")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetHistoryServesStaleCacheWhenScrapeFails(t *testing.T) {
	// Cached range ends well before the requested end, refresh fails
	stale := recentCandles("AAPL", 3)
	for i := range stale {
		stale[i].Timestamp -= 30 * 86400
	}

	source := &stubSource{err: fmt.Errorf("blocked")}
	cache := &stubCache{candles: stale}
	s := newTestServer(source, cache)

	start := time.Now().UTC().AddDate(0, 0, -60).Format("2006-01-02")
	w := doGet(s, "/api/history?symbol=AAPL&start="+start)
	require.Equal(t, http.StatusOK, w.Code)

	var payload models.MChartData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.True(t, payload.FromCache)
	assert.Len(t, payload.Dates, 3)
	assert.Equal(t, 1, source.fetchCalls)
}

// -----------------------------------------------------------------------------
// Chart building
// -----------------------------------------------------------------------------

func TestBuildChartUsesMemoryCacheOnRepeat(t *testing.T) {
	cache := &stubCache{}
	source := &stubSource{candles: recentCandles("AAPL", 4)}
	s := newTestServer(source, cache)

	start := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")

	first, err := s.BuildChart("AAPL", start, "")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := s.BuildChart("AAPL", start, "")
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	// Second call never left memory
	assert.Equal(t, 1, source.fetchCalls)
}

func TestBuildChartClampsDatesToSupportedWindow(t *testing.T) {
	cache := &stubCache{}
	source := &stubSource{candles: recentCandles("AAPL", 2)}
	s := newTestServer(source, cache)

	future := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")
	payload, err := s.BuildChart("AAPL", "1990-01-01", future)
	require.NoError(t, err)

	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, "2000-01-01", payload.Start)
	assert.Equal(t, today, payload.End)
}

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

func TestSubscribeReplySkipsDisconnectedClient(t *testing.T) {
	source := &blockingSource{
		stubSource: stubSource{candles: recentCandles("AAPL", 4)},
		gate:       make(chan struct{}),
	}
	s := newTestServer(source, &stubCache{})

	go s.handleWebsockets()
	defer s.Stop()

	client := &Client{hub: s, send: make(chan *models.MChartData, 1)}
	s.register <- client

	start := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	msg := fmt.Sprintf(`{"command":"subscribe","symbol":"AAPL","start":%q}`, start)
	s.HandleClientMessage(client, []byte(msg))

	// Disconnect while the fetch is still in flight, then let it finish
	s.unregister <- client
	close(source.gate)

	// The late reply gets stored as a subscription before delivery
	today := time.Now().UTC().Format("2006-01-02")
	require.Eventually(t, func() bool {
		_, ok := s.subscriptions.Load(utils.Key("AAPL", start, today))
		return ok
	}, time.Second, 5*time.Millisecond)

	// Give the hub a beat to route the reply, then confirm it was dropped
	// instead of written to the closed channel
	time.Sleep(50 * time.Millisecond)
	payload, ok := <-client.send
	assert.Nil(t, payload)
	assert.False(t, ok)
}

func TestRefreshRebuildsSubscribedChart(t *testing.T) {
	source := &stubSource{candles: recentCandles("AAPL", 4)}
	s := newTestServer(source, &stubCache{})

	start := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	first, err := s.BuildChart("AAPL", start, "")
	require.NoError(t, err)
	require.Equal(t, 1, source.fetchCalls)

	s.subscriptions.Store(utils.Key(first.Symbol, first.Start, first.End), models.MSubscribeCommand{
		Command: "subscribe",
		Symbol:  "AAPL",
		Start:   start,
	})

	s.refreshSubscriptions()

	// The refresh always goes back to the source
	assert.Equal(t, 2, source.fetchCalls)

	select {
	case update := <-s.broadcast:
		assert.Equal(t, "UPDATE", update.Type)
		assert.Len(t, update.Dates, 4)
	default:
		t.Fatal("expected an update broadcast")
	}

	// The reprimed memory cache still hands out INITIAL payloads
	again, err := s.BuildChart("AAPL", start, "")
	require.NoError(t, err)
	assert.Equal(t, "INITIAL", again.Type)
	assert.True(t, again.FromCache)
	assert.Equal(t, 2, source.fetchCalls)
}

func TestSubscriptionsClearedWhenLastClientLeaves(t *testing.T) {
	s := newTestServer(&stubSource{}, &stubCache{})

	go s.handleWebsockets()
	defer s.Stop()

	client := &Client{hub: s, send: make(chan *models.MChartData, 1)}
	s.register <- client
	s.subscriptions.Store(utils.Key("AAPL", "2024-01-01", "2024-06-01"), models.MSubscribeCommand{
		Command: "subscribe",
		Symbol:  "AAPL",
	})

	s.unregister <- client

	require.Eventually(t, func() bool {
		count := 0
		s.subscriptions.Range(func(_, _ interface{}) bool {
			count++
			return true
		})
		return count == 0
	}, time.Second, 5*time.Millisecond)
}

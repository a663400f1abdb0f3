package yahoo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Test doubles
// -----------------------------------------------------------------------------

// stubNetwork replays queued responses and records requested URLs.
type stubNetwork struct {
	responses []stubResponse
	urls      []string
	params    []map[string]string
}

type stubResponse struct {
	body []byte
	err  error
}

func (s *stubNetwork) Get(url string, params map[string]string) ([]byte, error) {
	s.urls = append(s.urls, url)
	s.params = append(s.params, params)

	if len(s.responses) == 0 {
		return nil, fmt.Errorf("no stubbed response for %s", url)
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp.body, resp.err
}

func newTestConfig() *models.MConfig {
	return &models.MConfig{
		LogLevel: "ERROR",
		Source: models.MSourceConfig{
			ListingURL:     "https://finance.example.com/most-active/",
			HistoryURL:     "https://finance.example.com/quote/%s/history/",
			ChartAPIURL:    "https://api.example.com/v8/finance/chart",
			MaxListingRows: 100,
		},
	}
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

const listingPage = `<html><body><table>
<thead><tr><th>Symbol</th><th>Name</th><th>Price</th><th>Volume</th></tr></thead>
<tbody>
<tr><td>NVDA</td><td>NVIDIA Corporation</td><td>131.26</td><td>254.1M</td></tr>
<tr><td>TSLA</td><td>Tesla, Inc.</td><td>248.98</td><td>89.5M</td></tr>
<tr><td>NVDA</td><td>NVIDIA Corporation</td><td>131.26</td><td>254.1M</td></tr>
<tr><td>F</td><td>Ford Motor Company</td><td>10.48</td><td>-</td></tr>
</tbody>
</table></body></html>`

func TestListMostActiveParsesAndDeduplicates(t *testing.T) {
	net := &stubNetwork{responses: []stubResponse{{body: []byte(listingPage)}}}
	source := NewSource(newTestConfig(), net)

	tickers, err := source.ListMostActive()
	require.NoError(t, err)

	require.Len(t, tickers, 3)
	assert.Equal(t, "NVDA", tickers[0].Symbol)
	assert.Equal(t, "TSLA", tickers[1].Symbol)
	assert.Equal(t, "F", tickers[2].Symbol)

	assert.Equal(t, "NVIDIA Corporation", tickers[0].Name)
	assert.InDelta(t, 131.26, tickers[0].Price, 1e-9)
	assert.InDelta(t, 254.1e6, tickers[0].Volume, 1e-3)

	// Unparseable volume cell stays at the zero value
	assert.Equal(t, 0.0, tickers[2].Volume)

	require.Len(t, net.params, 1)
	assert.Equal(t, "0", net.params[0]["start"])
	assert.Equal(t, "100", net.params[0]["count"])
}

func TestListMostActiveTruncatesToConfiguredRows(t *testing.T) {
	cfg := newTestConfig()
	cfg.Source.MaxListingRows = 2

	net := &stubNetwork{responses: []stubResponse{{body: []byte(listingPage)}}}
	source := NewSource(cfg, net)

	tickers, err := source.ListMostActive()
	require.NoError(t, err)
	assert.Len(t, tickers, 2)
}

func TestListMostActiveFailsWithoutSymbolColumn(t *testing.T) {
	page := `<table><tr><th>Price</th></tr><tr><td>1.0</td></tr></table>`
	net := &stubNetwork{responses: []stubResponse{{body: []byte(page)}}}
	source := NewSource(newTestConfig(), net)

	_, err := source.ListMostActive()
	require.Error(t, err)

	// Layout drift surfaces as a parse failure, not a generic error
	var perr *helpers.ParseError
	assert.True(t, errors.As(err, &perr))
}

// -----------------------------------------------------------------------------
// History
// -----------------------------------------------------------------------------

const historyPage = `<html><body><table>
<thead><tr>
<th>Date</th>
<th>Open</th><th>High</th><th>Low</th>
<th>Close Close price adjusted for splits</th>
<th>Adj Close Adjusted close price adjusted for splits and dividend and/or capital gain distributions</th>
<th>Volume</th>
</tr></thead>
<tbody>
<tr><td>Jan 4, 2024</td><td>182.15</td><td>183.09</td><td>180.88</td><td>181.91</td><td>181.18</td><td>71,983,600</td></tr>
<tr><td>Jan 3, 2024</td><td>184.22</td><td>185.88</td><td>183.43</td><td>184.25</td><td>183.51</td><td>58,414,500</td></tr>
<tr><td>Jan 2, 2024</td><td colspan="6">0.24 Dividend</td></tr>
</tbody>
</table></body></html>`

func TestFetchHistoryParsesTableSortedAscending(t *testing.T) {
	net := &stubNetwork{responses: []stubResponse{{body: []byte(historyPage)}}}
	source := NewSource(newTestConfig(), net)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	candles, err := source.FetchHistory("AAPL", start, end)
	require.NoError(t, err)

	// The dividend row is dropped, price rows come back oldest first
	require.Len(t, candles, 2)
	assert.Equal(t, "2024-01-03", candles[0].Date())
	assert.Equal(t, "2024-01-04", candles[1].Date())

	assert.Equal(t, "AAPL", candles[0].Symbol)
	assert.InDelta(t, 184.25, candles[0].Close, 1e-9)
	assert.InDelta(t, 183.51, candles[0].AdjClose, 1e-9)
	assert.InDelta(t, 58_414_500, candles[0].Volume, 1e-3)

	// Requested range travels as unix period params
	require.Len(t, net.params, 1)
	assert.Equal(t, "1704067200", net.params[0]["period1"])
	assert.Equal(t, net.urls[0], "https://finance.example.com/quote/AAPL/history/")

	metrics := source.Metrics()
	assert.Equal(t, 2, metrics.RowsParsed)
	assert.Equal(t, 1, metrics.RowsDropped)
}

func TestFetchHistoryFallsBackToChartAPI(t *testing.T) {
	chartJSON := `{"chart":{"result":[{
		"timestamp":[1704240000,1704326400],
		"indicators":{
			"quote":[{"open":[182.15,184.22],"high":[183.09,185.88],"low":[180.88,183.43],"close":[181.91,184.25],"volume":[71983600,58414500]}],
			"adjclose":[{"adjclose":[181.18,183.51]}]
		}
	}],"error":null}}`

	net := &stubNetwork{responses: []stubResponse{
		{err: fmt.Errorf("503 service unavailable")},
		{body: []byte(chartJSON)},
	}}
	source := NewSource(newTestConfig(), net)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	candles, err := source.FetchHistory("AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 181.18, candles[0].AdjClose, 1e-9)

	require.Len(t, net.urls, 2)
	assert.Equal(t, "https://api.example.com/v8/finance/chart/AAPL", net.urls[1])
	assert.Equal(t, "1d", net.params[1]["interval"])
}

func TestFetchHistoryFailsWhenBothPathsFail(t *testing.T) {
	net := &stubNetwork{responses: []stubResponse{
		{err: fmt.Errorf("503 service unavailable")},
		{err: fmt.Errorf("503 service unavailable")},
	}}
	source := NewSource(newTestConfig(), net)

	_, err := source.FetchHistory("AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	assert.Error(t, err)
}

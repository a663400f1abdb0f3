package yahoo

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/htmltable"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// dateLayout matches the history table's Date column ("Mar 15, 2024").
const dateLayout = "Jan 2, 2006"

// -----------------------------------------------------------------------------

// Source scrapes ticker listings and daily price history tables from the
// public finance pages. When a page scrape fails (layout drift, consent
// walls) it falls back to the chart JSON API for the same range.
type Source struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	metricsMu sync.Mutex
	metrics   models.MFetchMetrics
}

// -----------------------------------------------------------------------------

func NewSource(cfg *models.MConfig, netMgr interfaces.INetworkManager) *Source {
	return &Source{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger(cfg.LogLevel, "YahooSource"),
	}
}

// -----------------------------------------------------------------------------

func (s *Source) Name() string {
	return "yahoo-finance"
}

// -----------------------------------------------------------------------------

// Metrics returns a snapshot of the last successful history fetch.
func (s *Source) Metrics() models.MFetchMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

func (s *Source) noteDropped(n int) {
	s.metricsMu.Lock()
	s.metrics.RowsDropped = n
	s.metricsMu.Unlock()
}

// -----------------------------------------------------------------------------
// Listing scrape
// -----------------------------------------------------------------------------

// ListMostActive fetches the most-active listing page and reads the ticker
// table. Page order is preserved and duplicate symbols are dropped.
func (s *Source) ListMostActive() ([]models.MTicker, error) {
	params := map[string]string{
		"start": "0",
		"count": strconv.Itoa(s.Config.Source.MaxListingRows),
	}

	body, err := s.Network.Get(s.Config.Source.ListingURL, params)
	if err != nil {
		return nil, fmt.Errorf("listing fetch failed: %w", err)
	}

	tickers, err := s.parseListingTable(body)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Listing scrape returned %d tickers", len(tickers))
	return tickers, nil
}

// -----------------------------------------------------------------------------

func (s *Source) parseListingTable(body []byte) ([]models.MTicker, error) {
	table, err := htmltable.First(body)
	if err != nil {
		return nil, helpers.NewParseError("listing parse failed", err)
	}

	symbols, err := table.Column("Symbol")
	if err != nil {
		return nil, helpers.NewParseError("listing table layout changed", err)
	}

	// Optional columns, layout drift must not break the symbol list
	names, _ := table.Column("Name")
	prices, _ := table.NumericColumn("Price")
	volumes, _ := table.NumericColumn("Volume")

	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var tickers []models.MTicker

	for i, sym := range symbols {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}

		t := models.MTicker{Symbol: sym, FetchedAt: now}
		if i < len(names) {
			t.Name = names[i]
		}
		if i < len(prices) && !math.IsNaN(prices[i]) {
			t.Price = prices[i]
		}
		if i < len(volumes) && !math.IsNaN(volumes[i]) {
			t.Volume = volumes[i]
		}
		tickers = append(tickers, t)

		if len(tickers) >= s.Config.Source.MaxListingRows {
			break
		}
	}

	if len(tickers) == 0 {
		return nil, helpers.NewParseError("listing table contained no symbols", nil)
	}
	return tickers, nil
}

// -----------------------------------------------------------------------------
// History scrape
// -----------------------------------------------------------------------------

// FetchHistory scrapes the daily price table for one symbol over [start, end].
// Candles are returned sorted ascending by timestamp with no NaN price fields.
func (s *Source) FetchHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	started := time.Now()

	candles, err := s.fetchHistory(symbol, start, end)
	if err == nil {
		s.metricsMu.Lock()
		s.metrics.FetchTimeSeconds = time.Since(started).Seconds()
		s.metrics.RowsParsed = len(candles)
		s.metricsMu.Unlock()
	}
	return candles, err
}

// -----------------------------------------------------------------------------

func (s *Source) fetchHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	pageURL := fmt.Sprintf(s.Config.Source.HistoryURL, url.PathEscape(symbol))
	params := map[string]string{
		"period1": strconv.FormatInt(start.Unix(), 10),
		"period2": strconv.FormatInt(end.Unix(), 10),
	}

	body, err := s.Network.Get(pageURL, params)
	if err == nil {
		candles, perr := s.parseHistoryTable(symbol, body)
		if perr == nil && len(candles) > 0 {
			return candles, nil
		}
		if perr != nil {
			s.Logger.Warning("History table parse failed for %s: %v. Trying chart API.", symbol, perr)
		}
	} else {
		s.Logger.Warning("History page fetch failed for %s: %v. Trying chart API.", symbol, err)
	}

	return s.fetchChartAPI(symbol, start, end)
}

// -----------------------------------------------------------------------------

func (s *Source) parseHistoryTable(symbol string, body []byte) ([]models.MCandle, error) {
	table, err := htmltable.First(body)
	if err != nil {
		return nil, helpers.NewParseError("history parse failed", err)
	}

	dates, err := table.Column("Date")
	if err != nil {
		return nil, helpers.NewParseError("history table layout changed", err)
	}

	opens, err := table.NumericColumn("Open")
	if err != nil {
		return nil, err
	}
	highs, err := table.NumericColumn("High")
	if err != nil {
		return nil, err
	}
	lows, err := table.NumericColumn("Low")
	if err != nil {
		return nil, err
	}
	closes, err := table.NumericColumn("Close")
	if err != nil {
		return nil, err
	}
	volumes, err := table.NumericColumn("Volume")
	if err != nil {
		return nil, err
	}

	// Adj Close falls back to Close when the column is absent
	adjCloses, adjErr := table.NumericColumn("Adj Close")
	if adjErr != nil {
		adjCloses = closes
	}

	var candles []models.MCandle
	dropped := 0

	for i := range dates {
		day, derr := time.Parse(dateLayout, dates[i])
		if derr != nil {
			dropped++
			continue
		}

		// Dividend and split rows carry text in the price columns and
		// coerce to NaN, drop them like the numeric coercion upstream.
		if math.IsNaN(opens[i]) || math.IsNaN(highs[i]) || math.IsNaN(lows[i]) ||
			math.IsNaN(closes[i]) || math.IsNaN(adjCloses[i]) {
			dropped++
			continue
		}

		volume := volumes[i]
		if math.IsNaN(volume) {
			volume = 0
		}

		candles = append(candles, models.MCandle{
			Symbol:    symbol,
			Timestamp: day.UTC().Unix(),
			Open:      opens[i],
			High:      highs[i],
			Low:       lows[i],
			Close:     closes[i],
			AdjClose:  adjCloses[i],
			Volume:    volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	if dropped > 0 {
		s.Logger.Debug("Dropped %d non-price rows for %s", dropped, symbol)
	}
	s.noteDropped(dropped)
	if len(candles) == 0 {
		return nil, helpers.NewParseError(fmt.Sprintf("history table contained no price rows for %s", symbol), nil)
	}

	return candles, nil
}

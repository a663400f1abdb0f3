package server

import (
	"fmt"
	"time"

	"stock-dashboard/src/analysis"
	"stock-dashboard/src/helpers"
	"stock-dashboard/src/models"
	"stock-dashboard/src/utils"
)

// -----------------------------------------------------------------------------
// Chart building: validate selection, load candles (memory -> db -> scrape),
// reshape into the chart payload.
// -----------------------------------------------------------------------------

const (
	chartDateLayout = "2006-01-02"
	minChartDate    = "2000-01-01"

	// A cached range is considered complete when its last candle is at most
	// this far behind the requested end. Covers weekends and single holidays.
	staleCacheSlack = 4 * 24 * time.Hour
)

// -----------------------------------------------------------------------------

// BuildChart resolves one chart selection into a payload. Empty start/end
// fall back to the configured default range.
func (s *DashboardServer) BuildChart(symbol, start, end string) (*models.MChartData, error) {
	symbol, startT, endT, err := s.validateSelection(symbol, start, end)
	if err != nil {
		return nil, err
	}

	start = startT.Format(chartDateLayout)
	end = endT.Format(chartDateLayout)

	key := utils.Key(symbol, start, end)
	if cached := s.series.Get(key); cached != nil {
		out := *cached
		out.FromCache = true
		out.MarketOpen = s.Scheduler.IsMarketOpen(symbol)
		return &out, nil
	}

	candles, fromCache, err := s.loadCandles(symbol, startT, endT)
	if err != nil {
		return nil, err
	}

	payload := s.buildPayload(symbol, start, end, candles)
	payload.FromCache = fromCache
	s.series.Put(key, payload)

	return payload, nil
}

// -----------------------------------------------------------------------------

// RefreshChart rebuilds one selection straight from the source, bypassing
// the memory cache and the stale-cache slack, and reprimes both caches.
// The live refresh loop uses it so UPDATE broadcasts carry current data.
func (s *DashboardServer) RefreshChart(symbol, start, end string) (*models.MChartData, error) {
	symbol, startT, endT, err := s.validateSelection(symbol, start, end)
	if err != nil {
		return nil, err
	}

	start = startT.Format(chartDateLayout)
	end = endT.Format(chartDateLayout)

	fresh, err := s.Source.FetchHistory(symbol, startT, endT.Add(24*time.Hour))
	if err != nil {
		return nil, helpers.NewScrapeError(fmt.Sprintf("failed to refresh history for %s", symbol), err)
	}

	if err := s.Cache.SaveCandlesBulk(fresh); err != nil {
		s.Logger.Warning("Failed to persist %d candles for %s: %v", len(fresh), symbol, err)
	}
	s.series.Invalidate(symbol)

	payload := s.buildPayload(symbol, start, end, fresh)
	s.series.Put(utils.Key(symbol, start, end), payload)

	return payload, nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) validateSelection(symbol, start, end string) (string, time.Time, time.Time, error) {
	var zero time.Time

	if symbol == "" {
		return "", zero, zero, helpers.NewValidationError("symbol is required")
	}

	if start == "" {
		start = s.Config.Source.DefaultStartDate
	}
	startT, err := time.Parse(chartDateLayout, start)
	if err != nil {
		return "", zero, zero, helpers.NewValidationError(fmt.Sprintf("invalid start date %q", start))
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	endT := now
	if end != "" {
		endT, err = time.Parse(chartDateLayout, end)
		if err != nil {
			return "", zero, zero, helpers.NewValidationError(fmt.Sprintf("invalid end date %q", end))
		}
	}

	// Clamp to the supported chart window
	minT, _ := time.Parse(chartDateLayout, minChartDate)
	if startT.Before(minT) {
		startT = minT
	}
	if endT.After(now) {
		endT = now
	}

	if endT.Before(startT) {
		return "", zero, zero, helpers.NewValidationError(
			fmt.Sprintf("start date %s is after end date %s", startT.Format(chartDateLayout), endT.Format(chartDateLayout)))
	}

	return symbol, startT, endT, nil
}

// -----------------------------------------------------------------------------

// loadCandles serves the range from the cache when it is complete enough,
// otherwise scrapes fresh rows and persists them before responding.
func (s *DashboardServer) loadCandles(symbol string, start, end time.Time) ([]models.MCandle, bool, error) {
	cached, err := s.Cache.LoadHistory(symbol, start, end)
	if err != nil {
		s.Logger.Warning("Cache load failed for %s: %v", symbol, err)
	}

	if len(cached) > 0 {
		last := time.Unix(cached[len(cached)-1].Timestamp, 0)
		if end.Sub(last) <= staleCacheSlack {
			return cached, true, nil
		}
		s.Logger.Debug("Cache for %s ends %s, refreshing tail", symbol, last.Format(chartDateLayout))
	}

	fresh, err := s.Source.FetchHistory(symbol, start, end.Add(24*time.Hour))
	if err != nil {
		// Scrape failed, a partial cached range beats an error page
		if len(cached) > 0 {
			s.Logger.Warning("Scrape failed for %s, serving stale cache: %v", symbol, err)
			return cached, true, nil
		}
		return nil, false, helpers.NewScrapeError(fmt.Sprintf("failed to fetch history for %s", symbol), err)
	}

	if err := s.Cache.SaveCandlesBulk(fresh); err != nil {
		s.Logger.Warning("Failed to persist %d candles for %s: %v", len(fresh), symbol, err)
	}
	s.series.Invalidate(symbol)

	return fresh, false, nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) buildPayload(symbol, start, end string, candles []models.MCandle) *models.MChartData {
	n := len(candles)
	payload := &models.MChartData{
		Type:       "INITIAL",
		Symbol:     symbol,
		Title:      fmt.Sprintf("Stock Prices: %s", symbol),
		Start:      start,
		End:        end,
		Dates:      make([]string, n),
		Close:      make([]float64, n),
		AdjClose:   make([]float64, n),
		Volume:     make([]float64, n),
		SMAWindow:  s.Config.Source.SMAWindow,
		MarketOpen: s.Scheduler.IsMarketOpen(symbol),
		Timestamp:  time.Now().Unix(),
	}

	for i, c := range candles {
		payload.Dates[i] = c.Date()
		payload.Close[i] = c.Close
		payload.AdjClose[i] = c.AdjClose
		payload.Volume[i] = c.Volume
	}

	payload.SMA = analysis.MovingAverage(payload.AdjClose, s.Config.Source.SMAWindow)
	payload.Stats = analysis.SeriesStats(payload.AdjClose)

	return payload
}

// -----------------------------------------------------------------------------

func statusForError(err error) int {
	switch err.(type) {
	case *helpers.ValidationError:
		return 400
	case *helpers.ScrapeError:
		return 502
	default:
		return 500
	}
}

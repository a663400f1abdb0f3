package yahoo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// Chart API fallback. The JSON endpoint survives page redesigns that break
// the HTML table scrape, at the cost of missing display-only columns.
// -----------------------------------------------------------------------------

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High   []*float64 `json:"high"`   // pointers to handle null
					Low    []*float64 `json:"low"`    // pointers to handle null
					Open   []*float64 `json:"open"`   // pointers to handle null
					Close  []*float64 `json:"close"`  // pointers to handle null
					Volume []*float64 `json:"volume"` // pointers to handle null
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

func (s *Source) fetchChartAPI(symbol string, start, end time.Time) ([]models.MCandle, error) {
	apiURL := fmt.Sprintf("%s/%s", s.Config.Source.ChartAPIURL, symbol)
	params := map[string]string{
		"interval":       "1d",
		"period1":        strconv.FormatInt(start.Unix(), 10),
		"period2":        strconv.FormatInt(end.Unix(), 10),
		"includePrePost": "false",
		"events":         "div,splits",
	}

	body, err := s.Network.Get(apiURL, params)
	if err != nil {
		return nil, fmt.Errorf("chart api fetch failed for %s: %w", symbol, err)
	}

	return s.parseChartResponse(symbol, body)
}

// -----------------------------------------------------------------------------

func (s *Source) parseChartResponse(symbol string, data []byte) ([]models.MCandle, error) {
	var resp chartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no result in response for %s", symbol)
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("no timestamps in response for %s", symbol)
	}

	quotes := result.Indicators.Quote
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote data in response for %s", symbol)
	}
	quote := quotes[0]

	// Alignment check before indexing any array
	n := len(result.Timestamp)
	if len(quote.Close) != n || len(quote.Open) != n ||
		len(quote.High) != n || len(quote.Low) != n || len(quote.Volume) != n {
		return nil, fmt.Errorf("data alignment error for %s", symbol)
	}

	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) == n {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	var candles []models.MCandle
	dropped := 0

	for i := 0; i < n; i++ {
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			dropped++
			continue
		}

		closeVal := *quote.Close[i]
		if closeVal <= 0 {
			dropped++
			continue
		}

		adj := closeVal
		if adjClose != nil && adjClose[i] != nil {
			adj = *adjClose[i]
		}

		volume := 0.0
		if quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		candles = append(candles, models.MCandle{
			Symbol:    symbol,
			Timestamp: result.Timestamp[i],
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     closeVal,
			AdjClose:  adj,
			Volume:    volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	if len(candles) == 0 {
		return nil, fmt.Errorf("no valid data points for %s", symbol)
	}

	s.noteDropped(dropped)
	s.Logger.Debug("Chart API returned %d candles for %s (%d dropped)", len(candles), symbol, dropped)
	return candles, nil
}

package interfaces

import (
	"time"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IMarketSource interface for scraping listing and price history pages.
// -----------------------------------------------------------------------------

type IMarketSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// ListMostActive scrapes the listing page and returns the ticker table
	// in page order with duplicates removed.
	ListMostActive() ([]models.MTicker, error)

	// -----------------------------------------------------------------------------

	// FetchHistory scrapes the daily price history table for one symbol
	// over [start, end]. Candles are sorted ascending by timestamp.
	FetchHistory(symbol string, start, end time.Time) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// Metrics returns timing and row counts for the last history fetch.
	Metrics() models.MFetchMetrics
}

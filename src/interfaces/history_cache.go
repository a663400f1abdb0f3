package interfaces

import (
	"time"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IHistoryCache defines the contract for the candle cache storage.
// -----------------------------------------------------------------------------

type IHistoryCache interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveCandlesBulk upserts a batch of candles.
	SaveCandlesBulk(candles []models.MCandle) error

	// -----------------------------------------------------------------------------

	// LoadHistory returns cached candles for a symbol over [start, end],
	// sorted ascending by timestamp.
	LoadHistory(symbol string, start, end time.Time) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// SaveTickers replaces the stored listing snapshot.
	SaveTickers(tickers []models.MTicker) error

	// -----------------------------------------------------------------------------

	// LoadTickers returns the stored listing snapshot in insertion order.
	LoadTickers() ([]models.MTicker, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes candles older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

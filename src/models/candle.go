package models

import "time"

// MCandle represents one daily row of the scraped price history table.
type MCandle struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"` // unix seconds, start of trading day UTC
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	AdjClose  float64 `json:"adj_close"`
	Volume    float64 `json:"volume"`
}

// -----------------------------------------------------------------------------

// Date returns the candle day formatted for display and JSON payloads.
func (c MCandle) Date() string {
	return time.Unix(c.Timestamp, 0).UTC().Format("2006-01-02")
}

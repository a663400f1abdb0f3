package models

import "time"

// MTicker is one row of the scraped most-active listing table.
type MTicker struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	FetchedAt time.Time `json:"fetched_at"`
}

package models

// -----------------------------------------------------------------------------
// Chart payload pushed to the dashboard (REST and WebSocket share the shape)
// -----------------------------------------------------------------------------

type MChartData struct {
	Type       string       `json:"type"` // "INITIAL" or "UPDATE"
	Symbol     string       `json:"symbol"`
	Title      string       `json:"title"`
	Start      string       `json:"start"`
	End        string       `json:"end"`
	Dates      []string     `json:"dates"`
	Close      []float64    `json:"close"`
	AdjClose   []float64    `json:"adj_close"`
	Volume     []float64    `json:"volume"`
	SMA        []float64    `json:"sma"`
	SMAWindow  int          `json:"sma_window"`
	Stats      MSeriesStats `json:"stats"`
	MarketOpen bool         `json:"market_open"`
	FromCache  bool         `json:"from_cache"`
	Timestamp  int64        `json:"timestamp"`
}

// MSeriesStats summarizes the adjusted close series over the selected range.
type MSeriesStats struct {
	Mean          float64 `json:"mean"`
	Std           float64 `json:"std"`
	ChangePercent float64 `json:"change_percent"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Points        int     `json:"points"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string `json:"command"`
	Symbol  string `json:"symbol"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

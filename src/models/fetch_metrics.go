package models

// MFetchMetrics represents timing and row counts for the last scrape cycle.
type MFetchMetrics struct {
	FetchTimeSeconds float64 `json:"fetch_time_seconds"`
	RowsParsed       int     `json:"rows_parsed"`
	RowsDropped      int     `json:"rows_dropped"`
}

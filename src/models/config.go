package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Window   MWindowConfig  `yaml:"window"`
	Storage  MStorageConfig `yaml:"storage"`
	Network  MNetworkConfig `yaml:"network"`
	Source   MSourceConfig  `yaml:"source"`
}

type MWindowConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	DataRetentionDays  int    `yaml:"data_retention_days"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MSourceConfig struct {
	ListingURL       string   `yaml:"listing_url"`
	HistoryURL       string   `yaml:"history_url"` // format string, symbol is interpolated
	ChartAPIURL      string   `yaml:"chart_api_url"`
	MaxListingRows   int      `yaml:"max_listing_rows"`
	DefaultSymbol    string   `yaml:"default_symbol"`
	DefaultStartDate string   `yaml:"default_start_date"`
	FallbackSymbols  []string `yaml:"fallback_symbols"`
	RefreshSeconds   int      `yaml:"refresh_seconds"`
	SMAWindow        int      `yaml:"sma_window"`
}

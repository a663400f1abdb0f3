package storage

import (
	"database/sql"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteCache struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteCache(cfg *models.MConfig, log *logger.Logger) (*SQLiteCache, error) {
	return &SQLiteCache{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open sqlite cache", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewStorageError("sqlite cache unreachable", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) createTables() error {
	// The cache survives restarts, create-if-missing instead of recreate
	query := `
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT,
			timestamp INTEGER,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			adj_close REAL,
			volume REAL,
			cached_at TIMESTAMP,
			PRIMARY KEY (symbol, timestamp)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to create candles table", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS tickers (
			position INTEGER,
			symbol TEXT PRIMARY KEY,
			name TEXT,
			price REAL,
			volume REAL,
			fetched_at TIMESTAMP
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to create tickers table", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) SaveCandlesBulk(candles []models.MCandle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candles (symbol, timestamp, open, high, low, close, adj_close, volume, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			adj_close = excluded.adj_close,
			volume = excluded.volume,
			cached_at = excluded.cached_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range candles {
		_, err := stmt.Exec(c.Symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.AdjClose, c.Volume, now)
		if err != nil {
			return helpers.NewStorageError("failed to upsert candle", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) LoadHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, timestamp, open, high, low, close, adj_close, volume
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []models.MCandle
	for rows.Next() {
		var c models.MCandle
		if err := rows.Scan(&c.Symbol, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.AdjClose, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}

	return candles, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) SaveTickers(tickers []models.MTicker) error {
	if len(tickers) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Full snapshot replace, listing order is kept via position
	if _, err := tx.Exec("DELETE FROM tickers"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tickers (position, symbol, name, price, volume, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range tickers {
		_, err := stmt.Exec(i, t.Symbol, t.Name, t.Price, t.Volume, t.FetchedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) LoadTickers() ([]models.MTicker, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, name, price, volume, fetched_at
		FROM tickers
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []models.MTicker
	for rows.Next() {
		var t models.MTicker
		if err := rows.Scan(&t.Symbol, &t.Name, &t.Price, &t.Volume, &t.FetchedAt); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}

	return tickers, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	// Retention counts from when a row was cached, not its trading day:
	// old candles are the whole point of a history chart.
	if _, err := d.DB.Exec("DELETE FROM candles WHERE cached_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup candles error: %v", err)
		return err
	}

	// Stale ticker snapshots expire with the retention policy too
	if _, err := d.DB.Exec("DELETE FROM tickers WHERE fetched_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup tickers error: %v", err)
		return err
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteCache) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

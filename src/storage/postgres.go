package storage

import (
	"database/sql"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresCache struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresCache(cfg *models.MConfig, log *logger.Logger) (*PostgresCache, error) {
	return &PostgresCache{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresCache) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open postgres cache", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewStorageError("postgres cache unreachable", err)
	}

	d.DB = db

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresCache initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresCache) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT,
			timestamp BIGINT,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			adj_close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			cached_at TIMESTAMPTZ,
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
			price DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			fetched_at TIMESTAMPTZ
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to create tickers table", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresCache) SaveCandlesBulk(candles []models.MCandle) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
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

func (d *PostgresCache) LoadHistory(symbol string, start, end time.Time) ([]models.MCandle, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, timestamp, open, high, low, close, adj_close, volume
		FROM candles
		WHERE symbol = $1 AND timestamp >= $2 AND timestamp <= $3
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

func (d *PostgresCache) SaveTickers(tickers []models.MTicker) error {
	if len(tickers) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tickers"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tickers (position, symbol, name, price, volume, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
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

func (d *PostgresCache) LoadTickers() ([]models.MTicker, error) {
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

func (d *PostgresCache) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	if _, err := d.DB.Exec("DELETE FROM candles WHERE cached_at < $1", cutoff); err != nil {
		d.Logger.Error("Cleanup candles error: %v", err)
		return err
	}

	if _, err := d.DB.Exec("DELETE FROM tickers WHERE fetched_at < $1", cutoff); err != nil {
		d.Logger.Error("Cleanup tickers error: %v", err)
		return err
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresCache) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

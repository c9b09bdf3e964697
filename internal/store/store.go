package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"StockPulse/internal/model"

	_ "modernc.org/sqlite"
)

// timeFormat is the lexicographically sortable layout used for all stored
// timestamps, so range scans and day-prefix lookups work on the text column.
const timeFormat = "2006-01-02T15:04:05"

// Store persists candle samples to SQLite and derives the net money flow
// indicator at insert time. A single mutex serializes writers so the
// "read previous same-day row, then write" sequence is atomic per symbol/day.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) the SQLite database and runs migrations.
// A failure here is fatal to startup; there is no degraded mode.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open", err)
	}

	// WAL mode for better concurrent read performance (display reads while the scheduler writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("set WAL mode", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, storageErr("migrate", err)
	}

	log.Printf("[INFO] sample store opened: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_candles (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT    NOT NULL,
			timestamp      TEXT    NOT NULL,
			open_price     REAL    NOT NULL,
			high_price     REAL    NOT NULL,
			low_price      REAL    NOT NULL,
			close_price    REAL    NOT NULL,
			volume         INTEGER NOT NULL,
			avg_price      INTEGER NOT NULL,
			money_flow     INTEGER NOT NULL,
			net_money_flow INTEGER NOT NULL,
			created_at     TEXT    NOT NULL,
			UNIQUE(symbol, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_timestamp ON stock_candles(symbol, timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Insert writes one candle and its derived money-flow fields. It returns
// true when a new row was written and false when the (symbol, timestamp)
// pair already exists; duplicates are a silent no-op.
//
// Derived values keep the historical integer scaling: volume is divided by
// 1000 (truncating) before the money-flow product, and avg price, money
// flow and net money flow are all rounded to integers. Recomputing in full
// floating point would diverge from data already on disk.
func (s *Store) Insert(c model.Candle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, storageErr("begin insert", err)
	}
	defer tx.Rollback()

	avgPrice := int64(math.Round((c.High + c.Low) / 2))
	scaledVol := c.Volume / 1000
	moneyFlow := int64(math.Round(float64(avgPrice) * float64(scaledVol) / 1000))

	day := c.Timestamp.Format("2006-01-02")
	prevAvg, prevNMF, hasPrev, err := prevSameDayRow(tx, c.Symbol, day)
	if err != nil {
		return false, storageErr("query prior row", err)
	}

	var nmf int64
	switch {
	case !hasPrev:
		// First entry of the day: sign follows the candle's own direction.
		if c.Close < c.Open {
			nmf = -moneyFlow
		} else {
			nmf = moneyFlow
		}
	case avgPrice > prevAvg:
		nmf = moneyFlow + prevNMF
	case avgPrice < prevAvg:
		nmf = -moneyFlow + prevNMF
	default:
		// Equal avg prices: the contribution inherits the prior sign.
		if prevNMF >= 0 {
			nmf = moneyFlow + prevNMF
		} else {
			nmf = -moneyFlow + prevNMF
		}
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := tx.Exec(`INSERT OR IGNORE INTO stock_candles
		(symbol, timestamp, open_price, high_price, low_price, close_price,
		 volume, avg_price, money_flow, net_money_flow, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.Symbol, c.Timestamp.Format(timeFormat),
		c.Open, c.High, c.Low, c.Close,
		c.Volume, avgPrice, moneyFlow, nmf,
		createdAt.Format(timeFormat),
	)
	if err != nil {
		return false, storageErr("insert", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("insert", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storageErr("commit insert", err)
	}
	return rows > 0, nil
}

// prevSameDayRow returns the most recent stored row for (symbol, day).
func prevSameDayRow(tx *sql.Tx, symbol, day string) (prevAvg, prevNMF int64, ok bool, err error) {
	err = tx.QueryRow(`SELECT avg_price, net_money_flow FROM stock_candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC LIMIT 1`,
		symbol, day+"T00:00:00", day+"T23:59:59",
	).Scan(&prevAvg, &prevNMF)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return prevAvg, prevNMF, true, nil
}

const sampleColumns = `symbol, timestamp, open_price, high_price, low_price, close_price,
	volume, avg_price, money_flow, net_money_flow, created_at`

func scanSample(row interface{ Scan(...any) error }) (model.StoredSample, error) {
	var smp model.StoredSample
	var ts, createdAt string
	if err := row.Scan(&smp.Symbol, &ts, &smp.Open, &smp.High, &smp.Low, &smp.Close,
		&smp.Volume, &smp.AvgPrice, &smp.MoneyFlow, &smp.NetMoneyFlow, &createdAt); err != nil {
		return model.StoredSample{}, err
	}
	var err error
	if smp.Timestamp, err = time.Parse(timeFormat, ts); err != nil {
		return model.StoredSample{}, err
	}
	if smp.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return model.StoredSample{}, err
	}
	return smp, nil
}

// Latest returns the most recent sample for a symbol, or nil when none exists.
func (s *Store) Latest(symbol string) (*model.StoredSample, error) {
	row := s.db.QueryRow(`SELECT `+sampleColumns+` FROM stock_candles
		WHERE symbol = ? ORDER BY timestamp DESC LIMIT 1`, symbol)
	smp, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("latest", err)
	}
	return &smp, nil
}

// Range returns up to limit samples for a symbol, most recent first.
func (s *Store) Range(symbol string, limit int) ([]model.StoredSample, error) {
	rows, err := s.db.Query(`SELECT `+sampleColumns+` FROM stock_candles
		WHERE symbol = ? ORDER BY timestamp DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, storageErr("range", err)
	}
	defer rows.Close()

	var samples []model.StoredSample
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, storageErr("range scan", err)
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("range", err)
	}
	return samples, nil
}

// Symbols returns the distinct symbols present in the store, sorted.
func (s *Store) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM stock_candles ORDER BY symbol`)
	if err != nil {
		return nil, storageErr("symbols", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, storageErr("symbols scan", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("symbols", err)
	}
	return symbols, nil
}

// TotalCount returns the number of stored samples.
func (s *Store) TotalCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM stock_candles`).Scan(&n); err != nil {
		return 0, storageErr("total count", err)
	}
	return n, nil
}

// PurgeOlderThan hard-deletes all samples with timestamps before cutoff and
// returns the number of rows removed.
func (s *Store) PurgeOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM stock_candles WHERE timestamp < ?`,
		cutoff.Format(timeFormat))
	if err != nil {
		return 0, storageErr("purge", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("purge", err)
	}
	return deleted, nil
}

// Stats summarizes the store contents.
func (s *Store) Stats() (*model.StoreStats, error) {
	stats := &model.StoreStats{SymbolCounts: make(map[string]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM stock_candles`).Scan(&stats.TotalRecords); err != nil {
		return nil, storageErr("stats", err)
	}

	rows, err := s.db.Query(`SELECT symbol, COUNT(*) FROM stock_candles GROUP BY symbol`)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sym string
		var n int
		if err := rows.Scan(&sym, &n); err != nil {
			return nil, storageErr("stats scan", err)
		}
		stats.SymbolCounts[sym] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", err)
	}

	var minTS, maxTS sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(timestamp), MAX(timestamp) FROM stock_candles`).Scan(&minTS, &maxTS); err != nil {
		return nil, storageErr("stats", err)
	}
	if minTS.Valid {
		stats.OldestTimestamp, _ = time.Parse(timeFormat, minTS.String)
	}
	if maxTS.Valid {
		stats.NewestTimestamp, _ = time.Parse(timeFormat, maxTS.String)
	}

	stats.DatabaseSize = s.fileSize()
	return stats, nil
}

func (s *Store) fileSize() string {
	fi, err := os.Stat(s.path)
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f MB", float64(fi.Size())/(1024*1024))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	log.Println("[INFO] closing sample store")
	return s.db.Close()
}

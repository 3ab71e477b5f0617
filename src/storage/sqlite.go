package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/logger"
	"power-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// SQLiteReadingStore keeps raw readings in a single table keyed
// node/year/month/day/time_key with the record as a JSON payload.
type SQLiteReadingStore struct {
	Path     string
	DB       *sql.DB
	Location *time.Location
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteReadingStore(path string, loc *time.Location, log *logger.Logger) *SQLiteReadingStore {
	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteReadingStore{
		Path:     path,
		Location: loc,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) Name() string { return "sqlite" }

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) Initialize() error {
	db, err := sql.Open("sqlite", d.Path)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	// an in-memory database only lives as long as its connection
	if d.Path == ":memory:" {
		db.SetMaxOpenConns(1)
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

func (d *SQLiteReadingStore) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS readings (
			node TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			day INTEGER NOT NULL,
			time_key TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (node, year, month, day, time_key)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create readings table", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Reset drops every stored reading and recreates the schema.
func (d *SQLiteReadingStore) Reset() error {
	if _, err := d.DB.Exec("DROP TABLE IF EXISTS readings"); err != nil {
		return helpers.NewDatabaseError("drop readings table", err)
	}
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) FetchDay(ctx context.Context, node string, day time.Time) (models.MRawDay, error) {
	y, m, dd := dayParts(day)
	rows, err := d.DB.QueryContext(ctx,
		`SELECT time_key, payload FROM readings WHERE node = ? AND year = ? AND month = ? AND day = ?`,
		node, y, m, dd)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError(fmt.Sprintf("sqlite fetch %s %04d-%02d-%02d", node, y, m, dd), err)
	}
	raw, err := scanRawDay(rows)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("sqlite scan readings", err)
	}
	return raw, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) SaveDay(ctx context.Context, node string, day time.Time, raw models.MRawDay) error {
	if len(raw) == 0 {
		return nil
	}
	payloads, err := encodePayloads(raw)
	if err != nil {
		return err
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin save day", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (node, year, month, day, time_key, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (node, year, month, day, time_key) DO UPDATE SET
			payload = excluded.payload
	`)
	if err != nil {
		return helpers.NewDatabaseError("prepare save day", err)
	}
	defer stmt.Close()

	y, m, dd := dayParts(day)
	for timeKey, payload := range payloads {
		if _, err := stmt.ExecContext(ctx, node, y, m, dd, timeKey, string(payload)); err != nil {
			return helpers.NewDatabaseError("insert reading "+timeKey, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) ListDays(ctx context.Context, node string) ([]time.Time, error) {
	rows, err := d.DB.QueryContext(ctx,
		`SELECT DISTINCT year, month, day FROM readings WHERE node = ? ORDER BY year, month, day`, node)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("sqlite list days", err)
	}
	return scanDays(rows, d.Location)
}

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) ListNodes(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT DISTINCT node FROM readings ORDER BY node`)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("sqlite list nodes", err)
	}
	return scanStrings(rows)
}

// -----------------------------------------------------------------------------

// CleanupOldData deletes days older than retentionDays. Zero keeps everything.
func (d *SQLiteReadingStore) CleanupOldData(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().In(d.Location).AddDate(0, 0, -retentionDays)

	d.Logger.Info("Cleaning up readings older than %d days (before %s)...", retentionDays, cutoff.Format("2006-01-02"))

	res, err := d.DB.ExecContext(ctx,
		`DELETE FROM readings WHERE (year * 10000 + month * 100 + day) < ?`, dayOrdinal(cutoff))
	if err != nil {
		return 0, helpers.NewDatabaseError("cleanup readings", err)
	}
	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup completed (%d readings removed)", n)
	return n, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteReadingStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

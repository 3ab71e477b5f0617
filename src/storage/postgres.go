package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/logger"
	"power-observer/src/models"

	_ "github.com/lib/pq"
)

var schemaSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

// -----------------------------------------------------------------------------

// PostgresReadingStore mirrors SQLiteReadingStore inside a dedicated schema.
type PostgresReadingStore struct {
	DSN      string
	DB       *sql.DB
	Schema   string
	Location *time.Location
	Logger   *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresReadingStore names the schema after the service (lowercased, with
// anything outside [a-z0-9_] replaced by underscores).
func NewPostgresReadingStore(dsn, serviceName string, loc *time.Location, log *logger.Logger) *PostgresReadingStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresReadingStore{
		DSN:      dsn,
		Schema:   SchemaName(serviceName),
		Location: loc,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// SchemaName converts a service name into a safe Postgres identifier.
func SchemaName(serviceName string) string {
	name := schemaSanitizer.ReplaceAllString(strings.ToLower(serviceName), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "power_observer"
	}
	return name
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) Name() string { return "postgres" }

func (d *PostgresReadingStore) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) Initialize() error {
	db, err := sql.Open("postgres", d.DSN)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}
	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError("create schema "+d.Schema, err)
	}
	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresReadingStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			node TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			day INTEGER NOT NULL,
			time_key TEXT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (node, year, month, day, time_key)
		);
	`, d.table("readings"))
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create readings table", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			node TEXT PRIMARY KEY,
			type TEXT,
			ref_schema TEXT,
			ref_table TEXT,
			ref_field TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.table("nodes"))
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create nodes table", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Reset drops both tables and recreates them.
func (d *PostgresReadingStore) Reset() error {
	for _, t := range []string{"readings", "nodes"} {
		if _, err := d.DB.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, d.table(t))); err != nil {
			return helpers.NewDatabaseError("drop "+t, err)
		}
	}
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) FetchDay(ctx context.Context, node string, day time.Time) (models.MRawDay, error) {
	y, m, dd := dayParts(day)
	query := fmt.Sprintf(`SELECT time_key, payload FROM %s WHERE node = $1 AND year = $2 AND month = $3 AND day = $4`, d.table("readings"))
	rows, err := d.DB.QueryContext(ctx, query, node, y, m, dd)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError(fmt.Sprintf("postgres fetch %s %04d-%02d-%02d", node, y, m, dd), err)
	}
	raw, err := scanRawDay(rows)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("postgres scan readings", err)
	}
	return raw, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) SaveDay(ctx context.Context, node string, day time.Time, raw models.MRawDay) error {
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

	query := fmt.Sprintf(`
		INSERT INTO %s (node, year, month, day, time_key, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (node, year, month, day, time_key) DO UPDATE SET
			payload = EXCLUDED.payload
	`, d.table("readings"))
	stmt, err := tx.PrepareContext(ctx, query)
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

	if err := tx.Commit(); err != nil {
		return helpers.NewDatabaseError("commit save day", err)
	}
	return d.RegisterNodes(ctx, []NodeMetadata{{Node: node, Type: NodeTypeDirect}})
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) ListDays(ctx context.Context, node string) ([]time.Time, error) {
	query := fmt.Sprintf(`SELECT DISTINCT year, month, day FROM %s WHERE node = $1 ORDER BY year, month, day`, d.table("readings"))
	rows, err := d.DB.QueryContext(ctx, query, node)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("postgres list days", err)
	}
	return scanDays(rows, d.Location)
}

// -----------------------------------------------------------------------------

// ListNodes returns the registered direct nodes.
func (d *PostgresReadingStore) ListNodes(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT node FROM %s WHERE type = $1 ORDER BY node`, d.table("nodes"))
	rows, err := d.DB.QueryContext(ctx, query, NodeTypeDirect)
	if err != nil {
		return nil, helpers.NewUpstreamUnavailableError("postgres list nodes", err)
	}
	return scanStrings(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) CleanupOldData(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().In(d.Location).AddDate(0, 0, -retentionDays)

	d.Logger.Info("Cleaning up readings older than %d days (before %s)...", retentionDays, cutoff.Format("2006-01-02"))

	query := fmt.Sprintf(`DELETE FROM %s WHERE (year * 10000 + month * 100 + day) < $1`, d.table("readings"))
	res, err := d.DB.ExecContext(ctx, query, dayOrdinal(cutoff))
	if err != nil {
		return 0, helpers.NewDatabaseError("cleanup readings", err)
	}
	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup completed (%d readings removed)", n)
	return n, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresReadingStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"power-observer/src/models"
)

// -----------------------------------------------------------------------------

// dayParts splits a day into the year/month/day columns used by both SQL stores.
func dayParts(day time.Time) (int, int, int) {
	return day.Year(), int(day.Month()), day.Day()
}

// -----------------------------------------------------------------------------

// dayOrdinal encodes a day as YYYYMMDD so it can be compared in SQL.
func dayOrdinal(day time.Time) int {
	y, m, d := dayParts(day)
	return y*10000 + m*100 + d
}

// -----------------------------------------------------------------------------

// scanRawDay reads (time_key, payload) rows. A payload that is not valid JSON
// is kept as its raw string so decoding reports it as a shape error.
func scanRawDay(rows *sql.Rows) (models.MRawDay, error) {
	defer rows.Close()

	raw := make(models.MRawDay)
	for rows.Next() {
		var timeKey string
		var payload []byte
		if err := rows.Scan(&timeKey, &payload); err != nil {
			return nil, err
		}
		var value interface{}
		if err := json.Unmarshal(payload, &value); err != nil {
			raw[timeKey] = string(payload)
			continue
		}
		raw[timeKey] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return raw, nil
}

// -----------------------------------------------------------------------------

func scanDays(rows *sql.Rows, loc *time.Location) ([]time.Time, error) {
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var y, m, d int
		if err := rows.Scan(&y, &m, &d); err != nil {
			return nil, err
		}
		days = append(days, time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc))
	}
	return days, rows.Err()
}

// -----------------------------------------------------------------------------

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

// encodePayloads marshals every record of a raw day once, before a transaction opens.
func encodePayloads(raw models.MRawDay) (map[string][]byte, error) {
	out := make(map[string][]byte, len(raw))
	for timeKey, value := range raw {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", timeKey, err)
		}
		out[timeKey] = b
	}
	return out, nil
}

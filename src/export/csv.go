package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"power-observer/src/models"
	"power-observer/src/utils"
)

// Header is the fixed column order of exported readings.
var Header = []string{"Node", "Timestamp", "Voltage", "Current", "Power", "Frequency", "Power Factor", "Is Anomaly"}

// CSVWriter renders readings as comma separated rows.
type CSVWriter struct {
	Location *time.Location
}

func NewCSVWriter(loc *time.Location) *CSVWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVWriter{Location: loc}
}

// -----------------------------------------------------------------------------

// Write emits the header and one row per reading in ascending time order.
func (c *CSVWriter) Write(w io.Writer, readings []models.MReading) error {
	rows := make([]models.MReading, len(readings))
	copy(rows, readings)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(c.row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// -----------------------------------------------------------------------------

func (c *CSVWriter) row(r models.MReading) []string {
	flag := "No"
	if r.IsAnomaly {
		flag = "Yes"
	}
	return []string{
		r.NodeID,
		r.Timestamp.In(c.Location).Format(utils.TimestampLayout),
		FormatFloat(r.Voltage),
		FormatFloat(r.Current),
		FormatFloat(r.Power),
		FormatFloat(r.Frequency),
		FormatFloat(r.PowerFactor),
		flag,
	}
}

// -----------------------------------------------------------------------------

// FormatFloat prints the shortest representation of v with at least one decimal.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// -----------------------------------------------------------------------------

// Filename builds the attachment name for a node export.
func Filename(node string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", node, start.Format(utils.DateLayout), end.Format(utils.DateLayout))
}

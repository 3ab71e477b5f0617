package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/models"
	"power-observer/src/utils"

	"github.com/google/uuid"
)

// readingNamespace scopes the deterministic reading ids.
var readingNamespace = uuid.MustParse("6f1c3f0e-8d5e-4c57-9a57-2f0b7f3a9a10")

// wireFields maps normalized parameters to the field names accepted on the wire.
// The first name is the canonical one written by SaveDay.
var wireFields = map[models.Parameter][]string{
	models.ParamVoltage:     {"voltage"},
	models.ParamCurrent:     {"current"},
	models.ParamPower:       {"power"},
	models.ParamFrequency:   {"frequency"},
	models.ParamPowerFactor: {"powerFactor", "power_factor"},
}

// -----------------------------------------------------------------------------

// ReadingID derives a stable id so the same stored sample always gets the same id.
func ReadingID(node string, day time.Time, timeKey string) string {
	return uuid.NewSHA1(readingNamespace, []byte(node+"|"+utils.DayKey(day)+"|"+timeKey)).String()
}

// -----------------------------------------------------------------------------

// DecodeDay converts one raw day into readings sorted by timestamp, with
// timestamps built in loc. Records that cannot be interpreted are skipped and
// reported as DataShapeErrors; the rest of the day is still decoded.
func DecodeDay(node string, day time.Time, loc *time.Location, raw models.MRawDay) ([]models.MReading, []error) {
	if loc == nil {
		loc = day.Location()
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	readings := make([]models.MReading, 0, len(raw))
	var problems []error

	for timeKey, value := range raw {
		r, err := decodeRecord(node, day, timeKey, value)
		if err != nil {
			problems = append(problems, helpers.NewDataShapeError(
				fmt.Sprintf("node %s day %s record %s skipped", node, utils.DayKey(day), timeKey), err))
			continue
		}
		readings = append(readings, r)
	}

	sort.Slice(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings, problems
}

// -----------------------------------------------------------------------------

func decodeRecord(node string, day time.Time, timeKey string, value interface{}) (models.MReading, error) {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return models.MReading{}, fmt.Errorf("record is %T, not an object", value)
	}

	ts, err := utils.ParseTimeOfDay(day, timeKey)
	if err != nil {
		return models.MReading{}, err
	}

	r := models.MReading{
		ID:        ReadingID(node, day, timeKey),
		NodeID:    node,
		Timestamp: ts,
	}

	present := 0
	for _, p := range models.MonitoredParameters {
		v, found, err := lookupNumber(fields, wireFields[p])
		if err != nil {
			return models.MReading{}, fmt.Errorf("%s: %w", p, err)
		}
		if !found {
			r.Absent = r.Absent.Add(p)
			continue
		}
		present++
		switch p {
		case models.ParamVoltage:
			r.Voltage = v
		case models.ParamCurrent:
			r.Current = v
		case models.ParamPower:
			r.Power = v
		case models.ParamFrequency:
			r.Frequency = v
		case models.ParamPowerFactor:
			r.PowerFactor = v
		}
	}
	if present == 0 {
		return models.MReading{}, fmt.Errorf("no electrical parameters present")
	}

	flag, err := coerceBool(fields["is_anomaly"])
	if err != nil {
		return models.MReading{}, fmt.Errorf("is_anomaly: %w", err)
	}
	r.IsAnomaly = flag

	if loc, ok := fields["location"].(string); ok {
		r.Location = loc
	}
	return r, nil
}

// -----------------------------------------------------------------------------

func lookupNumber(fields map[string]interface{}, names []string) (float64, bool, error) {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		f, err := coerceFloat(v)
		return f, err == nil, err
	}
	return 0, false, nil
}

// -----------------------------------------------------------------------------

func coerceFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("empty numeric string")
		}
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("unsupported numeric type %T", v)
}

// -----------------------------------------------------------------------------

func coerceBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case float64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("unsupported boolean value %v", v)
}

// -----------------------------------------------------------------------------

// EncodeReading renders a reading in the wire format (used by writers).
func EncodeReading(r models.MReading) map[string]interface{} {
	out := map[string]interface{}{
		"voltage":     r.Voltage,
		"current":     r.Current,
		"power":       r.Power,
		"frequency":   r.Frequency,
		"powerFactor": r.PowerFactor,
		"is_anomaly":  r.IsAnomaly,
	}
	if r.Location != "" {
		out["location"] = r.Location
	}
	return out
}

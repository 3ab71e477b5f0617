package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"power-observer/src/helpers"
	"power-observer/src/models"
	"power-observer/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// writeError maps the error taxonomy onto HTTP status codes.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case helpers.IsClientInput(err):
		status = http.StatusBadRequest
	case helpers.IsUpstreamUnavailable(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		s.Logger.Warning("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "request_id": c.GetString("request_id")})
}

// -----------------------------------------------------------------------------

// parseFilter reads <param>_min / <param>_max and anomaly_only.
func parseFilter(c *gin.Context) (models.MReadingFilter, error) {
	filter := models.MReadingFilter{}
	for _, p := range models.MonitoredParameters {
		lo, err := optionalFloat(c, string(p)+"_min")
		if err != nil {
			return filter, err
		}
		hi, err := optionalFloat(c, string(p)+"_max")
		if err != nil {
			return filter, err
		}
		if lo == nil && hi == nil {
			continue
		}
		if lo != nil && hi != nil && *lo > *hi {
			return filter, helpers.NewClientInputError("%s_min exceeds %s_max", p, p)
		}
		if filter.Ranges == nil {
			filter.Ranges = make(map[models.Parameter]models.MRange)
		}
		filter.Ranges[p] = models.MRange{Min: lo, Max: hi}
	}

	anomalyOnly, err := parseBool(c, "anomaly_only", false)
	if err != nil {
		return filter, err
	}
	filter.AnomalyOnly = anomalyOnly
	return filter, nil
}

// -----------------------------------------------------------------------------

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, helpers.NewClientInputError("invalid %s %q", key, raw)
	}
	return &v, nil
}

// -----------------------------------------------------------------------------

func parseBool(c *gin.Context, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, helpers.NewClientInputError("invalid %s %q: expected true or false", key, raw)
	}
	return v, nil
}

// -----------------------------------------------------------------------------

// parseInt reads a non-negative integer parameter.
func parseInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def, helpers.NewClientInputError("invalid %s %q: expected a non-negative integer", key, raw)
	}
	return v, nil
}

// -----------------------------------------------------------------------------

func requireNode(c *gin.Context) (string, error) {
	node := strings.TrimSpace(c.Query("node"))
	if node == "" {
		return "", helpers.NewClientInputError("node is required")
	}
	return node, nil
}

// -----------------------------------------------------------------------------

// parseOptionalRange returns nil bounds when neither date is given.
func parseOptionalRange(c *gin.Context, loc *time.Location) (*time.Time, *time.Time, error) {
	startRaw, endRaw := c.Query("start_date"), c.Query("end_date")
	if startRaw == "" && endRaw == "" {
		return nil, nil, nil
	}
	start, err := utils.ParseDate("start_date", startRaw, loc)
	if err != nil {
		return nil, nil, err
	}
	end, err := utils.ParseDate("end_date", endRaw, loc)
	if err != nil {
		return nil, nil, err
	}
	return &start, &end, nil
}

// -----------------------------------------------------------------------------

// splitNodes parses a comma separated node list, dropping blanks and duplicates.
func splitNodes(raw string) []string {
	var out []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.TrimSpace(n)
		if n != "" && !contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

func dayKeys(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = utils.DayKey(d)
	}
	return out
}

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

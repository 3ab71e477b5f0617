package server

import (
	"net/http"
	"strings"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/classifier"
	"power-observer/src/export"
	"power-observer/src/fetcher"
	"power-observer/src/helpers"
	"power-observer/src/interfaces"
	"power-observer/src/models"
	"power-observer/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

func (s *HTTPServer) getHealth(c *gin.Context) {
	items := 0
	if s.Cache != nil {
		items = s.Cache.Stats().TotalItems
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"connections":  s.Connections(),
		"cache_items":  items,
		"store":        s.Store.Name(),
		"classifier":   s.Classifier.Enabled(),
		"generated_at": time.Now().Unix(),
	})
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"presets":                 s.Assembler.Detector.Presets(),
		"point_budget":            s.Assembler.Config.PointBudget,
		"sample_interval_seconds": s.Assembler.Config.SampleIntervalSeconds,
		"resolutions":             []string{models.ResolutionMinute, models.ResolutionHour, models.ResolutionDay},
		"anomaly_types":           classifier.Labels,
		"interruption": gin.H{
			"voltage_threshold":    s.Assembler.Interruptions.VoltageThreshold,
			"min_duration_seconds": s.Assembler.Interruptions.MinDuration.Seconds(),
		},
	})
}

// -----------------------------------------------------------------------------
// Nodes
// -----------------------------------------------------------------------------

func (s *HTTPServer) getNodes(c *gin.Context) {
	if lister, ok := s.Store.(interfaces.INodeLister); ok {
		nodes, err := lister.ListNodes(c.Request.Context())
		if err != nil {
			s.Logger.Warning("Listing nodes from %s failed, using fallback: %v", s.Store.Name(), err)
		} else if len(nodes) > 0 {
			c.JSON(http.StatusOK, gin.H{"nodes": nodes, "source": s.Store.Name()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"nodes": s.Config.Fetch.FallbackNodes, "source": "fallback"})
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) nodeDays(c *gin.Context, node string) {
	index, ok := s.Store.(interfaces.IDateIndex)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store " + s.Store.Name() + " has no date index"})
		return
	}
	days, err := index.ListDays(c.Request.Context(), node)
	if err != nil {
		s.writeError(c, helpers.NewUpstreamUnavailableError("listing days of "+node, err))
		return
	}

	out := models.MNodeDateRange{Node: node, Days: dayKeys(days)}
	if len(days) > 0 {
		out.Earliest = out.Days[0]
		out.Latest = out.Days[len(out.Days)-1]
	}
	c.JSON(http.StatusOK, out)
}

func (s *HTTPServer) getNodeDays(c *gin.Context) {
	s.nodeDays(c, strings.TrimSpace(c.Param("node")))
}

func (s *HTTPServer) getNodeDateRange(c *gin.Context) {
	node, err := requireNode(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.nodeDays(c, node)
}

// -----------------------------------------------------------------------------
// Readings
// -----------------------------------------------------------------------------

func (s *HTTPServer) getReadings(c *gin.Context) {
	node, err := requireNode(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	start, end, err := parseOptionalRange(c, s.Location)
	if err != nil {
		s.writeError(c, err)
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	limit, err := parseInt(c, "limit", s.Config.Fetch.DefaultLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	useCache, err := parseBool(c, "use_cache", true)
	if err != nil {
		s.writeError(c, err)
		return
	}
	preset := c.DefaultQuery("preset", analysis.PresetGeneral)
	thresholds, err := s.Assembler.Detector.Preset(preset)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, readings, err := s.fetchFlagged(c, fetcher.FetchRequest{
		Node:     node,
		Start:    start,
		End:      end,
		Filter:   filter,
		Limit:    limit,
		UseCache: useCache,
	}, thresholds)
	if err != nil {
		s.writeError(c, err)
		return
	}

	degraded := res.DegradedDays
	if degraded == nil {
		degraded = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"node":           node,
		"preset":         preset,
		"count":          len(readings),
		"days_requested": res.DaysRequested,
		"days_with_data": res.DaysWithData,
		"degraded_days":  degraded,
		"cache_hits":     res.CacheHits,
		"cache_misses":   res.CacheMisses,
		"readings":       readings,
	})
}

// -----------------------------------------------------------------------------

// fetchFlagged loads req and replaces the stored anomaly flags with those of
// thresholds. anomaly_only and the limit apply to the new flags.
func (s *HTTPServer) fetchFlagged(c *gin.Context, req fetcher.FetchRequest, thresholds models.MThresholdSet) (*fetcher.FetchResult, []models.MReading, error) {
	anomalyOnly, limit := req.Filter.AnomalyOnly, req.Limit
	req.Filter = models.MReadingFilter{Ranges: req.Filter.Ranges}
	if anomalyOnly {
		req.Limit = 0
	}

	res, err := s.Source.Fetch(c.Request.Context(), req)
	if err != nil {
		return nil, nil, err
	}
	readings := s.Assembler.Detector.Evaluate(res.Readings, thresholds)
	if anomalyOnly {
		readings = fetcher.ApplyFilter(readings, models.MReadingFilter{AnomalyOnly: true})
		if limit > 0 && len(readings) > limit {
			readings = readings[:limit]
		}
	}
	return res, readings, nil
}

// -----------------------------------------------------------------------------

// getAnomalies flags readings with a preset (general by default), keeps the
// anomalies and labels them with the classifier.
func (s *HTTPServer) getAnomalies(c *gin.Context) {
	node, err := requireNode(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	start, end, err := parseOptionalRange(c, s.Location)
	if err != nil {
		s.writeError(c, err)
		return
	}
	preset := c.DefaultQuery("preset", analysis.PresetGeneral)
	thresholds, err := s.Assembler.Detector.Preset(preset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	limit, err := parseInt(c, "limit", s.Config.Fetch.DefaultLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.Source.Fetch(c.Request.Context(), fetcher.FetchRequest{Node: node, Start: start, End: end, UseCache: true})
	if err != nil {
		s.writeError(c, err)
		return
	}

	flagged := s.Assembler.Detector.Evaluate(res.Readings, thresholds)
	anomalies := s.Classifier.ClassifyBatch(flagged)
	if limit > 0 && len(anomalies) > limit {
		anomalies = anomalies[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"node":      node,
		"preset":    preset,
		"total":     len(flagged),
		"count":     len(anomalies),
		"anomalies": anomalies,
	})
}

// -----------------------------------------------------------------------------
// Analysis
// -----------------------------------------------------------------------------

func (s *HTTPServer) getTimeSeries(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	maxPoints, err := parseInt(c, "max_points", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out, err := s.Assembler.TimeSeries(c.Request.Context(), analysis.TimeSeriesRequest{
		Node:      strings.TrimSpace(c.Query("node")),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Filter:    filter,
		MaxPoints: maxPoints,
		Preset:    c.Query("preset"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) getDashboard(c *gin.Context) {
	budget, err := parseInt(c, "point_budget", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	payload, err := s.Assembler.Build(c.Request.Context(), analysis.DashboardRequest{
		Node:        strings.TrimSpace(c.Query("node")),
		StartDate:   c.Query("start_date"),
		EndDate:     c.Query("end_date"),
		Preset:      c.Query("preset"),
		PointBudget: budget,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) getCompare(c *gin.Context) {
	nodes := splitNodes(c.Query("nodes"))
	limit, err := parseInt(c, "limit", s.Config.Fetch.DefaultLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out, err := s.Assembler.Compare(c.Request.Context(), nodes, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": out})
}

// -----------------------------------------------------------------------------

// getExplain attributes the classifier decision for the reading of node at date+time.
func (s *HTTPServer) getExplain(c *gin.Context) {
	if !s.Classifier.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "classifier model not loaded"})
		return
	}
	node, err := requireNode(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	day, err := utils.ParseDate("date", c.Query("date"), s.Location)
	if err != nil {
		s.writeError(c, err)
		return
	}
	at, err := utils.ParseTimeOfDay(day, c.Query("time"))
	if err != nil {
		s.writeError(c, helpers.NewClientInputError("invalid time: %v", err))
		return
	}

	res, err := s.Source.Fetch(c.Request.Context(), fetcher.FetchRequest{Node: node, Start: &day, End: &day, UseCache: true})
	if err != nil {
		s.writeError(c, err)
		return
	}
	for _, r := range res.Readings {
		if !r.Timestamp.Equal(at) {
			continue
		}
		exp, err := s.Classifier.Explain(r)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, exp)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no reading for " + node + " at " + at.Format(utils.TimestampLayout)})
}

// -----------------------------------------------------------------------------
// Export
// -----------------------------------------------------------------------------

func (s *HTTPServer) getExportCSV(c *gin.Context) {
	node, err := requireNode(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	start, err := utils.ParseDate("start_date", c.Query("start_date"), s.Location)
	if err != nil {
		s.writeError(c, err)
		return
	}
	end, err := utils.ParseDate("end_date", c.Query("end_date"), s.Location)
	if err != nil {
		s.writeError(c, err)
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	thresholds, err := s.Assembler.Detector.Preset(c.DefaultQuery("preset", analysis.PresetDashboard))
	if err != nil {
		s.writeError(c, err)
		return
	}

	_, readings, err := s.fetchFlagged(c, fetcher.FetchRequest{Node: node, Start: &start, End: &end, Filter: filter, UseCache: true}, thresholds)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(node, start, end)+`"`)
	c.Status(http.StatusOK)
	if err := s.Exporter.Write(c.Writer, readings); err != nil {
		s.Logger.Error("CSV export for %s failed mid-stream: %v", node, err)
	}
}

// -----------------------------------------------------------------------------
// Cache administration
// -----------------------------------------------------------------------------

func (s *HTTPServer) getCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Cache.Stats())
}

func (s *HTTPServer) getCacheNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": s.Cache.ListCachedNodes()})
}

func (s *HTTPServer) deleteCache(c *gin.Context) {
	node := strings.TrimSpace(c.Query("node"))
	cleared := s.Cache.Clear(node)
	s.Logger.Info("Cache cleared: node=%q entries=%d", node, cleared)
	c.JSON(http.StatusOK, gin.H{
		"cleared":         cleared,
		"node":            node,
		"remaining_items": s.Cache.Stats().TotalItems,
	})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"power-observer/src/analysis"
	"power-observer/src/classifier"
	"power-observer/src/export"
	"power-observer/src/interfaces"
	"power-observer/src/logger"
	"power-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// HTTPServer
// -----------------------------------------------------------------------------

// Dependencies are the collaborators the query surface is built on.
type Dependencies struct {
	Store      interfaces.IReadingStore
	Source     analysis.ReadingSource
	Cache      interfaces.IReadingCache
	Assembler  *analysis.DashboardAssembler
	Classifier *classifier.AnomalyClassifier
	Location   *time.Location
}

type HTTPServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Store      interfaces.IReadingStore
	Source     analysis.ReadingSource
	Cache      interfaces.IReadingCache
	Assembler  *analysis.DashboardAssembler
	Classifier *classifier.AnomalyClassifier
	Exporter   *export.CSVWriter
	Location   *time.Location

	engine  *gin.Engine
	httpSrv *http.Server

	// WebSocket hub
	clients     map[*Client]struct{}
	register    chan *Client
	unregister  chan *Client
	deliveries  chan delivery
	invalidated chan string
	done        chan struct{}
	connections int32
	hubOnce     sync.Once
	stopOnce    sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewHTTPServer(cfg *models.MConfig, deps Dependencies, log *logger.Logger) *HTTPServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &HTTPServer{
		Config:      cfg,
		Logger:      log,
		Store:       deps.Store,
		Source:      deps.Source,
		Cache:       deps.Cache,
		Assembler:   deps.Assembler,
		Classifier:  deps.Classifier,
		Exporter:    export.NewCSVWriter(loc),
		Location:    loc,
		engine:      gin.New(),
		clients:     make(map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		deliveries:  make(chan delivery, 256),
		invalidated: make(chan string, 256),
		done:        make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestID(), s.cors())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id and logs it on completion.
func (s *HTTPServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)

		started := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s) request_id=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started), id)
	}
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *HTTPServer) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)

	api.GET("/nodes", s.getNodes)
	api.GET("/nodes/:node/days", s.getNodeDays)
	api.GET("/node-date-range", s.getNodeDateRange)

	api.GET("/readings", s.getReadings)
	api.GET("/anomalies", s.getAnomalies)
	api.GET("/time-series", s.getTimeSeries)
	api.GET("/dashboard", s.getDashboard)
	api.GET("/compare", s.getCompare)
	api.GET("/explain", s.getExplain)
	api.GET("/export.csv", s.getExportCSV)

	api.GET("/cache/stats", s.getCacheStats)
	api.GET("/cache/nodes", s.getCacheNodes)
	api.DELETE("/cache", s.deleteCache)

	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler returns the router with the websocket hub running.
func (s *HTTPServer) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting HTTP server on %s", addr)

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) Stop(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.stopOnce.Do(func() { close(s.done) })
	return err
}

// -----------------------------------------------------------------------------

// Connections returns the number of open websocket clients.
func (s *HTTPServer) Connections() int {
	return int(atomic.LoadInt32(&s.connections))
}

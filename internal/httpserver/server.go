// Package httpserver exposes the namespace over HTTP: posting events,
// querying records, and triggering suite runs.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/cascade/internal/level"
	"github.com/tinytelemetry/cascade/internal/namespace"
	"github.com/tinytelemetry/cascade/internal/record"
	"github.com/tinytelemetry/cascade/internal/store"
)

// Server provides the HTTP API over one namespace.
type Server struct {
	addr      string
	ns        *namespace.Namespace
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. Default addr is "0.0.0.0:4700".
func NewServer(addr string, ns *namespace.Namespace) *Server {
	if addr == "" {
		addr = "0.0.0.0:4700"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		ns:     ns,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler builds the route tree. Exposed separately so tests can drive it
// without a listener.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.POST("/api/post", s.handlePost)
	r.GET("/api/records", s.handleRecords)
	r.POST("/api/suites/:name/run", s.handleSuiteRun)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"suites": s.ns.Suites(),
	})
}

func (s *Server) handlePost(c *gin.Context) {
	var req struct {
		Logger  string            `json:"logger"`
		Level   string            `json:"level" binding:"required"`
		Topic   string            `json:"topic"`
		Value   any               `json:"value"`
		Message string            `json:"message"`
		Tags    map[string]string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing level field"})
		return
	}

	lvl, err := level.Parse(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := s.ns.Default()
	if req.Logger != "" {
		target, err = s.ns.GetLogger(req.Logger)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	}

	target.Post(lvl, req.Topic, req.Value, req.Message, req.Tags)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleRecords(c *gin.Context) {
	name := c.Query("store")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store query parameter is required"})
		return
	}
	st, err := s.ns.GetStore(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	filter := record.Filter{
		Logger: c.Query("logger"),
		Topic:  c.Query("topic"),
	}
	if lvl := c.Query("level"); lvl != "" {
		parsed, err := level.Parse(lvl)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Level = parsed
	}
	if start := c.Query("start"); start != "" {
		ts, err := time.Parse(time.RFC3339, start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC 3339"})
			return
		}
		filter.Start = ts
	}
	if finish := c.Query("finish"); finish != "" {
		ts, err := time.Parse(time.RFC3339, finish)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "finish must be RFC 3339"})
			return
		}
		filter.Finish = ts
	}

	recs, err := st.Read(filter)
	if err != nil {
		if errors.Is(err, store.ErrReadUnsupported) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": recs,
		"count":   len(recs),
	})
}

func (s *Server) handleSuiteRun(c *gin.Context) {
	suite, err := s.ns.GetSuite(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Attributes map[string]string `json:"attributes"`
		Metrics    []string          `json:"metrics"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	if err := suite.Run(time.Now(), req.Attributes, req.Metrics...); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

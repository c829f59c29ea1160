package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
	"PostForge/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Runner starts pipeline runs.
type Runner interface {
	RunPipeline(ctx context.Context, projectID string, trigger domain.Trigger) (domain.PipelineRun, error)
}

// Options configures the HTTP surface.
type Options struct {
	Runner   Runner
	Runs     ports.RunStore
	Projects ports.ProjectSource
	APIKey   string
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	// BaseContext outlives individual requests so a disconnecting client
	// does not abort a manual run.
	BaseContext context.Context
}

// Server exposes manual triggers and the run log read API.
type Server struct {
	runner   Runner
	runs     ports.RunStore
	projects ports.ProjectSource
	apiKey   string
	logger   *zap.Logger
	baseCtx  context.Context
	engine   *gin.Engine
}

// NewServer builds the gin engine and registers routes.
func NewServer(opts Options) *Server {
	s := &Server{
		runner:   opts.Runner,
		runs:     opts.Runs,
		projects: opts.Projects,
		apiKey:   opts.APIKey,
		logger:   opts.Logger,
		baseCtx:  opts.BaseContext,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api", s.apiKeyAuth())
	api.POST("/projects/:id/runs", s.triggerRun)
	api.GET("/projects/:id/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)

	s.engine = router
	return s
}

// Handler returns the http.Handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) apiKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) triggerRun(c *gin.Context) {
	projectID := c.Param("id")

	run, err := s.runner.RunPipeline(s.baseCtx, projectID, domain.TriggerManual)
	switch {
	case errors.Is(err, ports.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	case errors.Is(err, usecase.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("manual run", zap.String("project_id", projectID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run could not start"})
		return
	}

	status := http.StatusOK
	if run.Status == domain.RunFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, toRunView(run))
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ports.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		s.logger.Error("get run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, toRunView(run))
}

func (s *Server) listRuns(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := s.projects.Project(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, ports.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "project lookup failed"})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.runs.ListRuns(c.Request.Context(), projectID, limit)
	if err != nil {
		s.logger.Error("list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, toRunView(run))
	}
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

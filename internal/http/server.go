// Package http serves the pacer pipeline over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
	"github.com/fyrsmithlabs/pacer/internal/llmcache"
	"github.com/fyrsmithlabs/pacer/internal/logging"
	"github.com/fyrsmithlabs/pacer/internal/prediction"
)

// maxTextLen bounds the text accepted by extract and estimate.
const maxTextLen = 4096

// Server provides HTTP endpoints for pacer.
type Server struct {
	echo        *echo.Echo
	coordinator *extraction.Coordinator
	engine      *prediction.Engine
	cache       *llmcache.Cache
	logger      *logging.Logger
	config      *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Deps are the components the server exposes. Cache and Meter are optional.
type Deps struct {
	Coordinator *extraction.Coordinator
	Engine      *prediction.Engine
	Cache       *llmcache.Cache
	Logger      *logging.Logger
	Meter       metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	if deps.Coordinator == nil {
		return nil, errors.New("coordinator cannot be nil")
	}
	if deps.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:        uuid.NewString,
		RequestIDHandler: attachRequestID,
	}))
	e.Use(NewHTTPMetrics(deps.Meter, deps.Logger).MetricsMiddleware())
	e.Use(requestLogger(deps.Logger))

	s := &Server{
		echo:        e,
		coordinator: deps.Coordinator,
		engine:      deps.Engine,
		cache:       deps.Cache,
		logger:      deps.Logger,
		config:      cfg,
	}

	s.registerRoutes()

	return s, nil
}

// attachRequestID puts the request ID into the request context. Client IDs
// that are unsafe to log are replaced.
func attachRequestID(c echo.Context, id string) {
	if !logging.ValidRequestID(id) {
		id = uuid.NewString()
		c.Response().Header().Set(echo.HeaderXRequestID, id)
	}
	req := c.Request()
	c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/extract", s.handleExtract)
	v1.POST("/predict", s.handlePredict)
	v1.POST("/estimate", s.handleEstimate)
	v1.GET("/model", s.handleModel)
	v1.GET("/cache", s.handleCacheStats)
	v1.DELETE("/cache", s.handleCacheClear)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		ModelLoaded: s.engine.Model().Loaded,
	})
}

// bindText decodes a TextRequest and checks its length.
func bindText(c echo.Context) (string, error) {
	var req TextRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	if len(req.Text) > maxTextLen {
		return "", echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds %d bytes", maxTextLen))
	}
	return req.Text, nil
}

func (s *Server) handleExtract(c echo.Context) error {
	text, err := bindText(c)
	if err != nil {
		return err
	}

	out := s.coordinator.Run(c.Request().Context(), text)
	return c.JSON(http.StatusOK, NewExtractResponse(out))
}

func (s *Server) handlePredict(c echo.Context) error {
	var req prediction.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res := s.engine.PredictRequest(c.Request().Context(), req)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}

// handleEstimate runs extraction and prediction in one call. Missing fields
// are a normal outcome here: the prediction carries the error and hint and
// the status stays 200.
func (s *Server) handleEstimate(c echo.Context) error {
	text, err := bindText(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	out := s.coordinator.Run(ctx, text)
	res := s.engine.Predict(ctx, out.Result)

	return c.JSON(http.StatusOK, EstimateResponse{
		Extraction: NewExtractResponse(out),
		Prediction: res,
	})
}

func (s *Server) handleModel(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Model())
}

func (s *Server) handleCacheStats(c echo.Context) error {
	if s.cache == nil {
		return echo.NewHTTPError(http.StatusNotFound, "reply cache not configured")
	}
	return c.JSON(http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheClear(c echo.Context) error {
	if s.cache == nil {
		return echo.NewHTTPError(http.StatusNotFound, "reply cache not configured")
	}

	n, err := s.cache.Clear(c.Request().Context())
	if err != nil {
		s.logger.Error(c.Request().Context(), "cache clear failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "cache clear failed")
	}
	return c.JSON(http.StatusOK, CacheClearResponse{Removed: n})
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

package config

import (
	ktpHandler "SentraKTP/internal/api/ktp/handler"
	ktpService "SentraKTP/internal/api/ktp/service"
	"SentraKTP/internal/middleware"
	"SentraKTP/pkg/detector"
	"SentraKTP/pkg/metrics"
	"SentraKTP/pkg/ocr"
	"SentraKTP/pkg/redis"
	"SentraKTP/pkg/utils"
	websocketPkg "SentraKTP/pkg/websocket"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"os"
)

type ServerOption func(*Server) error

type Server struct {
	engine        *fiber.App
	log           *logrus.Logger
	middleware    middleware.Middleware
	validator     *validator.Validate
	utils         utils.IUtils
	handlers      []handler
	ktpConfig     KTPConfig
	redisServer   redis.IRedis
	ktpWebsocket  websocketPkg.IWebsocket
	recognizer    ocr.Recognizer
	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	middlewareOps []middleware.Option
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{ktpConfig: DefaultKTPConfig()}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.recognizer == nil {
		return nil, fmt.Errorf("OCR recognizer is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, server.middlewareOps...)
	}
	if server.redisServer == nil {
		server.redisServer = redis.NewMemory(server.ktpConfig.SessionTTL)
	}
	if server.metrics == nil {
		server.registry = prometheus.NewRegistry()
		server.metrics = metrics.New(server.registry)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithKTPConfig(cfg KTPConfig) ServerOption {
	return func(s *Server) error {
		s.ktpConfig = cfg
		return nil
	}
}

// WithRedisServer keeps capture sessions in Redis when REDIS_ADDRESS is set
// and in process memory otherwise. The TTL comes from the KTP config, so pass
// WithKTPConfig first.
func WithRedisServer() ServerOption {
	return func(s *Server) error {
		if os.Getenv("REDIS_ADDRESS") == "" {
			if s.log != nil {
				s.log.Warn("REDIS_ADDRESS not set, keeping capture sessions in memory")
			}
			s.redisServer = redis.NewMemory(s.ktpConfig.SessionTTL)
			return nil
		}
		s.redisServer = redis.New(s.ktpConfig.SessionTTL)
		return nil
	}
}

func WithSessionStore(store redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = store
		return nil
	}
}

func WithWebSocket(webSocket websocketPkg.IWebsocket) ServerOption {
	return func(s *Server) error {
		s.ktpWebsocket = webSocket
		return nil
	}
}

func WithRecognizer(recognizer ocr.Recognizer) ServerOption {
	return func(s *Server) error {
		s.recognizer = recognizer
		return nil
	}
}

func WithMiddleware(opts ...middleware.Option) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middlewareOps = opts
		s.middleware = middleware.New(s.log, opts...)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithMetrics registers the extraction metrics and the Go runtime collectors
// on a fresh registry served at /metrics.
func WithMetrics() ServerOption {
	return func(s *Server) error {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.metrics = metrics.New(s.registry)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	var det detector.Detector
	if s.ktpWebsocket != nil {
		det = s.ktpWebsocket
	}

	extractor := s.ktpConfig.NewExtractor(s.recognizer)
	ktpServices := ktpService.New(s.log, extractor, det, s.redisServer, s.utils, s.metrics, s.ktpConfig.Service())
	ktpHandlers := ktpHandler.New(s.log, s.validator, s.middleware, ktpServices, s.utils, s.ktpConfig.Timeout)

	s.setupHealthCheck()
	s.setupMetrics()
	s.handlers = append(s.handlers, ktpHandlers)
}

// Mount attaches the request middleware and every registered handler under
// /api/v1. Run calls it before listening.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown() error {
	if s.ktpWebsocket != nil {
		s.ktpWebsocket.Close()
	}
	return s.engine.Shutdown()
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		detectorStatus := "disabled"
		if s.ktpWebsocket != nil {
			detectorStatus = "disconnected"
			if s.ktpWebsocket.IsConnected() {
				detectorStatus = "connected"
			}
		}

		return ctx.JSON(fiber.Map{
			"message":  "Server is Healthy!",
			"engine":   s.recognizer.Name(),
			"detector": detectorStatus,
		})
	})
}

func (s *Server) setupMetrics() {
	if s.registry == nil {
		return
	}
	s.engine.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

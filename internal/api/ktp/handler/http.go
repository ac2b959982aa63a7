package ktpHandler

import (
	ktpService "SentraKTP/internal/api/ktp/service"
	"SentraKTP/internal/middleware"
	"SentraKTP/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"time"
)

type KTPHandler struct {
	log        *logrus.Logger
	validator  *validator.Validate
	middleware middleware.Middleware
	ktpService ktpService.IKTPService
	utils      utils.IUtils
	timeout    time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ks ktpService.IKTPService,
	utils utils.IUtils,
	timeout time.Duration,
) *KTPHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KTPHandler{
		ktpService: ks,
		log:        log,
		validator:  validator,
		middleware: middleware,
		utils:      utils,
		timeout:    timeout,
	}
}

func (h *KTPHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	ktp := srv.Group("/ktp")
	ktp.Use("/ws", wsMiddleware)
	ktp.Get("/ws", websocket.New(h.handleCaptureWebSocket))
	ktp.Post("/extract", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.ExtractKTP)
}

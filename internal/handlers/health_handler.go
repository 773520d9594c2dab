package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	storage Pinger
	log     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(storage Pinger, log *zap.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, log: log}
}

// RegisterRoutes registers "/" and "/health" on the app.
func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandleRoot)
	router.Get("/health", h.HandleHealth)
}

// HandleRoot reports that the process is serving.
func (h *HealthHandler) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Server is UP and RUNNING",
	})
}

// HandleHealth pings storage.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.log.Warn("storage ping failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"storage": "down",
			"time":    time.Now().Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"storage": "up",
		"time":    time.Now().Format(time.RFC3339),
	})
}

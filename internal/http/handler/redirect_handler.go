package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linksmith/linksmith/internal/app/repository"
	"github.com/linksmith/linksmith/internal/app/service"
	infraprom "github.com/linksmith/linksmith/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handler.
type RedirectDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	// Permanent switches responses from 302 Found to 301 Moved Permanently.
	// Records are immutable, so 301 would be safe; 302 is the default so
	// clients keep re-checking.
	Permanent bool
}

// RedirectHandler resolves short ids into HTTP redirects.
type RedirectHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	status      int
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	status := fiber.StatusFound
	if deps.Permanent {
		status = fiber.StatusMovedPermanently
	}
	return &RedirectHandler{
		logger:      logger,
		linkService: deps.LinkService,
		status:      status,
	}
}

// Register wires redirect routes onto the provided router. The catch-all
// short id route must be registered after every other GET route.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:short_id", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "linksmith",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:short_id and redirects to the stored URL.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	shortID := c.Params("short_id")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	longURL, err := h.linkService.Resolve(ctx, shortID)
	if err != nil {
		// Malformed ids are reported exactly like unknown ones; both mean
		// "no such link" to the caller and neither reaches storage.
		if errors.Is(err, service.ErrInvalidShortID) || errors.Is(err, repository.ErrLinkNotFound) {
			infraprom.LookupMisses.Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short url not found",
			})
		}
		h.logger.Error("failed to resolve short id", zap.Error(err), zap.String("short_id", shortID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	infraprom.RedirectsServed.Inc()
	h.logger.Debug("redirecting short link",
		zap.String("short_id", shortID), zap.String("target", longURL))
	return c.Redirect(longURL, h.status)
}

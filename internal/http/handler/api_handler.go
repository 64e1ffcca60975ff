package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linksmith/linksmith/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	// BaseURL is the public origin used to build the short_url field,
	// e.g. "https://lnk.example.com".
	BaseURL string
}

// APIHandler implements the shorten endpoint and the management API.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	baseURL     string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	router.Post("/shorten", h.Shorten)

	api := router.Group("/api")
	{
		api.Get("/links", h.ListLinks)
	}
}

// ShortenRequest represents the request body for creating a short link.
type ShortenRequest struct {
	URL string `json:"url"`
}

// ShortenResponse represents the response for a created short link.
type ShortenResponse struct {
	ShortID   string    `json:"short_id"`
	ShortURL  string    `json:"short_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Shorten handles POST /shorten
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing \"url\" in request body",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	link, err := h.linkService.Shorten(ctx, req.URL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "url must be an absolute http(s) url",
			})
		case errors.Is(err, service.ErrGenerationExhausted):
			h.logger.Warn("short id generation exhausted", zap.String("url", req.URL))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "could not allocate a unique short id, please retry",
			})
		default:
			h.logger.Error("failed to shorten url", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	return c.JSON(ShortenResponse{
		ShortID:   link.ShortID,
		ShortURL:  fmt.Sprintf("%s/%s", h.baseURL, link.ShortID),
		CreatedAt: link.CreatedAt,
	})
}

// LinkResponse is a single entry in the listing API.
type LinkResponse struct {
	ShortID   string    `json:"short_id"`
	LongURL   string    `json:"long_url"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := 20
	offset := 0

	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	links, err := h.linkService.ListLinks(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i, link := range links {
		response[i] = LinkResponse{
			ShortID:   link.ShortID,
			LongURL:   link.LongURL,
			CreatedAt: link.CreatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

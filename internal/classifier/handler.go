package classifier

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Parser classifies without failing; Resilient implements it.
type Parser interface {
	Parse(ctx context.Context, text string) Plan
}

// Handler exposes intent parsing over HTTP.
type Handler struct {
	parser Parser
}

// NewHandler constructs a classifier handler.
func NewHandler(parser Parser) *Handler {
	return &Handler{parser: parser}
}

type parseRequest struct {
	Text string `json:"text"`
}

// Parse classifies the posted text into a plan.
func (h *Handler) Parse(c *fiber.Ctx) error {
	var req parseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(http.StatusUnprocessableEntity, "text is required")
	}
	plan := h.parser.Parse(c.UserContext(), req.Text)
	return c.Status(http.StatusOK).JSON(ToWire(plan))
}

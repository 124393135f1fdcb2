package chat

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nexus-chain/nexus/internal/classifier"
	"github.com/nexus-chain/nexus/internal/executor"
)

// Handler exposes the conversation endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a chat handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	Content string `json:"content"`
}

// MessageResponse is the JSON shape of a chat message.
type MessageResponse struct {
	ID        string                  `json:"id"`
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	Timestamp int64                   `json:"timestamp"`
	Intents   []classifier.WireIntent `json:"intents,omitempty"`
	Status    string                  `json:"status,omitempty"`
	BatchID   string                  `json:"batch_id,omitempty"`
}

// ToMessageResponse converts a message for transport.
func ToMessageResponse(m Message) MessageResponse {
	out := MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		Status:    string(m.Status),
		BatchID:   m.BatchID,
	}
	for _, in := range m.Intents {
		out.Intents = append(out.Intents, classifier.IntentToWire(in))
	}
	return out
}

// List returns the conversation history.
func (h *Handler) List(c *fiber.Ctx) error {
	msgs := h.service.Messages()
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessageResponse(m))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Send posts a new instruction and returns the proposed plan.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	msg, err := h.service.Send(c.UserContext(), req.Content)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(ToMessageResponse(msg))
}

// Confirm executes the plan attached to an assistant message.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	batchID, err := h.service.Confirm(c.UserContext(), c.Params("messageId"))
	if err != nil {
		switch {
		case errors.Is(err, ErrMessageNotFound):
			return fiber.NewError(http.StatusNotFound, "message not found")
		case errors.Is(err, ErrAlreadyConfirmed):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrNothingToConfirm):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, executor.ErrQueueFull), errors.Is(err, executor.ErrQueueClosed):
			return fiber.NewError(http.StatusServiceUnavailable, "execution queue unavailable")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"message_id": c.Params("messageId"),
		"batch_id":   batchID,
		"status":     string(StatusSuccess),
	})
}

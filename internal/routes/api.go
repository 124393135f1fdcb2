package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nexus-chain/nexus/internal/chat"
	"github.com/nexus-chain/nexus/internal/classifier"
	"github.com/nexus-chain/nexus/internal/executor"
	"github.com/nexus-chain/nexus/internal/ledger"
)

// RegisterLedgerRoutes wires the read-only ledger endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/accounts", h.Accounts)
	r.Get("/accounts/:accountId", h.Account)
	r.Get("/transactions", h.Transactions)
	r.Get("/stats", h.Stats)
}

// RegisterIntentRoutes wires stateless intent parsing.
func RegisterIntentRoutes(r fiber.Router, h *classifier.Handler) {
	r.Post("/intents/parse", h.Parse)
}

// RegisterChatRoutes wires the conversation. Sending is rate limited; confirming
// honours Idempotency-Key.
func RegisterChatRoutes(r fiber.Router, h *chat.Handler, limiter, idempotent fiber.Handler) {
	r.Get("/chat/messages", h.List)
	r.Post("/chat/messages", limiter, h.Send)
	r.Post("/chat/messages/:messageId/confirm", idempotent, h.Confirm)
}

// RegisterExecutorRoutes wires the view model and batch reports.
func RegisterExecutorRoutes(r fiber.Router, h *executor.Handler) {
	r.Get("/executor/view", h.View)
	r.Get("/executor/batches/:batchId", h.Batch)
}

// RegisterAdminRoutes wires operator endpoints behind guard. A reset also
// refreshes the executor view.
func RegisterAdminRoutes(r fiber.Router, h *ledger.Handler, exec *executor.Executor, guard fiber.Handler) {
	admin := r.Group("/admin", guard)
	admin.Post("/reset", func(c *fiber.Ctx) error {
		if err := h.Reset(c); err != nil {
			return err
		}
		exec.Refresh()
		return nil
	})
}

package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes read-only ledger endpoints plus the operator reset.
type Handler struct {
	store *Store
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// AccountResponse is the JSON shape of an account node.
type AccountResponse struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Type           string `json:"type"`
	Balance        string `json:"balance"`
	ActivityStatus string `json:"activity_status"`
}

// TransactionResponse is the JSON shape of a transaction record.
type TransactionResponse struct {
	ID          string            `json:"id"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Amount      string            `json:"amount"`
	Type        string            `json:"type"`
	Timestamp   int64             `json:"timestamp"`
	BlockHeight uint64            `json:"block_height"`
	Status      string            `json:"status"`
	GasFee      string            `json:"gas_fee,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// ToAccountResponse converts an account for transport.
func ToAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Label:          a.Label,
		Type:           string(a.Kind),
		Balance:        a.Balance.String(),
		ActivityStatus: string(a.Status),
	}
}

// ToTransactionResponse converts a transaction for transport. Timestamps are unix milliseconds.
func ToTransactionResponse(tx Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		From:        tx.From,
		To:          tx.To,
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		Timestamp:   tx.Timestamp.UnixMilli(),
		BlockHeight: tx.BlockHeight,
		Status:      tx.Status,
		GasFee:      tx.GasFee.String(),
		Parameters:  tx.Parameters,
	}
}

// Accounts lists every account.
func (h *Handler) Accounts(c *fiber.Ctx) error {
	accounts := h.store.Accounts()
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, ToAccountResponse(a))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Account returns a single account.
func (h *Handler) Account(c *fiber.Ctx) error {
	acc, err := h.store.Account(c.Params("accountId"))
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(ToAccountResponse(acc))
}

// Transactions lists the transaction log newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs := h.store.Transactions()
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ToTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Stats returns the header figures.
func (h *Handler) Stats(c *fiber.Ctx) error {
	st := h.store.Stats()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"tps":           st.TPS,
		"finality":      st.Finality,
		"active_chains": st.ActiveChains,
		"block_height":  st.BlockHeight,
	})
}

// Reset restores the seed state.
func (h *Handler) Reset(c *fiber.Ctx) error {
	h.store.Reset()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":       "reset",
		"block_height": h.store.BlockHeight(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

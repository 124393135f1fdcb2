package executor

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nexus-chain/nexus/internal/classifier"
	"github.com/nexus-chain/nexus/internal/ledger"
)

// Handler exposes the view model and batch reports.
type Handler struct {
	exec  *Executor
	queue *Queue
}

// NewHandler constructs an executor handler.
func NewHandler(exec *Executor, queue *Queue) *Handler {
	return &Handler{exec: exec, queue: queue}
}

type activeResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type viewResponse struct {
	Accounts     []ledger.AccountResponse     `json:"accounts"`
	Transactions []ledger.TransactionResponse `json:"transactions"`
	Active       *activeResponse              `json:"active_transfer"`
	RefreshedAt  int64                        `json:"refreshed_at"`
}

// StepResponse is the JSON shape of a step result.
type StepResponse struct {
	Index       int                         `json:"index"`
	Intent      classifier.WireIntent       `json:"intent"`
	Target      string                      `json:"target"`
	Operation   string                      `json:"operation,omitempty"`
	Outcome     string                      `json:"outcome"`
	Transaction *ledger.TransactionResponse `json:"transaction,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

// ReportResponse is the JSON shape of a batch report.
type ReportResponse struct {
	BatchID    string         `json:"batch_id"`
	Status     string         `json:"status"`
	Steps      []StepResponse `json:"steps"`
	QueuedAt   int64          `json:"queued_at"`
	StartedAt  int64          `json:"started_at,omitempty"`
	FinishedAt int64          `json:"finished_at,omitempty"`
}

// View returns the dashboard view model.
func (h *Handler) View(c *fiber.Ctx) error {
	v := h.exec.View()
	out := viewResponse{
		Accounts:     make([]ledger.AccountResponse, 0, len(v.Accounts)),
		Transactions: make([]ledger.TransactionResponse, 0, len(v.Transactions)),
		RefreshedAt:  v.RefreshedAt.UnixMilli(),
	}
	for _, a := range v.Accounts {
		out.Accounts = append(out.Accounts, ledger.ToAccountResponse(a))
	}
	for _, tx := range v.Transactions {
		out.Transactions = append(out.Transactions, ledger.ToTransactionResponse(tx))
	}
	if v.Active != nil {
		out.Active = &activeResponse{From: v.Active.From, To: v.Active.To}
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Batch returns the report of a submitted batch.
func (h *Handler) Batch(c *fiber.Ctx) error {
	r, err := h.queue.Report(c.Params("batchId"))
	if err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			return fiber.NewError(http.StatusNotFound, "batch not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(ToReportResponse(r))
}

// ToReportResponse converts a report for transport.
func ToReportResponse(r Report) ReportResponse {
	out := ReportResponse{
		BatchID:  r.BatchID,
		Status:   string(r.Status),
		Steps:    make([]StepResponse, 0, len(r.Steps)),
		QueuedAt: r.QueuedAt.UnixMilli(),
	}
	if !r.StartedAt.IsZero() {
		out.StartedAt = r.StartedAt.UnixMilli()
	}
	if !r.FinishedAt.IsZero() {
		out.FinishedAt = r.FinishedAt.UnixMilli()
	}
	for _, s := range r.Steps {
		sr := StepResponse{
			Index:     s.Index,
			Intent:    classifier.IntentToWire(s.Intent),
			Target:    s.Target,
			Operation: string(s.Operation),
			Outcome:   string(s.Outcome),
			Error:     s.Error,
		}
		if s.Transaction != nil {
			tx := ledger.ToTransactionResponse(*s.Transaction)
			sr.Transaction = &tx
		}
		out.Steps = append(out.Steps, sr)
	}
	return out
}

// Package executor runs confirmed intent batches against the ledger one step at a
// time and keeps the view model the dashboard renders from.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-chain/nexus/internal/intent"
	"github.com/nexus-chain/nexus/internal/ledger"
	"github.com/nexus-chain/nexus/internal/logging"
	"github.com/nexus-chain/nexus/internal/notification"
)

// Ledger is the subset of the ledger store the executor drives.
type Ledger interface {
	Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, kind ledger.TxType, opts ...ledger.TransferOption) (ledger.Transaction, error)
	Accounts() []ledger.Account
	Transactions() []ledger.Transaction
}

// Policy decides what happens to the remaining steps after a failure.
type Policy string

const (
	// ContinueOnError runs every step regardless of earlier failures.
	ContinueOnError Policy = "continue"
	// StopOnError marks the steps after a failure as skipped.
	StopOnError Policy = "stop"
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ContinueOnError:
		return ContinueOnError, nil
	case StopOnError:
		return StopOnError, nil
	default:
		return "", fmt.Errorf("unknown executor policy %q", s)
	}
}

// Outcome is the result of a single step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepResult records what one intent did.
type StepResult struct {
	Index       int
	Intent      intent.Intent
	Target      string
	Operation   ledger.TxType
	Outcome     Outcome
	Transaction *ledger.Transaction
	Error       string
}

// Report is the per-step account of a batch. Earlier successes stay committed
// when a later step fails.
type Report struct {
	BatchID    string
	Status     BatchStatus
	Steps      []StepResult
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded counts the committed steps.
func (r Report) Succeeded() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// ActiveTransfer is the edge currently highlighted on the network graph.
type ActiveTransfer struct {
	From string
	To   string
}

// View is what the dashboard renders: accounts, the transaction log and the
// transfer in flight, if any.
type View struct {
	Accounts     []ledger.Account
	Transactions []ledger.Transaction
	Active       *ActiveTransfer
	RefreshedAt  time.Time
}

// Options configures pacing and failure handling.
type Options struct {
	Source       string
	StepDelay    time.Duration
	DisplayDelay time.Duration
	Policy       Policy
	Notifier     notification.Notifier
	Logger       *slog.Logger
	Now          func() time.Time
}

// DefaultOptions paces steps the way the dashboard animates them.
func DefaultOptions() Options {
	return Options{
		Source:       ledger.UserAccountID,
		StepDelay:    500 * time.Millisecond,
		DisplayDelay: 1500 * time.Millisecond,
		Policy:       ContinueOnError,
	}
}

// Executor runs intent batches as an ordered pipeline of steps.
type Executor struct {
	ledger Ledger
	opts   Options
	logger *slog.Logger

	mu   sync.RWMutex
	view View
}

// New builds an executor over l.
func New(l Ledger, opts Options) *Executor {
	if opts.Source == "" {
		opts.Source = ledger.UserAccountID
	}
	if opts.Policy == "" {
		opts.Policy = ContinueOnError
	}
	if opts.Notifier == nil {
		opts.Notifier = notification.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Executor{
		ledger: l,
		opts:   opts,
		logger: logging.Component(opts.Logger, "executor"),
	}
	e.refresh()
	return e
}

// View returns a copy of the current view model.
func (e *Executor) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := View{
		Accounts:     slices.Clone(e.view.Accounts),
		Transactions: slices.Clone(e.view.Transactions),
		RefreshedAt:  e.view.RefreshedAt,
	}
	if e.view.Active != nil {
		active := *e.view.Active
		out.Active = &active
	}
	return out
}

// Refresh reloads accounts and transactions from the ledger.
func (e *Executor) Refresh() {
	e.refresh()
}

// Run executes intents in order. Each step resolves its target, performs the
// matching ledger operation, refreshes the view, holds the highlight for
// DisplayDelay and then waits StepDelay before the next step. Nothing is rolled
// back. When ctx is cancelled the remaining steps are skipped.
func (e *Executor) Run(ctx context.Context, batchID string, intents []intent.Intent) Report {
	report := Report{
		BatchID:   batchID,
		Status:    BatchRunning,
		Steps:     make([]StepResult, 0, len(intents)),
		StartedAt: e.opts.Now(),
	}

	pending := slices.Clone(intents)
	halted := false
	for i := 0; len(pending) > 0; i++ {
		step := pending[0]
		pending = pending[1:]

		if halted || ctx.Err() != nil {
			report.Steps = append(report.Steps, StepResult{
				Index:   i,
				Intent:  step,
				Target:  intent.Resolve(step),
				Outcome: OutcomeSkipped,
			})
			continue
		}

		res := e.runStep(ctx, i, step)
		report.Steps = append(report.Steps, res)
		if res.Outcome == OutcomeFailed && e.opts.Policy == StopOnError {
			halted = true
		}

		if len(pending) > 0 && !halted {
			_ = sleepContext(ctx, e.opts.StepDelay)
		}
	}

	report.Status = BatchCompleted
	report.FinishedAt = e.opts.Now()
	e.logger.Info("batch finished",
		slog.String("batch_id", batchID),
		slog.Int("steps", len(report.Steps)),
		slog.Int("succeeded", report.Succeeded()),
	)
	return report
}

func (e *Executor) runStep(ctx context.Context, index int, in intent.Intent) StepResult {
	target := intent.Resolve(in)
	amount, kind, params := operation(in)
	res := StepResult{Index: index, Intent: in, Target: target, Operation: kind}

	e.setActive(&ActiveTransfer{From: e.opts.Source, To: target})

	var opts []ledger.TransferOption
	if len(params) > 0 {
		opts = append(opts, ledger.WithParameters(params))
	}
	tx, err := e.ledger.Transfer(ctx, e.opts.Source, target, amount, kind, opts...)
	e.refresh()

	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		e.logger.Warn("step failed",
			slog.Int("step", index),
			slog.String("type", string(in.Type)),
			slog.String("target", target),
			slog.Any("error", err),
		)
	} else {
		res.Outcome = OutcomeSuccess
		res.Transaction = &tx
		if kind == ledger.TxMint {
			e.announceMint(ctx, tx)
		}
	}

	_ = sleepContext(ctx, e.opts.DisplayDelay)
	e.setActive(nil)
	return res
}

// operation picks the ledger call for an intent: transfers move their amount,
// everything else moves zero as a MINT or EXECUTE record.
func operation(in intent.Intent) (decimal.Decimal, ledger.TxType, map[string]string) {
	switch p := in.Params.(type) {
	case intent.TransferParams:
		return p.Amount, ledger.TxTransfer, nil
	case intent.MintParams:
		if p.NFTName != "" {
			return decimal.Zero, ledger.TxMint, map[string]string{"nft_name": p.NFTName}
		}
		return decimal.Zero, ledger.TxMint, nil
	case intent.VoteParams:
		params := map[string]string{}
		if p.Choice != "" {
			params["vote_choice"] = string(p.Choice)
		}
		if p.ProposalID != "" {
			params["proposal_id"] = p.ProposalID
		}
		return decimal.Zero, ledger.TxExecute, params
	default:
		return decimal.Zero, ledger.TxExecute, nil
	}
}

func (e *Executor) announceMint(ctx context.Context, tx ledger.Transaction) {
	attrs := map[string]string{
		"tx_id":        tx.ID,
		"block_height": fmt.Sprintf("%d", tx.BlockHeight),
	}
	for k, v := range tx.Parameters {
		attrs[k] = v
	}
	msg := notification.Message{
		Kind:        notification.KindNFTMinted,
		Destination: tx.ToID,
		Body:        fmt.Sprintf("%s minted an NFT on %s", tx.From, tx.To),
		Attributes:  attrs,
		At:          e.opts.Now(),
	}
	if err := e.opts.Notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		e.logger.Warn("mint notification failed", slog.Any("error", err))
	}
}

func (e *Executor) setActive(active *ActiveTransfer) {
	e.mu.Lock()
	e.view.Active = active
	e.mu.Unlock()
}

func (e *Executor) refresh() {
	accounts := e.ledger.Accounts()
	txs := e.ledger.Transactions()
	e.mu.Lock()
	e.view.Accounts = accounts
	e.view.Transactions = txs
	e.view.RefreshedAt = e.opts.Now()
	e.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

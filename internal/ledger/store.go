package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexus-chain/nexus/internal/logging"
	"github.com/nexus-chain/nexus/internal/notification"
)

const (
	baseTPS        = 14000
	tpsJitter      = 500
	finalitySecond = 0.02
	defaultLatency = 2 * time.Second
	defaultErrHold = 2 * time.Second
	defaultOKHold  = 3 * time.Second
)

// Options tunes simulated latency and how long terminal statuses stay visible.
type Options struct {
	Latency     time.Duration
	ErrorHold   time.Duration
	SuccessHold time.Duration
	Journal     Journal
	Notifier    notification.Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// DefaultOptions mirrors the demo timings: 2s latency, 2s error display, 3s success display.
func DefaultOptions() Options {
	return Options{Latency: defaultLatency, ErrorHold: defaultErrHold, SuccessHold: defaultOKHold}
}

// Store is the in-memory mock ledger. The zero value is not usable; build one with NewStore.
type Store struct {
	mu           sync.Mutex
	seed         Seed
	order        []string
	accounts     map[string]*Account
	transactions []Transaction
	blockHeight  uint64

	timers    map[string]*time.Timer
	statusGen map[string]uint64
	pending   []notification.Message

	opts   Options
	logger *slog.Logger
}

// NewStore builds a store populated from seed.
func NewStore(seed Seed, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Notifier == nil {
		opts.Notifier = notification.Nop{}
	}
	s := &Store{
		seed:      seed,
		timers:    make(map[string]*time.Timer),
		statusGen: make(map[string]uint64),
		opts:      opts,
		logger:    logging.Component(opts.Logger, "ledger"),
	}
	s.load()
	return s
}

func (s *Store) load() {
	s.order = make([]string, 0, len(s.seed.Accounts))
	s.accounts = make(map[string]*Account, len(s.seed.Accounts))
	for _, a := range s.seed.Accounts {
		acc := a
		acc.Status = StatusIdle
		s.accounts[acc.ID] = &acc
		s.order = append(s.order, acc.ID)
	}
	s.transactions = nil
	s.blockHeight = s.seed.BlockHeight
}

// Reset restores the seed state and cancels every pending status reset.
func (s *Store) Reset() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		s.statusGen[id]++
	}
	s.load()
	s.mu.Unlock()
	s.logger.Info("ledger reset", slog.Uint64("block_height", s.seed.BlockHeight))
}

// Accounts returns a copy of every account in seed order.
func (s *Store) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.accounts[id])
	}
	return out
}

// Account returns a copy of a single account.
func (s *Store) Account(id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return *acc, nil
}

// Transactions returns the log newest first.
func (s *Store) Transactions() []Transaction {
	s.mu.Lock()
	out := make([]Transaction, len(s.transactions))
	for i, tx := range s.transactions {
		tx.Parameters = maps.Clone(tx.Parameters)
		out[i] = tx
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].BlockHeight > out[j].BlockHeight
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// BlockHeight returns the current block height.
func (s *Store) BlockHeight() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockHeight
}

// Stats returns a synthetic throughput figure alongside real counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TPS:          baseTPS + rand.IntN(tpsJitter),
		Finality:     finalitySecond,
		ActiveChains: len(s.accounts),
		BlockHeight:  s.blockHeight,
	}
}

// TransferOption customises a single transfer.
type TransferOption func(*transferConfig)

type transferConfig struct {
	params map[string]string
}

// WithParameters merges extra entries into the recorded parameter payload.
func WithParameters(params map[string]string) TransferOption {
	return func(c *transferConfig) {
		for k, v := range params {
			c.params[k] = v
		}
	}
}

// Transfer moves amount from one account to another after the simulated network latency.
//
// Validation failures return immediately: ErrUnknownAccount when either side is missing,
// ErrInsufficientFunds when the source cannot cover the amount (the source then shows
// StatusError for ErrorHold). On success the destination shows StatusProcessing during the
// latency and StatusSuccess for SuccessHold afterwards, the block height grows by exactly
// one and a confirmed record is appended.
//
// Cancelling ctx during the latency aborts the transfer without mutating balances.
func (s *Store) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, kind TxType, opts ...TransferOption) (Transaction, error) {
	if amount.IsNegative() {
		return Transaction{}, ErrInvalidAmount
	}

	s.mu.Lock()
	if err := s.validateLocked(fromID, toID, amount); err != nil {
		s.mu.Unlock()
		s.flush()
		s.reject(ctx, fromID, toID, amount, err)
		return Transaction{}, err
	}
	s.setStatusLocked(toID, StatusProcessing, 0)
	s.mu.Unlock()
	s.flush()

	if err := sleepContext(ctx, s.opts.Latency); err != nil {
		s.mu.Lock()
		if _, ok := s.accounts[toID]; ok {
			s.setStatusLocked(toID, StatusIdle, 0)
		}
		s.mu.Unlock()
		s.flush()
		return Transaction{}, fmt.Errorf("transfer %s -> %s: %w", fromID, toID, err)
	}

	cfg := transferConfig{params: defaultParameters(kind)}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	// Balances may have moved while this transfer waited; validate again so the
	// non-negative invariant holds under concurrent callers.
	if err := s.validateLocked(fromID, toID, amount); err != nil {
		if _, ok := s.accounts[toID]; ok {
			s.setStatusLocked(toID, StatusIdle, 0)
		}
		s.mu.Unlock()
		s.flush()
		s.reject(ctx, fromID, toID, amount, err)
		return Transaction{}, err
	}

	from := s.accounts[fromID]
	to := s.accounts[toID]
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	s.blockHeight++
	s.setStatusLocked(toID, StatusSuccess, s.opts.SuccessHold)

	tx := Transaction{
		ID:          uuid.NewString(),
		FromID:      from.ID,
		ToID:        to.ID,
		From:        from.Label,
		To:          to.Label,
		Amount:      amount,
		Type:        kind,
		Timestamp:   s.opts.Now(),
		BlockHeight: s.blockHeight,
		Status:      TxStatusConfirmed,
		GasFee:      gasFee(),
		Parameters:  cfg.params,
	}
	s.transactions = append(s.transactions, tx)
	s.mu.Unlock()
	s.flush()

	s.logger.Info("transfer confirmed",
		slog.String("tx_id", tx.ID),
		slog.String("from", fromID),
		slog.String("to", toID),
		slog.String("amount", amount.String()),
		slog.String("type", string(kind)),
		slog.Uint64("block_height", tx.BlockHeight),
	)

	s.publish(ctx, notification.Message{
		Kind:        notification.KindTransferConfirmed,
		Destination: toID,
		Body:        fmt.Sprintf("%s received %s from %s", to.Label, amount.String(), from.Label),
		Attributes: map[string]string{
			"tx_id":        tx.ID,
			"type":         string(kind),
			"block_height": fmt.Sprintf("%d", tx.BlockHeight),
		},
	})

	if s.opts.Journal != nil {
		out := tx
		out.Parameters = maps.Clone(tx.Parameters)
		if err := s.opts.Journal.Record(ctx, out); err != nil {
			s.logger.Warn("journal record failed", slog.String("tx_id", tx.ID), slog.Any("error", err))
		}
	}

	out := tx
	out.Parameters = maps.Clone(tx.Parameters)
	return out, nil
}

func (s *Store) validateLocked(fromID, toID string, amount decimal.Decimal) error {
	from, ok := s.accounts[fromID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, fromID)
	}
	if _, ok := s.accounts[toID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, toID)
	}
	if from.Balance.LessThan(amount) {
		s.setStatusLocked(fromID, StatusError, s.opts.ErrorHold)
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, fromID, from.Balance.String(), amount.String())
	}
	return nil
}

func (s *Store) reject(ctx context.Context, fromID, toID string, amount decimal.Decimal, err error) {
	s.logger.Warn("transfer rejected",
		slog.String("from", fromID),
		slog.String("to", toID),
		slog.String("amount", amount.String()),
		slog.Any("error", err),
	)
	s.publish(ctx, notification.Message{
		Kind:        notification.KindTransferRejected,
		Destination: fromID,
		Body:        err.Error(),
		Attributes:  map[string]string{"to": toID, "amount": amount.String()},
	})
}

// setStatusLocked updates an account status and, when hold is positive, schedules a
// reversion to idle. Any reversion already pending for the account is cancelled so
// a newer status is never overwritten by an older timer.
func (s *Store) setStatusLocked(id string, status Status, hold time.Duration) {
	acc, ok := s.accounts[id]
	if !ok {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.statusGen[id]++
	gen := s.statusGen[id]

	if acc.Status != status {
		acc.Status = status
		s.pending = append(s.pending, notification.Message{
			Kind:        notification.KindStatusChanged,
			Destination: id,
			Body:        string(status),
		})
	}

	if hold > 0 {
		s.timers[id] = time.AfterFunc(hold, func() { s.revert(id, gen) })
	}
}

func (s *Store) revert(id string, gen uint64) {
	s.mu.Lock()
	if s.statusGen[id] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.setStatusLocked(id, StatusIdle, 0)
	s.mu.Unlock()
	s.flush()
}

// flush delivers status notifications queued while the lock was held.
func (s *Store) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, msg := range pending {
		s.publish(context.Background(), msg)
	}
}

func (s *Store) publish(ctx context.Context, msg notification.Message) {
	if msg.At.IsZero() {
		msg.At = s.opts.Now()
	}
	if err := s.opts.Notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

func defaultParameters(kind TxType) map[string]string {
	if kind == TxMint {
		return map[string]string{"collection": "Genesis", "standard": "ERC721", "uri": "ipfs://Qmb..."}
	}
	return map[string]string{"currency": "TLIN", "memo": "Agentic Transfer"}
}

func gasFee() decimal.Decimal {
	return decimal.NewFromFloat(0.000002 + rand.Float64()*0.000005).Round(9)
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

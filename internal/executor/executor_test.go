package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-chain/nexus/internal/intent"
	"github.com/nexus-chain/nexus/internal/ledger"
	"github.com/nexus-chain/nexus/internal/notification"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func transfer(target string, amount int64) intent.Intent {
	return intent.Intent{
		Type:        intent.TypeTransfer,
		Target:      target,
		Description: "transfer",
		Confidence:  1,
		Params:      intent.TransferParams{Amount: decimal.NewFromInt(amount)},
	}
}

func instant(notifier notification.Notifier) Options {
	return Options{Notifier: notifier}
}

func balance(t *testing.T, s *ledger.Store, id string) decimal.Decimal {
	t.Helper()
	acc, err := s.Account(id)
	require.NoError(t, err)
	return acc.Balance
}

func TestRunKeepsEarlierStepsWhenLaterStepFails(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	exec := New(store, instant(nil))

	report := exec.Run(context.Background(), "b1", []intent.Intent{
		transfer("Bob", 100),
		transfer("chain_nowhere", 10),
	})

	require.Len(t, report.Steps, 2)
	assert.Equal(t, OutcomeSuccess, report.Steps[0].Outcome)
	assert.Equal(t, OutcomeFailed, report.Steps[1].Outcome)
	assert.Contains(t, report.Steps[1].Error, "unknown account")
	assert.Equal(t, BatchCompleted, report.Status)

	assert.True(t, balance(t, store, ledger.UserAccountID).Equal(decimal.NewFromInt(900)))
	assert.True(t, balance(t, store, ledger.BobAccountID).Equal(decimal.NewFromInt(220)))
}

func TestRunContinuesAfterInsufficientFunds(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	exec := New(store, instant(nil))

	report := exec.Run(context.Background(), "b2", []intent.Intent{
		transfer("Alice", 5000),
		transfer("Alice", 10),
	})

	assert.Equal(t, OutcomeFailed, report.Steps[0].Outcome)
	assert.Equal(t, OutcomeSuccess, report.Steps[1].Outcome)
	assert.Equal(t, 1, report.Succeeded())
	assert.True(t, balance(t, store, ledger.AliceAccountID).Equal(decimal.NewFromInt(60)))
}

func TestRunStopOnErrorSkipsRemainder(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	opts := instant(nil)
	opts.Policy = StopOnError
	exec := New(store, opts)

	report := exec.Run(context.Background(), "b3", []intent.Intent{
		transfer("Alice", 5000),
		transfer("Bob", 10),
	})

	assert.Equal(t, OutcomeFailed, report.Steps[0].Outcome)
	assert.Equal(t, OutcomeSkipped, report.Steps[1].Outcome)
	assert.True(t, balance(t, store, ledger.BobAccountID).Equal(decimal.NewFromInt(120)))
}

func TestRunStopOnErrorDoesNotWaitForSkippedSteps(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	opts := instant(nil)
	opts.Policy = StopOnError
	opts.StepDelay = 2 * time.Second
	exec := New(store, opts)

	start := time.Now()
	report := exec.Run(context.Background(), "b3s", []intent.Intent{
		transfer("Alice", 5000),
		transfer("Bob", 10),
		transfer("Bob", 10),
	})
	if elapsed := time.Since(start); elapsed >= opts.StepDelay {
		t.Fatalf("run took %s after the failing step, want no step delay", elapsed)
	}
	assert.Equal(t, OutcomeFailed, report.Steps[0].Outcome)
	assert.Equal(t, OutcomeSkipped, report.Steps[1].Outcome)
	assert.Equal(t, OutcomeSkipped, report.Steps[2].Outcome)
}

func TestRunOperationsPerIntentType(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	notifier := &recordingNotifier{}
	exec := New(store, instant(notifier))
	startHeight := store.BlockHeight()

	report := exec.Run(context.Background(), "b4", []intent.Intent{
		{Type: intent.TypeMintNFT, Target: "NFT", Description: "mint", Params: intent.MintParams{NFTName: "Sunset"}},
		{Type: intent.TypeVoteDAO, Target: "DAO", Description: "vote", Params: intent.VoteParams{Choice: intent.VoteYes, ProposalID: "7"}},
		transfer("", 5),
	})

	require.Len(t, report.Steps, 3)
	for _, s := range report.Steps {
		require.Equal(t, OutcomeSuccess, s.Outcome, s.Error)
	}

	mint := report.Steps[0].Transaction
	assert.Equal(t, ledger.TxMint, mint.Type)
	assert.Equal(t, ledger.NFTAccountID, mint.ToID)
	assert.True(t, mint.Amount.IsZero())
	assert.Equal(t, "Sunset", mint.Parameters["nft_name"])
	assert.Equal(t, "Genesis", mint.Parameters["collection"])

	vote := report.Steps[1].Transaction
	assert.Equal(t, ledger.TxExecute, vote.Type)
	assert.Equal(t, ledger.DAOAccountID, vote.ToID)
	assert.Equal(t, "yes", vote.Parameters["vote_choice"])

	assert.Equal(t, ledger.AliceAccountID, report.Steps[2].Target)
	assert.Equal(t, startHeight+3, store.BlockHeight())
	assert.Contains(t, notifier.kinds(), notification.KindNFTMinted)
}

func TestRunRefreshesViewAndClearsMarker(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	opts := instant(nil)
	opts.DisplayDelay = 100 * time.Millisecond
	exec := New(store, opts)

	done := make(chan Report)
	go func() { done <- exec.Run(context.Background(), "b5", []intent.Intent{transfer("Bob", 1)}) }()

	require.Eventually(t, func() bool {
		v := exec.View()
		return v.Active != nil && v.Active.To == ledger.BobAccountID && len(v.Transactions) == 1
	}, time.Second, 5*time.Millisecond)

	<-done
	v := exec.View()
	assert.Nil(t, v.Active)
	assert.Equal(t, ledger.UserAccountID, v.Transactions[0].FromID)
}

func TestRunCancelledSkipsEverything(t *testing.T) {
	store := ledger.NewStore(ledger.DefaultSeed(), ledger.Instant())
	exec := New(store, instant(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := exec.Run(ctx, "b6", []intent.Intent{transfer("Bob", 1), transfer("Alice", 1)})
	for _, s := range report.Steps {
		assert.Equal(t, OutcomeSkipped, s.Outcome)
	}
	assert.Empty(t, store.Transactions())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, ContinueOnError, p)

	p, err = ParsePolicy("STOP")
	require.NoError(t, err)
	assert.Equal(t, StopOnError, p)

	_, err = ParsePolicy("retry")
	require.Error(t, err)
}

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func waitForStatus(t *testing.T, s *Store, id string, want Status, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		acc, err := s.Account(id)
		if err != nil {
			t.Fatalf("account %s: %v", id, err)
		}
		if acc.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	acc, _ := s.Account(id)
	t.Fatalf("account %s status %s, want %s", id, acc.Status, want)
}

func TestStore_TransferMaintainsBalance(t *testing.T) {
	s := NewStore(DefaultSeed(), Instant())
	ctx := context.Background()
	startHeight := s.BlockHeight()

	tx, err := s.Transfer(ctx, UserAccountID, AliceAccountID, decimal.NewFromInt(500), TxTransfer)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	user, _ := s.Account(UserAccountID)
	alice, _ := s.Account(AliceAccountID)
	if !user.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected user balance 500, got %s", user.Balance)
	}
	if !alice.Balance.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("expected alice balance 550, got %s", alice.Balance)
	}
	if s.BlockHeight() != startHeight+1 {
		t.Fatalf("expected block height %d, got %d", startHeight+1, s.BlockHeight())
	}
	if tx.BlockHeight != startHeight+1 || tx.Status != TxStatusConfirmed {
		t.Fatalf("unexpected record: %+v", tx)
	}
	if tx.From != "User Chain" || tx.To != "Alice Chain" {
		t.Fatalf("expected labels on record, got %s -> %s", tx.From, tx.To)
	}

	txs := s.Transactions()
	if len(txs) != 1 || !txs[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected one record of 500, got %+v", txs)
	}
	if txs[0].Parameters["currency"] != "TLIN" {
		t.Fatalf("expected transfer payload, got %v", txs[0].Parameters)
	}
}

func TestStore_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	s := NewStore(DefaultSeed(), Options{ErrorHold: 30 * time.Millisecond})
	ctx := context.Background()
	height := s.BlockHeight()

	_, err := s.Transfer(ctx, AliceAccountID, BobAccountID, decimal.NewFromInt(100), TxTransfer)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	alice, _ := s.Account(AliceAccountID)
	bob, _ := s.Account(BobAccountID)
	if !alice.Balance.Equal(decimal.NewFromInt(50)) || !bob.Balance.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("balances changed: alice=%s bob=%s", alice.Balance, bob.Balance)
	}
	if s.BlockHeight() != height {
		t.Fatalf("block height moved on failure: %d -> %d", height, s.BlockHeight())
	}
	if alice.Status != StatusError {
		t.Fatalf("expected error status on source, got %s", alice.Status)
	}
	if len(s.Transactions()) != 0 {
		t.Fatal("failed transfer must not be recorded")
	}

	waitForStatus(t, s, AliceAccountID, StatusIdle, time.Second)
}

func TestStore_UnknownAccountIsDistinct(t *testing.T) {
	s := NewStore(DefaultSeed(), Instant())
	ctx := context.Background()

	_, err := s.Transfer(ctx, UserAccountID, "chain_mallory", decimal.NewFromInt(1), TxTransfer)
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected unknown account, got %v", err)
	}
	if errors.Is(err, ErrInsufficientFunds) {
		t.Fatal("unknown account must not look like insufficient funds")
	}

	if _, err := s.Transfer(ctx, "ghost", UserAccountID, decimal.Zero, TxExecute); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected unknown source account, got %v", err)
	}
}

func TestStore_RejectsNegativeAmount(t *testing.T) {
	s := NewStore(DefaultSeed(), Instant())
	if _, err := s.Transfer(context.Background(), UserAccountID, BobAccountID, decimal.NewFromInt(-5), TxTransfer); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestStore_ZeroAmountMintRecordsPayload(t *testing.T) {
	s := NewStore(DefaultSeed(), Instant())
	tx, err := s.Transfer(context.Background(), UserAccountID, NFTAccountID, decimal.Zero, TxMint,
		WithParameters(map[string]string{"nft_name": "Genesis #1"}))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if tx.Parameters["standard"] != "ERC721" || tx.Parameters["nft_name"] != "Genesis #1" {
		t.Fatalf("unexpected mint payload: %v", tx.Parameters)
	}
	if !tx.GasFee.IsPositive() {
		t.Fatalf("expected positive gas fee, got %s", tx.GasFee)
	}
}

func TestStore_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	s := NewStore(DefaultSeed(), Options{Latency: 5 * time.Millisecond})
	ctx := context.Background()
	height := s.BlockHeight()

	const workers = 10
	amount := decimal.NewFromInt(200)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transfer(ctx, UserAccountID, BobAccountID, amount, TxTransfer); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 5 {
		t.Fatalf("expected exactly 5 transfers to fit in 1000, got %d", successes)
	}
	for _, a := range s.Accounts() {
		if a.Balance.IsNegative() {
			t.Fatalf("account %s went negative: %s", a.ID, a.Balance)
		}
	}
	if s.BlockHeight() != height+uint64(successes) {
		t.Fatalf("expected height %d, got %d", height+uint64(successes), s.BlockHeight())
	}
	user, _ := s.Account(UserAccountID)
	bob, _ := s.Account(BobAccountID)
	if !user.Balance.Add(bob.Balance).Equal(decimal.NewFromInt(1120)) {
		t.Fatalf("ledger not balanced: user=%s bob=%s", user.Balance, bob.Balance)
	}
}

func TestStore_NewStatusCancelsPendingReset(t *testing.T) {
	s := NewStore(DefaultSeed(), Options{Latency: 100 * time.Millisecond, SuccessHold: 30 * time.Millisecond})
	ctx := context.Background()

	if _, err := s.Transfer(ctx, UserAccountID, BobAccountID, decimal.NewFromInt(1), TxTransfer); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Transfer(ctx, UserAccountID, BobAccountID, decimal.NewFromInt(1), TxTransfer)
		done <- err
	}()

	// The first transfer's reset would fire at 30ms; the second transfer's
	// processing status must survive it.
	time.Sleep(60 * time.Millisecond)
	bob, _ := s.Account(BobAccountID)
	if bob.Status != StatusProcessing {
		t.Fatalf("expected processing to survive stale reset, got %s", bob.Status)
	}

	if err := <-done; err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	waitForStatus(t, s, BobAccountID, StatusIdle, time.Second)
}

func TestStore_CancelDuringLatencyDoesNotMutate(t *testing.T) {
	s := NewStore(DefaultSeed(), Options{Latency: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	height := s.BlockHeight()

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Transfer(ctx, UserAccountID, BobAccountID, decimal.NewFromInt(10), TxTransfer)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	user, _ := s.Account(UserAccountID)
	bob, _ := s.Account(BobAccountID)
	if !user.Balance.Equal(decimal.NewFromInt(1000)) || s.BlockHeight() != height {
		t.Fatalf("cancelled transfer mutated state: user=%s height=%d", user.Balance, s.BlockHeight())
	}
	if bob.Status != StatusIdle {
		t.Fatalf("expected destination back to idle, got %s", bob.Status)
	}
}

func TestStore_AccountsIsDefensiveCopy(t *testing.T) {
	s := NewStore(DefaultSeed(), Instant())
	accounts := s.Accounts()
	accounts[0].Balance = decimal.NewFromInt(1_000_000)
	accounts[0].Status = StatusError

	user, _ := s.Account(UserAccountID)
	if !user.Balance.Equal(decimal.NewFromInt(1000)) || user.Status != StatusIdle {
		t.Fatalf("snapshot mutation leaked into store: %+v", user)
	}

	_, _ = s.Transfer(context.Background(), UserAccountID, BobAccountID, decimal.NewFromInt(1), TxTransfer)
	txs := s.Transactions()
	txs[0].Parameters["memo"] = "tampered"
	if s.Transactions()[0].Parameters["memo"] != "Agentic Transfer" {
		t.Fatal("transaction payload mutation leaked into store")
	}
}

func TestStore_TransactionsNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s := NewStore(DefaultSeed(), Options{Now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Transfer(ctx, UserAccountID, BobAccountID, decimal.NewFromInt(int64(i+1)), TxTransfer); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	txs := s.Transactions()
	for i := 1; i < len(txs); i++ {
		if txs[i-1].Timestamp.Before(txs[i].Timestamp) {
			t.Fatalf("transactions not sorted newest first: %v before %v", txs[i-1].Timestamp, txs[i].Timestamp)
		}
	}
	if !txs[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected newest amount 3, got %s", txs[0].Amount)
	}
}

func TestStore_StatsAndReset(t *testing.T) {
	s := NewStore(DefaultSeed(), Instant())
	st := s.Stats()
	if st.TPS < 14000 || st.TPS >= 14500 {
		t.Fatalf("tps out of band: %d", st.TPS)
	}
	if st.Finality != 0.02 || st.ActiveChains != 5 || st.BlockHeight != 894200 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	SeedBalance(s, AliceAccountID, decimal.NewFromInt(7))
	_, _ = s.Transfer(context.Background(), UserAccountID, BobAccountID, decimal.NewFromInt(10), TxTransfer)
	s.Reset()

	alice, _ := s.Account(AliceAccountID)
	if !alice.Balance.Equal(decimal.NewFromInt(50)) || s.BlockHeight() != 894200 || len(s.Transactions()) != 0 {
		t.Fatalf("reset did not restore seed: alice=%s height=%d", alice.Balance, s.BlockHeight())
	}
}

type memJournal struct {
	mu  sync.Mutex
	txs []Transaction
	err error
}

func (j *memJournal) Record(_ context.Context, tx Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.txs = append(j.txs, tx)
	return nil
}

func TestStore_JournalReceivesConfirmedTransfers(t *testing.T) {
	journal := &memJournal{}
	opts := Instant()
	opts.Journal = journal
	s := NewStore(DefaultSeed(), opts)

	tx, err := s.Transfer(context.Background(), UserAccountID, BobAccountID, decimal.NewFromInt(5), TxTransfer)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if _, err := s.Transfer(context.Background(), AliceAccountID, BobAccountID, decimal.NewFromInt(500), TxTransfer); err == nil {
		t.Fatalf("expected insufficient funds")
	}

	if len(journal.txs) != 1 || journal.txs[0].ID != tx.ID {
		t.Fatalf("journal holds %+v, want only %s", journal.txs, tx.ID)
	}
}

func TestStore_JournalFailureDoesNotFailTransfer(t *testing.T) {
	opts := Instant()
	opts.Journal = &memJournal{err: errors.New("db down")}
	s := NewStore(DefaultSeed(), opts)

	if _, err := s.Transfer(context.Background(), UserAccountID, BobAccountID, decimal.NewFromInt(5), TxTransfer); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	bob, _ := s.Account(BobAccountID)
	if !bob.Balance.Equal(decimal.NewFromInt(125)) {
		t.Fatalf("bob balance %s, want 125", bob.Balance)
	}
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownAccount occurs when either side of a transfer names an account the
	// store does not hold.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount rejects negative transfer amounts. Zero is allowed and is
	// used for placeholder operations such as mints and votes.
	ErrInvalidAmount = errors.New("amount must not be negative")
)

// Kind is the category of an account.
type Kind string

const (
	KindUser  Kind = "user"
	KindAgent Kind = "agent"
	KindApp   Kind = "app"
)

// Status is the transient activity status shown on an account node.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// TxType tags a transaction record with the operation that produced it.
type TxType string

const (
	TxTransfer TxType = "TRANSFER"
	TxMint     TxType = "MINT"
	TxExecute  TxType = "EXECUTE"
)

// TxStatusConfirmed is the only status a recorded transaction ever carries.
const TxStatusConfirmed = "confirmed"

// Well-known account identifiers from the default seed.
const (
	UserAccountID  = "chain_user"
	AliceAccountID = "chain_alice"
	BobAccountID   = "chain_bob"
	NFTAccountID   = "app_nft"
	DAOAccountID   = "app_dao"
)

// Account is a balance-holding node of the simulated network.
type Account struct {
	ID      string
	Label   string
	Kind    Kind
	Balance decimal.Decimal
	Status  Status
}

// Transaction is an append-only record of a committed transfer.
type Transaction struct {
	ID          string
	FromID      string
	ToID        string
	From        string
	To          string
	Amount      decimal.Decimal
	Type        TxType
	Timestamp   time.Time
	BlockHeight uint64
	Status      string
	GasFee      decimal.Decimal
	Parameters  map[string]string
}

// Stats summarises network figures for the dashboard header.
type Stats struct {
	TPS          int
	Finality     float64
	ActiveChains int
	BlockHeight  uint64
}

// Seed is the initial state a store starts from and returns to on Reset.
type Seed struct {
	Accounts    []Account
	BlockHeight uint64
}

// DefaultSeed returns the demo network: one user chain, two counterparties and two apps.
func DefaultSeed() Seed {
	return Seed{
		BlockHeight: 894200,
		Accounts: []Account{
			{ID: UserAccountID, Label: "User Chain", Kind: KindUser, Balance: decimal.NewFromInt(1000)},
			{ID: AliceAccountID, Label: "Alice Chain", Kind: KindAgent, Balance: decimal.NewFromInt(50)},
			{ID: BobAccountID, Label: "Bob Chain", Kind: KindAgent, Balance: decimal.NewFromInt(120)},
			{ID: NFTAccountID, Label: "NFT App", Kind: KindApp, Balance: decimal.Zero},
			{ID: DAOAccountID, Label: "DAO App", Kind: KindApp, Balance: decimal.NewFromInt(5000)},
		},
	}
}

// Journal receives every confirmed transaction. It is an audit sink only; the
// store never reads from it.
type Journal interface {
	Record(ctx context.Context, tx Transaction) error
}

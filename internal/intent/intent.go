// Package intent models structured user requests produced by the classifier and
// consumed by the executor.
package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidIntent reports an intent whose parameters do not match its type.
var ErrInvalidIntent = errors.New("invalid intent")

// Type enumerates the actions an intent can request.
type Type string

const (
	TypeTransfer Type = "TRANSFER"
	TypeMintNFT  Type = "MINT_NFT"
	TypeVoteDAO  Type = "VOTE_DAO"
	TypeQuery    Type = "QUERY"
	TypeUnknown  Type = "UNKNOWN"
)

// Types lists every intent type in wire order.
var Types = []Type{TypeTransfer, TypeMintNFT, TypeVoteDAO, TypeQuery, TypeUnknown}

// ParseType matches a wire value case-insensitively.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidIntent, s)
}

// VoteChoice is a DAO ballot option.
type VoteChoice string

const (
	VoteYes VoteChoice = "yes"
	VoteNo  VoteChoice = "no"
)

// Params carries the fields a given intent type needs. Only the variants in this
// package implement it.
type Params interface {
	Kind() Type
	sealed()
}

// TransferParams moves Amount to the intent target.
type TransferParams struct {
	Amount decimal.Decimal
}

// MintParams creates an NFT; an empty name means the name is left to context.
type MintParams struct {
	NFTName string
}

// VoteParams casts a ballot.
type VoteParams struct {
	Choice     VoteChoice
	ProposalID string
}

// QueryParams asks about a subject.
type QueryParams struct {
	Subject string
}

// NoParams belongs to UNKNOWN intents.
type NoParams struct{}

func (TransferParams) Kind() Type { return TypeTransfer }
func (MintParams) Kind() Type     { return TypeMintNFT }
func (VoteParams) Kind() Type     { return TypeVoteDAO }
func (QueryParams) Kind() Type    { return TypeQuery }
func (NoParams) Kind() Type       { return TypeUnknown }

func (TransferParams) sealed() {}
func (MintParams) sealed()     {}
func (VoteParams) sealed()     {}
func (QueryParams) sealed()    {}
func (NoParams) sealed()       {}

// Intent is a single requested action. It is immutable once built.
type Intent struct {
	Type        Type
	Target      string
	Description string
	Confidence  float64
	Reasoning   string
	Params      Params
}

// Amount returns the transfer amount, or zero for every other type.
func (i Intent) Amount() decimal.Decimal {
	if p, ok := i.Params.(TransferParams); ok {
		return p.Amount
	}
	return decimal.Zero
}

// Validate checks that the parameter variant matches the type and the values are in range.
func (i Intent) Validate() error {
	if _, err := ParseType(string(i.Type)); err != nil {
		return err
	}
	if i.Params == nil {
		return fmt.Errorf("%w: %s has no parameters", ErrInvalidIntent, i.Type)
	}
	if i.Params.Kind() != i.Type {
		return fmt.Errorf("%w: %s carries %s parameters", ErrInvalidIntent, i.Type, i.Params.Kind())
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrInvalidIntent, i.Confidence)
	}
	switch p := i.Params.(type) {
	case TransferParams:
		if p.Amount.IsNegative() {
			return fmt.Errorf("%w: negative amount %s", ErrInvalidIntent, p.Amount)
		}
	case VoteParams:
		if p.Choice != "" && p.Choice != VoteYes && p.Choice != VoteNo {
			return fmt.Errorf("%w: vote choice %q", ErrInvalidIntent, p.Choice)
		}
	}
	return nil
}

// Fallback is the single intent returned when the classifier cannot be used.
func Fallback() Intent {
	return Intent{
		Type:        TypeUnknown,
		Description: "Failed to parse intent.",
		Confidence:  0,
		Reasoning:   "Error connecting to AI service.",
		Params:      NoParams{},
	}
}

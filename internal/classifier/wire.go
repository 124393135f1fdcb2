package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nexus-chain/nexus/internal/intent"
)

// WirePlan is the JSON document exchanged with the model and with HTTP clients.
type WirePlan struct {
	Intents []WireIntent `json:"intents"`
	Summary string       `json:"summary"`
}

// WireIntent is the loosely typed JSON form of an intent.
type WireIntent struct {
	Type        string           `json:"type"`
	Target      string           `json:"target,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Params      *WireParams      `json:"params,omitempty"`
	Description string           `json:"description"`
	Confidence  *float64         `json:"confidence"`
	Reasoning   string           `json:"reasoning,omitempty"`
}

// WireParams holds every optional parameter the schema allows.
type WireParams struct {
	NFTName    string `json:"nftName,omitempty"`
	VoteChoice string `json:"voteChoice,omitempty"`
	ProposalID string `json:"proposalId,omitempty"`
	Subject    string `json:"subject,omitempty"`
}

type rawPlan struct {
	Intents *[]WireIntent `json:"intents"`
	Summary *string       `json:"summary"`
}

// DecodePlan parses and validates a model response. Unknown intent types, missing
// required fields and mismatched parameters are reported as ErrMalformed;
// confidence values are clamped into [0,1].
func DecodePlan(data []byte) (Plan, error) {
	var raw rawPlan
	if err := json.Unmarshal(data, &raw); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Intents == nil {
		return Plan{}, fmt.Errorf("%w: missing intents", ErrMalformed)
	}
	if raw.Summary == nil {
		return Plan{}, fmt.Errorf("%w: missing summary", ErrMalformed)
	}
	return FromWire(WirePlan{Intents: *raw.Intents, Summary: *raw.Summary})
}

// FromWire converts a wire plan into validated intents.
func FromWire(w WirePlan) (Plan, error) {
	plan := Plan{Summary: w.Summary, Intents: make([]intent.Intent, 0, len(w.Intents))}
	for i, wi := range w.Intents {
		in, err := wi.toIntent()
		if err != nil {
			return Plan{}, fmt.Errorf("%w: intent %d: %v", ErrMalformed, i, err)
		}
		plan.Intents = append(plan.Intents, in)
	}
	return plan, nil
}

func (w WireIntent) toIntent() (intent.Intent, error) {
	t, err := intent.ParseType(w.Type)
	if err != nil {
		return intent.Intent{}, err
	}
	if strings.TrimSpace(w.Description) == "" {
		return intent.Intent{}, fmt.Errorf("missing description")
	}
	if w.Confidence == nil {
		return intent.Intent{}, fmt.Errorf("missing confidence")
	}

	var p WireParams
	if w.Params != nil {
		p = *w.Params
	}

	in := intent.Intent{
		Type:        t,
		Target:      strings.TrimSpace(w.Target),
		Description: w.Description,
		Confidence:  min(max(*w.Confidence, 0), 1),
		Reasoning:   w.Reasoning,
	}

	switch t {
	case intent.TypeTransfer:
		amount := decimal.Zero
		if w.Amount != nil {
			amount = *w.Amount
		}
		in.Params = intent.TransferParams{Amount: amount}
	case intent.TypeMintNFT:
		in.Params = intent.MintParams{NFTName: p.NFTName}
	case intent.TypeVoteDAO:
		choice, err := parseVoteChoice(p.VoteChoice)
		if err != nil {
			return intent.Intent{}, err
		}
		in.Params = intent.VoteParams{Choice: choice, ProposalID: p.ProposalID}
	case intent.TypeQuery:
		subject := p.Subject
		if subject == "" {
			subject = w.Description
		}
		in.Params = intent.QueryParams{Subject: subject}
	default:
		in.Params = intent.NoParams{}
	}

	if err := in.Validate(); err != nil {
		return intent.Intent{}, err
	}
	return in, nil
}

func parseVoteChoice(s string) (intent.VoteChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "yes", "y", "for", "approve", "aye":
		return intent.VoteYes, nil
	case "no", "n", "against", "reject", "nay":
		return intent.VoteNo, nil
	default:
		return "", fmt.Errorf("vote choice %q", s)
	}
}

// ToWire renders a plan for transport.
func ToWire(p Plan) WirePlan {
	out := WirePlan{Summary: p.Summary, Intents: make([]WireIntent, 0, len(p.Intents))}
	for _, in := range p.Intents {
		out.Intents = append(out.Intents, IntentToWire(in))
	}
	return out
}

// IntentToWire renders a single intent for transport.
func IntentToWire(in intent.Intent) WireIntent {
	conf := in.Confidence
	w := WireIntent{
		Type:        string(in.Type),
		Target:      in.Target,
		Description: in.Description,
		Confidence:  &conf,
		Reasoning:   in.Reasoning,
	}
	switch p := in.Params.(type) {
	case intent.TransferParams:
		amount := p.Amount
		w.Amount = &amount
	case intent.MintParams:
		if p.NFTName != "" {
			w.Params = &WireParams{NFTName: p.NFTName}
		}
	case intent.VoteParams:
		w.Params = &WireParams{VoteChoice: string(p.Choice), ProposalID: p.ProposalID}
	case intent.QueryParams:
		w.Params = &WireParams{Subject: p.Subject}
	}
	return w
}

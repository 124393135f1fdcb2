package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nexus-chain/nexus/internal/intent"
)

var (
	clauseSplit = regexp.MustCompile(`(?i)\s*[,;]\s+|\s+(?:and then|and|then)\s+`)
	amountRe    = regexp.MustCompile(`\$?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)
	quotedRe    = regexp.MustCompile(`["'“]([^"'”]+)["'”]`)
	namedRe     = regexp.MustCompile(`(?i)\b(?:called|named)\s+([\w-]+(?:\s+[\w-]+)?)`)
	proposalRe  = regexp.MustCompile(`(?i)(?:proposal\s*#?\s*|#)(\w+)`)
)

var verbs = map[string]intent.Type{
	"pay":      intent.TypeTransfer,
	"send":     intent.TypeTransfer,
	"transfer": intent.TypeTransfer,
	"give":     intent.TypeTransfer,
	"tip":      intent.TypeTransfer,
	"mint":     intent.TypeMintNFT,
	"create":   intent.TypeMintNFT,
	"vote":     intent.TypeVoteDAO,
	"propose":  intent.TypeVoteDAO,
	"check":    intent.TypeQuery,
	"show":     intent.TypeQuery,
	"what":     intent.TypeQuery,
	"how":      intent.TypeQuery,
	"list":     intent.TypeQuery,
	"query":    intent.TypeQuery,
	"view":     intent.TypeQuery,
}

// targets maps a mention to its display name.
var targets = map[string]string{
	"alice":      "Alice",
	"bob":        "Bob",
	"nft":        "NFT",
	"nfts":       "NFT",
	"collection": "NFT Collection",
	"dao":        "DAO",
	"proposal":   "DAO",
}

var pronouns = map[string]bool{
	"it": true, "him": true, "her": true, "them": true, "that": true,
}

var ballots = map[string]intent.VoteChoice{
	"yes": intent.VoteYes, "for": intent.VoteYes, "approve": intent.VoteYes,
	"no": intent.VoteNo, "against": intent.VoteNo, "reject": intent.VoteNo,
}

var queryFiller = map[string]bool{
	"the": true, "my": true, "me": true, "a": true, "an": true, "is": true, "are": true,
	"of": true, "on": true, "please": true, "current": true, "what": true, "how": true,
	"show": true, "check": true, "list": true, "query": true, "view": true, "much": true,
	"many": true, "do": true, "i": true, "have": true,
}

// Rules is a deterministic keyword classifier applying the same confidence
// policy as the model prompt. It needs no network access.
type Rules struct{}

// NewRules returns a rule-based classifier.
func NewRules() *Rules {
	return &Rules{}
}

// Classify splits the text into clauses and classifies each one in order.
func (r *Rules) Classify(_ context.Context, text string) (Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Plan{Intents: []intent.Intent{}, Summary: "Nothing to do."}, nil
	}

	var intents []intent.Intent
	for _, clause := range clauseSplit.Split(text, -1) {
		if in, ok := classifyClause(clause); ok {
			intents = append(intents, in)
		}
	}
	if len(intents) == 0 {
		intents = []intent.Intent{{
			Type:        intent.TypeUnknown,
			Description: "Unrecognised request.",
			Confidence:  intent.Score(intent.Signals{Gibberish: true}),
			Reasoning:   "Unrelated or unparseable input (-0.5).",
			Params:      intent.NoParams{},
		}}
	}
	return Plan{Intents: intents, Summary: summarize(intents)}, nil
}

type clauseFacts struct {
	raw      string
	words    []string
	verb     intent.Type
	target   string
	pronoun  bool
	amount   *decimal.Decimal
	ballot   intent.VoteChoice
	question bool
}

func observe(clause string) clauseFacts {
	f := clauseFacts{raw: strings.TrimSpace(clause), question: strings.Contains(clause, "?")}
	for _, w := range strings.Fields(strings.ToLower(clause)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" {
			continue
		}
		f.words = append(f.words, w)
		if t, ok := verbs[w]; ok && f.verb == "" {
			f.verb = t
		}
		if name, ok := targets[w]; ok && f.target == "" {
			f.target = name
		}
		if pronouns[w] {
			f.pronoun = true
		}
		if b, ok := ballots[w]; ok && f.ballot == "" {
			f.ballot = b
		}
	}
	amountText := clause
	if f.verb == intent.TypeVoteDAO || (f.verb == "" && f.ballot != "") {
		amountText = proposalRe.ReplaceAllString(clause, " ")
	}
	if m := amountRe.FindStringSubmatch(amountText); m != nil {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			f.amount = &d
		}
	}
	return f
}

// kind infers the intent type, reporting whether an explicit verb stated it.
func (f clauseFacts) kind() (intent.Type, bool) {
	if f.verb != "" {
		return f.verb, true
	}
	switch {
	case f.target == "DAO" && f.ballot != "":
		return intent.TypeVoteDAO, false
	case strings.HasPrefix(f.target, "NFT"):
		return intent.TypeMintNFT, false
	case f.amount != nil && f.target != "":
		return intent.TypeTransfer, false
	case f.question:
		return intent.TypeQuery, false
	case f.target != "" || f.amount != nil:
		return intent.TypeUnknown, false
	}
	return "", false
}

func classifyClause(clause string) (intent.Intent, bool) {
	f := observe(clause)
	if len(f.words) == 0 {
		return intent.Intent{}, false
	}
	t, explicit := f.kind()
	if t == "" {
		return intent.Intent{}, false
	}

	sig := intent.Signals{
		ExplicitAction:    explicit,
		TargetResolved:    f.target != "",
		UnresolvedPronoun: f.pronoun && f.target == "",
	}
	in := intent.Intent{Type: t, Target: f.target}

	switch t {
	case intent.TypeTransfer:
		amount := decimal.Zero
		if f.amount != nil {
			amount = *f.amount
		}
		sig.Completeness = intent.TransferCompleteness(f.amount != nil, sig.TargetResolved)
		in.Params = intent.TransferParams{Amount: amount}
		in.Description = transferDescription(f)
	case intent.TypeMintNFT:
		name := nftName(f.raw)
		if name != "" || strings.HasPrefix(f.target, "NFT") {
			sig.Completeness = 1
		}
		if in.Target == "" {
			in.Target = "NFT"
		}
		in.Params = intent.MintParams{NFTName: name}
		in.Description = "Mint an NFT"
		if name != "" {
			in.Description = fmt.Sprintf("Mint NFT %q", name)
		}
	case intent.TypeVoteDAO:
		if f.ballot != "" {
			sig.Completeness = 1
		}
		if in.Target == "" {
			in.Target = "DAO"
		}
		var proposal string
		if m := proposalRe.FindStringSubmatch(f.raw); m != nil {
			proposal = m[1]
		}
		in.Params = intent.VoteParams{Choice: f.ballot, ProposalID: proposal}
		in.Description = voteDescription(f.ballot, proposal)
	case intent.TypeQuery:
		subject := querySubject(f.words)
		if subject != "" {
			sig.Completeness = 1
		}
		in.Params = intent.QueryParams{Subject: subject}
		in.Description = "Answer a question"
		if subject != "" {
			in.Description = "Look up " + subject
		}
	default:
		in.Params = intent.NoParams{}
		in.Description = "Unclear request: " + f.raw
	}

	in.Confidence = intent.Score(sig)
	in.Reasoning = reasoning(sig, t, f.amount != nil)
	return in, true
}

func transferDescription(f clauseFacts) string {
	switch {
	case f.amount != nil && f.target != "":
		return fmt.Sprintf("Transfer %s tokens to %s", f.amount, f.target)
	case f.amount != nil:
		return fmt.Sprintf("Transfer %s tokens (recipient unclear)", f.amount)
	case f.target != "":
		return fmt.Sprintf("Transfer tokens to %s (amount missing)", f.target)
	default:
		return "Transfer tokens"
	}
}

func voteDescription(choice intent.VoteChoice, proposal string) string {
	var b strings.Builder
	b.WriteString("Vote")
	if choice != "" {
		b.WriteString(" " + string(choice))
	}
	b.WriteString(" on DAO proposal")
	if proposal != "" {
		b.WriteString(" #" + proposal)
	}
	return b.String()
}

func nftName(clause string) string {
	if m := quotedRe.FindStringSubmatch(clause); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := namedRe.FindStringSubmatch(clause); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func querySubject(words []string) string {
	var rest []string
	for _, w := range words {
		if queryFiller[w] {
			continue
		}
		rest = append(rest, w)
	}
	return strings.Join(rest, " ")
}

func reasoning(s intent.Signals, t intent.Type, hasAmount bool) string {
	var parts []string
	if s.ExplicitAction {
		parts = append(parts, "action explicit (+0.4)")
	} else {
		parts = append(parts, "action implied")
	}
	if s.TargetResolved {
		parts = append(parts, "target resolved (+0.3)")
	} else {
		parts = append(parts, "target missing")
	}
	switch {
	case s.Completeness >= 1:
		parts = append(parts, "parameters complete (+0.3)")
	case t == intent.TypeTransfer && hasAmount:
		parts = append(parts, "amount without target (+0.15)")
	default:
		parts = append(parts, "parameters missing")
	}
	if s.UnresolvedPronoun {
		parts = append(parts, "unresolved pronoun (-0.2)")
	}
	if s.Gibberish {
		parts = append(parts, "unrelated input (-0.5)")
	}
	out := strings.Join(parts, ", ")
	return strings.ToUpper(out[:1]) + out[1:] + "."
}

func summarize(intents []intent.Intent) string {
	if len(intents) == 1 {
		return intents[0].Description + "."
	}
	descs := make([]string, 0, len(intents))
	for _, in := range intents {
		descs = append(descs, in.Description)
	}
	return fmt.Sprintf("%d-step plan: %s.", len(intents), strings.Join(descs, ", then "))
}

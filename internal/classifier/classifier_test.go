package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/nexus-chain/nexus/internal/intent"
	"github.com/nexus-chain/nexus/internal/logging"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
	model string
	cfg   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

type failing struct{ calls int }

func (f *failing) Classify(context.Context, string) (Plan, error) {
	f.calls++
	return Plan{}, ErrUnavailable
}

type blocking struct{}

func (blocking) Classify(ctx context.Context, _ string) (Plan, error) {
	<-ctx.Done()
	return Plan{}, ctx.Err()
}

func TestRulesFullySpecifiedTransfer(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "Pay Bob 50 tokens")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)

	in := plan.Intents[0]
	assert.Equal(t, intent.TypeTransfer, in.Type)
	assert.Equal(t, "Bob", in.Target)
	assert.True(t, in.Amount().Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1.0, in.Confidence)
	assert.NotEmpty(t, plan.Summary)
}

func TestRulesMissingTargetScoresLow(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "Send 50")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.LessOrEqual(t, plan.Intents[0].Confidence, 0.55)
	assert.Equal(t, 0.55, plan.Intents[0].Confidence)
}

func TestRulesVoteWithImpliedTarget(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "Vote yes")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)

	in := plan.Intents[0]
	assert.Equal(t, intent.TypeVoteDAO, in.Type)
	assert.Equal(t, 0.7, in.Confidence)
	assert.Equal(t, intent.VoteParams{Choice: intent.VoteYes}, in.Params)
	assert.Equal(t, "DAO", in.Target)
}

func TestRulesMultiStepKeepsOrder(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "Pay Bob 10 and then mint an NFT called \"Sunset\"")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 2)
	assert.Equal(t, intent.TypeTransfer, plan.Intents[0].Type)
	assert.Equal(t, intent.TypeMintNFT, plan.Intents[1].Type)
	assert.Equal(t, intent.MintParams{NFTName: "Sunset"}, plan.Intents[1].Params)
}

func TestRulesGroupedAmount(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "Pay Bob 1,000 tokens")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.True(t, plan.Intents[0].Amount().Equal(decimal.NewFromInt(1000)), "amount %s", plan.Intents[0].Amount())
	assert.Equal(t, 1.0, plan.Intents[0].Confidence)

	plan, err = NewRules().Classify(context.Background(), "Send Alice $2,500.75")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.True(t, plan.Intents[0].Amount().Equal(decimal.RequireFromString("2500.75")))
}

func TestRulesTransferAmountBesideProposalOrTag(t *testing.T) {
	cases := map[string]struct {
		text   string
		target string
		amount int64
	}{
		"proposal word": {"Pay Bob 25 for the proposal review", "Bob", 25},
		"hash tag":      {"Send Alice 40 #dinner", "Alice", 40},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			plan, err := NewRules().Classify(context.Background(), tc.text)
			require.NoError(t, err)
			require.Len(t, plan.Intents, 1)
			in := plan.Intents[0]
			assert.Equal(t, intent.TypeTransfer, in.Type)
			assert.Equal(t, tc.target, in.Target)
			assert.True(t, in.Amount().Equal(decimal.NewFromInt(tc.amount)), "amount %s", in.Amount())
			assert.Equal(t, 1.0, in.Confidence)
		})
	}
}

func TestRulesVoteProposalIsNotAnAmount(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "Vote yes on proposal 42")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, intent.VoteParams{Choice: intent.VoteYes, ProposalID: "42"}, plan.Intents[0].Params)
}

func TestRulesPronounPenalty(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "pay him 50")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, 0.35, plan.Intents[0].Confidence)
}

func TestRulesGibberish(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "blorp zzkx wibble")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, intent.TypeUnknown, plan.Intents[0].Type)
	assert.Zero(t, plan.Intents[0].Confidence)
}

func TestRulesQuery(t *testing.T) {
	plan, err := NewRules().Classify(context.Background(), "What is my balance?")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, intent.TypeQuery, plan.Intents[0].Type)
	assert.Equal(t, intent.QueryParams{Subject: "balance"}, plan.Intents[0].Params)
}

func TestDecodePlan(t *testing.T) {
	plan, err := DecodePlan([]byte(`{
		"intents": [
			{"type":"TRANSFER","target":"Bob","amount":10,"description":"Pay Bob","confidence":1.4,"reasoning":"Fully specified"},
			{"type":"VOTE_DAO","params":{"voteChoice":"Yes","proposalId":"7"},"description":"Vote","confidence":0.7}
		],
		"summary":"two steps"
	}`))
	require.NoError(t, err)
	require.Len(t, plan.Intents, 2)
	assert.Equal(t, 1.0, plan.Intents[0].Confidence)
	assert.True(t, plan.Intents[0].Amount().Equal(decimal.NewFromInt(10)))
	assert.Equal(t, intent.VoteParams{Choice: intent.VoteYes, ProposalID: "7"}, plan.Intents[1].Params)
	assert.Equal(t, "two steps", plan.Summary)
}

func TestDecodePlanRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":            `hello`,
		"missing intents":     `{"summary":"x"}`,
		"missing summary":     `{"intents":[]}`,
		"unknown type":        `{"intents":[{"type":"BURN","description":"x","confidence":1}],"summary":"x"}`,
		"missing description": `{"intents":[{"type":"QUERY","confidence":1}],"summary":"x"}`,
		"missing confidence":  `{"intents":[{"type":"QUERY","description":"x"}],"summary":"x"}`,
		"negative amount":     `{"intents":[{"type":"TRANSFER","amount":-5,"description":"x","confidence":1}],"summary":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePlan([]byte(body))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestGeminiClassify(t *testing.T) {
	gen := &fakeGenerator{text: `{"intents":[{"type":"TRANSFER","target":"Bob","amount":50,"description":"Pay Bob 50","confidence":1}],"summary":"Pay Bob"}`}
	g := newGemini(gen, "", logging.Discard())

	plan, err := g.Classify(context.Background(), "Pay Bob 50 tokens")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, DefaultModel, gen.model)
	assert.Equal(t, "application/json", gen.cfg.ResponseMIMEType)
	require.NotNil(t, gen.cfg.ResponseSchema)
	assert.Equal(t, []string{"intents", "summary"}, gen.cfg.ResponseSchema.Required)
}

func TestGeminiErrors(t *testing.T) {
	g := newGemini(&fakeGenerator{err: errors.New("dial tcp: refused")}, "m", nil)
	_, err := g.Classify(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnavailable)

	g = newGemini(&fakeGenerator{text: "   "}, "m", nil)
	_, err = g.Classify(context.Background(), "x")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "", nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestResilientFallsBack(t *testing.T) {
	r := NewResilient(&failing{}, ResilientOptions{Timeout: time.Second}, logging.Discard())

	plan := r.Parse(context.Background(), "Pay Bob 50")
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, intent.TypeUnknown, plan.Intents[0].Type)
	assert.Zero(t, plan.Intents[0].Confidence)
	assert.NotEmpty(t, plan.Intents[0].Reasoning)
	assert.Equal(t, FallbackSummary, plan.Summary)
}

func TestResilientMalformedOutputFallsBack(t *testing.T) {
	g := newGemini(&fakeGenerator{text: `{"intents":[{"type":"TELEPORT","description":"x","confidence":1}],"summary":"x"}`}, "", nil)
	r := NewResilient(g, ResilientOptions{}, nil)

	plan := r.Parse(context.Background(), "teleport")
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, intent.TypeUnknown, plan.Intents[0].Type)
}

func TestResilientTimeout(t *testing.T) {
	r := NewResilient(blocking{}, ResilientOptions{Timeout: 20 * time.Millisecond}, nil)
	plan := r.Parse(context.Background(), "Pay Bob 50")
	assert.Equal(t, FallbackSummary, plan.Summary)
}

func TestResilientBreakerOpens(t *testing.T) {
	inner := &failing{}
	r := NewResilient(inner, ResilientOptions{MaxFailures: 2, OpenDuration: time.Minute}, nil)

	for i := 0; i < 4; i++ {
		r.Parse(context.Background(), "x")
	}
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "open", r.State())
}

func TestResilientPassesThrough(t *testing.T) {
	r := NewResilient(NewRules(), DefaultResilientOptions(), nil)
	plan, err := r.Classify(context.Background(), "Pay Bob 50 tokens")
	require.NoError(t, err)
	require.Len(t, plan.Intents, 1)
	assert.Equal(t, 1.0, plan.Intents[0].Confidence)
	assert.Equal(t, "closed", r.State())
}

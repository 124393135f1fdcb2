package intent

import "math"

// Scoring weights.
const (
	WeightAction        = 0.4
	WeightTarget        = 0.3
	WeightParameters    = 0.3
	PenaltyPronoun      = 0.2
	PenaltyGibberish    = 0.5
	partialAmountCredit = 0.5
)

// Signals are the observations confidence is computed from.
type Signals struct {
	// ExplicitAction is set when an action verb (pay, send, mint, vote...) is present.
	ExplicitAction bool
	// TargetResolved is set when a target is named and maps to a known account.
	TargetResolved bool
	// Completeness is the fraction in [0,1] of required parameters that are present.
	Completeness float64
	// UnresolvedPronoun is set when the request leans on "it", "him" and similar.
	UnresolvedPronoun bool
	// Gibberish is set for unrelated or unparseable input.
	Gibberish bool
}

// Score applies the additive confidence policy and clamps the result to [0,1],
// rounded to two decimals.
func Score(s Signals) float64 {
	score := 0.0
	if s.ExplicitAction {
		score += WeightAction
	}
	if s.TargetResolved {
		score += WeightTarget
	}
	score += WeightParameters * clamp(s.Completeness)
	if s.UnresolvedPronoun {
		score -= PenaltyPronoun
	}
	if s.Gibberish {
		score -= PenaltyGibberish
	}
	return math.Round(clamp(score)*100) / 100
}

// TransferCompleteness grades a transfer: an amount with a resolved target is
// complete, an amount alone earns half credit, no amount earns nothing.
func TransferCompleteness(hasAmount, targetResolved bool) float64 {
	switch {
	case hasAmount && targetResolved:
		return 1
	case hasAmount:
		return partialAmountCredit
	default:
		return 0
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Package classifier turns free text into an ordered plan of intents.
//
// Two classifiers are provided: Gemini, which delegates to the Gemini API with a
// JSON response schema, and Rules, a deterministic keyword classifier that applies
// the same confidence policy locally. Resilient wraps either one so callers never
// see a classifier fault: failures degrade into FallbackPlan.
package classifier

import (
	"context"
	"errors"

	"github.com/nexus-chain/nexus/internal/intent"
)

var (
	// ErrUnavailable means the classifier backend could not be reached.
	ErrUnavailable = errors.New("classifier unavailable")

	// ErrMalformed means the backend answered with output that violates the plan contract.
	ErrMalformed = errors.New("malformed classifier response")

	// ErrMissingAPIKey is returned when a remote classifier is built without credentials.
	ErrMissingAPIKey = errors.New("classifier api key is required")
)

// FallbackSummary is the apology shown when classification fails.
const FallbackSummary = "I encountered an error parsing that request."

// Plan is the classifier output: intents in execution order plus a readable summary.
type Plan struct {
	Intents []intent.Intent
	Summary string
}

// Classifier maps a single instruction to a plan.
type Classifier interface {
	Classify(ctx context.Context, text string) (Plan, error)
}

// FallbackPlan is the plan substituted for any classifier failure: exactly one
// UNKNOWN intent with zero confidence.
func FallbackPlan() Plan {
	return Plan{
		Intents: []intent.Intent{intent.Fallback()},
		Summary: FallbackSummary,
	}
}

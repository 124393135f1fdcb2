package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/nexus-chain/nexus/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

const temperature float32 = 0.1

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini classifies through the Gemini API using a JSON response schema.
type Gemini struct {
	models generator
	model  string
	logger *slog.Logger
}

// NewGemini creates a Gemini-backed classifier.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, model, logger), nil
}

func newGemini(models generator, model string, logger *slog.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		models: models,
		model:  model,
		logger: logging.Component(logger, "classifier.gemini"),
	}
}

// Classify sends the instruction to the model and decodes the structured answer.
func (g *Gemini) Classify(ctx context.Context, text string) (Plan, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
		Temperature:       genai.Ptr(temperature),
	})
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	out := resp.Text()
	if strings.TrimSpace(out) == "" {
		return Plan{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	plan, err := DecodePlan([]byte(out))
	if err != nil {
		g.logger.Warn("model output rejected", slog.String("model", g.model), slog.Any("error", err))
		return Plan{}, err
	}
	g.logger.Debug("plan decoded", slog.String("model", g.model), slog.Int("intents", len(plan.Intents)))
	return plan, nil
}

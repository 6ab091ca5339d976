package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// GenAIGenerator generates recommendations with Google's Gemini API. The
// response is constrained to {"recommendation": string}.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a generator for apiKey.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"recommendation": {
					Type:        genai.TypeString,
					Description: "Recommended training programs or resources.",
				},
			},
			Required: []string{"recommendation"},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return decodeRecommendation(resp.Text()), nil
}

// decodeRecommendation unwraps the structured answer, falling back to the raw
// text when the model ignored the schema.
func decodeRecommendation(text string) string {
	var out Recommendation
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err == nil && out.Recommendation != "" {
		return out.Recommendation
	}
	return text
}

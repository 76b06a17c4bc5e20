package druginfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: client.GenerativeModel(model)}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return sb.String(), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

const promptTemplate = `
You are a medical assistant. Provide details in JSON format for the following medicines:
%s

Format:
[
  {
    "medicine": "Paracetamol",
    "drugNames": ["Tylenol", "Panadol"],
    "sideEffects": ["Nausea", "Rash"],
    "remedies": ["Drink water", "Use antihistamines"],
    "description": "Used to treat pain and fever.",
    "precautions": ["Avoid alcohol", "Check liver health"]
  },
  ...
]
`

// BuildPrompt renders the lookup prompt for a batch of names.
func BuildPrompt(names []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(names, ", "))
}

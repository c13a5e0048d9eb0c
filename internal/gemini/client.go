// Package gemini provides the shared generative model client.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/covera/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var ErrMissingAPIKey = errors.New("gemini_api_key_missing")

var Module = fx.Module("gemini",
	fx.Provide(New),
)

// Generator is the content generation surface of genai.Models.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func New(cfg config.Config, log *zap.Logger) (Generator, error) {
	key := strings.TrimSpace(cfg.Gemini.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	log.Named("gemini").Info("gemini client ready",
		zap.String("vision_model", cfg.Gemini.VisionModel),
		zap.String("agent_model", cfg.Gemini.AgentModel),
	)
	return client.Models, nil
}

// Text concatenates the text parts of the first candidate.
func Text(resp *genai.GenerateContentResponse) string {
	content := firstContent(resp)
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// FunctionCalls returns the function calls requested by the first candidate.
func FunctionCalls(resp *genai.GenerateContentResponse) []*genai.FunctionCall {
	content := firstContent(resp)
	if content == nil {
		return nil
	}
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

// Content returns the first candidate's content, nil when the model sent none.
func Content(resp *genai.GenerateContentResponse) *genai.Content {
	return firstContent(resp)
}

func firstContent(resp *genai.GenerateContentResponse) *genai.Content {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	return resp.Candidates[0].Content
}

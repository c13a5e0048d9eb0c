// Package dialogue drives the model through one conversational turn,
// executing the capability calls it requests until it answers in text.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/gemini"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel    = "gemini-2.0-flash"
	defaultMaxSteps = 8
	defaultTimeout  = 60 * time.Second
)

var (
	ErrEmptyReply    = errors.New("empty_model_reply")
	ErrTooManySteps  = errors.New("too_many_capability_steps")
	ErrModelFailure  = errors.New("model_failure")
	ErrEmptyDialogue = errors.New("empty_dialogue")
)

// Tools is the set of capabilities available during one turn.
type Tools interface {
	Declarations() []*genai.FunctionDeclaration
	Call(ctx context.Context, name string, args map[string]any) map[string]any
}

type Dialogue interface {
	Respond(ctx context.Context, instructions string, history []sessiondomain.Message, tools Tools) (string, error)
}

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	Generator gemini.Generator
}

type Gemini struct {
	generator gemini.Generator
	model     string
	maxSteps  int
	timeout   time.Duration
	log       *zap.Logger
}

func New(p Params) Dialogue {
	return NewGemini(p.Generator, p.Cfg.Gemini.AgentModel, p.Cfg.Gemini.MaxSteps, p.Cfg.Gemini.Timeout, p.Log)
}

func NewGemini(generator gemini.Generator, model string, maxSteps int, timeout time.Duration, log *zap.Logger) *Gemini {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gemini{
		generator: generator,
		model:     model,
		maxSteps:  maxSteps,
		timeout:   timeout,
		log:       log.Named("assistant.dialogue"),
	}
}

// Respond sends the history and runs the requested capabilities, feeding
// their results back, for at most maxSteps model calls.
func (g *Gemini) Respond(ctx context.Context, instructions string, history []sessiondomain.Message, tools Tools) (string, error) {
	contents := toContents(history)
	if len(contents) == 0 {
		return "", ErrEmptyDialogue
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if strings.TrimSpace(instructions) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(instructions)}}
	}
	if tools != nil {
		if decls := tools.Declarations(); len(decls) > 0 {
			cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	for step := 0; step < g.maxSteps; step++ {
		resp, err := g.generator.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrModelFailure, err)
		}
		calls := gemini.FunctionCalls(resp)
		if len(calls) == 0 {
			reply := strings.TrimSpace(gemini.Text(resp))
			if reply == "" {
				return "", ErrEmptyReply
			}
			return reply, nil
		}
		if tools == nil {
			return "", fmt.Errorf("%w: capability %q requested without tools", ErrModelFailure, calls[0].Name)
		}

		contents = append(contents, gemini.Content(resp))
		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			g.log.Debug("capability requested", zap.String("capability", call.Name), zap.Int("step", step))
			result := tools.Call(ctx, call.Name, call.Args)
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: result,
			}})
		}
		contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: parts})
	}
	return "", fmt.Errorf("%w: %d", ErrTooManySteps, g.maxSteps)
}

// toContents maps stored history to model turns. System notes are sent as
// bracketed user text since the model only knows user and model roles.
func toContents(history []sessiondomain.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		role := string(genai.RoleUser)
		switch m.Role {
		case sessiondomain.RoleAssistant:
			role = string(genai.RoleModel)
		case sessiondomain.RoleSystem:
			text = "[SYSTÈME] " + text
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{genai.NewPartFromText(text)}})
	}
	return out
}

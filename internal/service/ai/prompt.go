package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/snailgpt/backend/internal/model/chat"
	"github.com/zhouzirui/snailgpt/backend/internal/model/persona"
)

// modeProfile bundles the prompt variant and generation settings of a Mode.
type modeProfile struct {
	instructions  string
	params        Params
	historyWindow int
}

var profiles = map[Mode]modeProfile{
	ModeExtreme: {
		instructions:  "Provide ULTRA-FAST, extremely concise answers. Avoid all fluff. Focus on raw facts.",
		params:        Params{MaxTokens: 200, Temperature: 0.5},
		historyWindow: 2,
	},
	ModeHigh: {
		instructions: "You are a highly intelligent, reasoning AI assistant. " +
			"Think deeply before answering. Structure your responses clearly with Markdown. " +
			"Be comprehensive, nuanced, and precise.",
		params:        Params{MaxTokens: 600, Temperature: 0.7},
		historyWindow: 6,
	},
	ModeGreeting: {
		instructions:  "Reply warmly but extremely briefly (under 10 words).",
		params:        Params{MaxTokens: 400, Temperature: 0.7},
		historyWindow: 6,
	},
	ModeNormal: {
		instructions: "Provide a balanced, natural response. " +
			"Do not be too short (avoid one-word answers) but do not be overly long or verbose. " +
			"Engage conversationally and provide sufficient helpful context.",
		params:        Params{MaxTokens: 400, Temperature: 0.7},
		historyWindow: 6,
	},
}

func profileFor(mode Mode) modeProfile {
	if p, ok := profiles[mode]; ok {
		return p
	}
	return profiles[ModeNormal]
}

// ParamsFor returns the generation parameters of a mode.
func ParamsFor(mode Mode) Params {
	return profileFor(mode).params
}

// HistoryWindow returns how many trailing history messages a mode includes.
func HistoryWindow(mode Mode) int {
	return profileFor(mode).historyWindow
}

// Assembler builds the ordered message list sent upstream.
type Assembler struct {
	persona  persona.Persona
	template prompt.ChatTemplate
}

// NewAssembler creates an assembler speaking as the given persona.
func NewAssembler(p persona.Persona) *Assembler {
	return &Assembler{
		persona: p,
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		),
	}
}

// SystemPrompt renders the system message for a mode.
func (a *Assembler) SystemPrompt(mode Mode) string {
	return fmt.Sprintf("%s %s", a.persona.Preamble(), profileFor(mode).instructions)
}

// Assemble returns system prompt, trailing history window and the new user message, in that order.
func (a *Assembler) Assemble(ctx context.Context, mode Mode, history chat.History, message string) ([]*schema.Message, error) {
	messages, err := a.template.Format(ctx, map[string]any{
		"system":  a.SystemPrompt(mode),
		"history": toSchemaMessages(history.Tail(HistoryWindow(mode))),
		"query":   message,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}
	return messages, nil
}

func toSchemaMessages(history chat.History) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		default:
			messages = append(messages, schema.UserMessage(msg.Content))
		}
	}
	return messages
}

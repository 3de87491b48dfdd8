package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/snailgpt/backend/internal/model/chat"
)

const titleSystemPrompt = "You are a summarizing tool. Output ONLY a 3-5 word topic title for the conversation context provided. " +
	"Do not use quotes or prefixes like 'Title:'."

var (
	errNoTitleContext = errors.New("no messages to title")
	errEmptyTitle     = errors.New("model returned an empty title")
)

var titleTemplate = prompt.FromMessages(
	schema.FString,
	schema.SystemMessage(titleSystemPrompt),
	schema.UserMessage("Context for title generation:\n{context}"),
)

// GenerateTitle asks the model for a short topic title based on the opening
// exchange. The call is non-streaming and uses extreme-mode parameters.
func (c *Client) GenerateTitle(ctx context.Context, history chat.History) (string, error) {
	var titleContext string
	switch {
	case len(history) >= 2:
		titleContext = fmt.Sprintf("User: %s\nAssistant: %s", history[0].Content, history[1].Content)
	case len(history) == 1:
		titleContext = history[0].Content
	default:
		return "", errNoTitleContext
	}

	messages, err := titleTemplate.Format(ctx, map[string]any{"context": titleContext})
	if err != nil {
		return "", fmt.Errorf("format title prompt: %w", err)
	}

	res := c.Complete(ctx, Request{Messages: messages, Params: ParamsFor(ModeExtreme)})
	if res.Failure != nil {
		return "", res.Failure
	}

	title := strings.TrimSpace(strings.ReplaceAll(res.Text, `"`, ""))
	if title == "" {
		return "", errEmptyTitle
	}
	return title, nil
}

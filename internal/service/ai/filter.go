package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ThinkMarker opens a provider reasoning block. Forwarding stops at the first
// fragment containing it and is not resumed for the rest of the stream.
const ThinkMarker = "<think>"

// EmptyResponseText is forwarded when a stream finishes without visible content.
const EmptyResponseText = "⚠️ The AI server returned an empty response. This might be due to a token limitation or server load. Please try again."

// FilterResult is the outcome of relaying one completion.
type FilterResult struct {
	// FullText is the unfiltered concatenation of every fragment received.
	FullText string
	// YieldedAny reports whether real model content reached onToken.
	YieldedAny bool
	// Fallback is the synthesized text forwarded instead of (or after) model content, if any.
	Fallback string
	// Fault is the mid-stream error that ended consumption early, if any.
	Fault error
}

// StreamFaultText renders the in-band message for a mid-stream fault.
func StreamFaultText(fault error) string {
	return fmt.Sprintf("\n⚠️ Stream Error: %v", fault)
}

// FilterStream relays a completion result to onToken, withholding reasoning
// blocks, while accumulating the full text for persistence.
func FilterStream(res Result, onToken func(string)) FilterResult {
	emit := func(token string) {
		if onToken != nil {
			onToken(token)
		}
	}

	if res.Failure != nil {
		text := res.Failure.UserMessage()
		emit(text)
		return FilterResult{Fallback: text}
	}

	stream := res.Stream
	if stream == nil {
		stream = textStream(res.Text)
	}
	defer stream.Close()

	var (
		full      strings.Builder
		inThought bool
		result    FilterResult
	)

	for {
		frag, ok := stream.Next()
		if !ok {
			break
		}
		if frag.Fault != nil {
			result.Fault = frag.Fault
			result.Fallback = StreamFaultText(frag.Fault)
			emit(result.Fallback)
			result.FullText = full.String()
			return result
		}

		full.WriteString(frag.Text)
		if !inThought && strings.Contains(frag.Text, ThinkMarker) {
			inThought = true
		}
		if inThought {
			continue
		}

		emit(frag.Text)
		result.YieldedAny = true
	}

	result.FullText = full.String()
	if !result.YieldedAny {
		result.Fallback = EmptyResponseText
		emit(EmptyResponseText)
	}
	return result
}

func textStream(text string) *TokenStream {
	var items []*schema.Message
	if text != "" {
		items = append(items, schema.AssistantMessage(text, nil))
	}
	return NewTokenStream(schema.StreamReaderFromArray(items))
}

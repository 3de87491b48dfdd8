package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

// FailureKind classifies why a completion could not be obtained.
type FailureKind int

const (
	FailureTimeout FailureKind = iota + 1
	FailureConnection
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureConnection:
		return "connection"
	case FailureOther:
		return "other"
	default:
		return "unknown"
	}
}

// Failure is the terminal outcome of a completion call that produced no result.
type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("completion %s failure: %s", f.Kind, f.Detail)
}

// UserMessage is the in-band text shown to the end user for this failure.
func (f *Failure) UserMessage() string {
	switch f.Kind {
	case FailureTimeout:
		return "❌ Error: The AI server is taking too long to respond. The model may still be loading, try again in a few seconds."
	case FailureConnection:
		return "❌ Connection Error: Could not connect to the AI server. Please check your internet connection or API Token."
	default:
		return fmt.Sprintf("❌ API execution error: %s", f.Detail)
	}
}

// Params are the per-request generation settings.
type Params struct {
	MaxTokens   int
	Temperature float32
}

// Request describes one completion call.
type Request struct {
	Messages []*schema.Message
	Stream   bool
	Params   Params
}

// Result holds exactly one of Text (non-streamed), Stream, or Failure.
type Result struct {
	Text    string
	Stream  *TokenStream
	Failure *Failure
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Client issues single-attempt completion calls against a chat model.
type Client struct {
	chatModel model.BaseChatModel
	logger    logrus.FieldLogger
}

// NewClient wraps the provided chat model. A nil model yields a client whose
// calls all fail in-band.
func NewClient(chatModel model.BaseChatModel, logger logrus.FieldLogger) *Client {
	return &Client{chatModel: chatModel, logger: logger}
}

// Complete performs the call. It never returns an error: transport problems are
// folded into Result.Failure.
func (c *Client) Complete(ctx context.Context, req Request) Result {
	if c.chatModel == nil {
		return Result{Failure: &Failure{Kind: FailureOther, Detail: "completion model is not configured"}}
	}

	opts := []model.Option{
		model.WithMaxTokens(req.Params.MaxTokens),
		model.WithTemperature(req.Params.Temperature),
	}

	if req.Stream {
		reader, err := c.chatModel.Stream(ctx, req.Messages, opts...)
		if err != nil {
			return c.fail(err, true)
		}
		return Result{Stream: NewTokenStream(reader)}
	}

	msg, err := c.chatModel.Generate(ctx, req.Messages, opts...)
	if err != nil {
		return c.fail(err, false)
	}
	if msg == nil {
		return Result{Failure: &Failure{Kind: FailureOther, Detail: "completion returned no message"}}
	}
	return Result{Text: msg.Content}
}

func (c *Client) fail(err error, stream bool) Result {
	failure := classifyError(err)
	c.logger.WithFields(logrus.Fields{
		"kind":   failure.Kind.String(),
		"stream": stream,
	}).WithError(err).Warn("completion request failed")
	return Result{Failure: failure}
}

func classifyError(err error) *Failure {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		containsAny(err, "timeout", "deadline exceeded"):
		return &Failure{Kind: FailureTimeout, Detail: err.Error()}
	case isConnectionError(err):
		return &Failure{Kind: FailureConnection, Detail: err.Error()}
	default:
		return &Failure{Kind: FailureOther, Detail: err.Error()}
	}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	// Provider SDKs sometimes flatten transport errors into plain strings.
	return containsAny(err, "connection refused", "connection reset", "no such host")
}

func containsAny(err error, needles ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// Fragment is one element of a TokenStream. A fragment carrying Fault is the
// last one the stream produces.
type Fragment struct {
	Text  string
	Fault error
}

// TokenStream is a single-pass sequence of text fragments read from a model stream.
type TokenStream struct {
	reader *schema.StreamReader[*schema.Message]
	done   bool
}

// NewTokenStream adapts an eino stream reader.
func NewTokenStream(reader *schema.StreamReader[*schema.Message]) *TokenStream {
	return &TokenStream{reader: reader}
}

// Next returns the next non-empty fragment, or false once the stream is exhausted.
func (s *TokenStream) Next() (Fragment, bool) {
	if s.done {
		return Fragment{}, false
	}

	for {
		chunk, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return Fragment{}, false
		}
		if err != nil {
			s.done = true
			return Fragment{Fault: err}, true
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		return Fragment{Text: chunk.Content}, true
	}
}

// Close releases the underlying reader.
func (s *TokenStream) Close() {
	s.reader.Close()
}

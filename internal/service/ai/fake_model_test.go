package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel replays canned output and records what it was asked.
type fakeChatModel struct {
	chunks      []string
	midErr      error
	streamErr   error
	reply       string
	generateErr error

	lastInput []*schema.Message
	lastOpts  *model.Options
	calls     int
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.record(input, opts)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input, opts)
	if f.streamErr != nil {
		return nil, f.streamErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	for _, chunk := range f.chunks {
		sw.Send(schema.AssistantMessage(chunk, nil), nil)
	}
	if f.midErr != nil {
		sw.Send(nil, f.midErr)
	}
	sw.Close()
	return sr, nil
}

func (f *fakeChatModel) record(input []*schema.Message, opts []model.Option) {
	f.calls++
	f.lastInput = input
	f.lastOpts = model.GetCommonOptions(nil, opts...)
}

func streamOf(chunks ...string) *TokenStream {
	items := make([]*schema.Message, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, schema.AssistantMessage(chunk, nil))
	}
	return NewTokenStream(schema.StreamReaderFromArray(items))
}

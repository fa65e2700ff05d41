package model

import (
	"context"
	"iter"
)

// Fixture is an in-memory LLM double for tests: it replays a fixed
// sequence of Responses (or chunk groups, for streaming) regardless of the
// Request it receives, recording every Request it was called with.
type Fixture struct {
	NameValue     string
	ProviderValue Provider

	// Turns is consumed one entry per GenerateContent call; each entry is
	// the sequence of Responses yielded for that turn.
	Turns [][]*Response

	Requests []*Request
	calls    int
}

func (f *Fixture) Name() string       { return f.NameValue }
func (f *Fixture) Provider() Provider { return f.ProviderValue }
func (f *Fixture) Close() error       { return nil }

func (f *Fixture) GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error] {
	f.Requests = append(f.Requests, req)
	idx := f.calls
	f.calls++

	return func(yield func(*Response, error) bool) {
		if idx >= len(f.Turns) {
			return
		}
		for _, resp := range f.Turns[idx] {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			default:
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

var _ LLM = (*Fixture)(nil)

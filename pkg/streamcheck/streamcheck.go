// Package streamcheck wraps a model.LLM to enforce its streaming contract at
// runtime: at least one item; exactly one terminal item (last, non-partial,
// TurnComplete, carrying a FinishReason); no item that is both Partial and
// TurnComplete; no error_code/error_message outside the terminal item unless
// its finish reason is an error kind; role discipline on any item carrying
// content; and tool-call arguments surfacing only on the terminal item, never
// as a leaked partial chunk. A violation is reported as an error from the
// wrapped iterator rather than silently passed through, so a misbehaving
// provider adapter fails loudly instead of corrupting an agent's
// conversation history.
package streamcheck

import (
	"context"
	"iter"

	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
)

// Violation describes a single streaming-contract breach.
type Violation struct {
	Reason string
}

func (v *Violation) Error() string { return "streamcheck: " + v.Reason }

// Wrap returns an LLM that validates every GenerateContent call's output
// stream against the streaming contract before yielding it to the caller.
func Wrap(llm model.LLM) model.LLM {
	return &checked{LLM: llm}
}

type checked struct {
	model.LLM
}

func (c *checked) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	inner := c.LLM.GenerateContent(ctx, req, stream)
	return func(yield func(*model.Response, error) bool) {
		count := 0
		terminalSeen := false

		emit := func(resp *model.Response, err error) bool {
			return yield(resp, err)
		}

		for resp, err := range inner {
			if err != nil {
				if !emit(nil, err) {
					return
				}
				continue
			}
			count++

			if resp.Partial && resp.TurnComplete {
				emit(nil, &Violation{Reason: "item is both Partial and TurnComplete"})
				return
			}
			if terminalSeen {
				emit(nil, &Violation{Reason: "item yielded after the terminal item"})
				return
			}

			isTerminal := resp.TurnComplete
			if isTerminal {
				if resp.Partial {
					emit(nil, &Violation{Reason: "terminal item marked Partial"})
					return
				}
				if resp.FinishReason == "" {
					emit(nil, &Violation{Reason: "terminal item missing FinishReason"})
					return
				}
				terminalSeen = true
			}

			if (resp.ErrorCode != "" || resp.ErrorMessage != "") && !(isTerminal && isErrorFinish(resp.FinishReason)) {
				emit(nil, &Violation{Reason: "error_code/error_message set outside a terminal item with an error finish reason"})
				return
			}

			if resp.Content != nil {
				if resp.Content.Role != content.RoleModel {
					emit(nil, &Violation{Reason: "content present with role != model"})
					return
				}
				if len(resp.Content.Parts) == 0 {
					emit(nil, &Violation{Reason: "content present with no parts"})
					return
				}
			}

			if !isTerminal && len(resp.ToolCalls) > 0 {
				emit(nil, &Violation{Reason: "tool-call arguments leaked on a non-terminal item"})
				return
			}

			if !emit(resp, nil) {
				return
			}
		}

		if count == 0 {
			emit(nil, &Violation{Reason: "stream yielded zero items"})
			return
		}
		if !terminalSeen {
			emit(nil, &Violation{Reason: "stream ended without a terminal (TurnComplete) item"})
		}
	}
}

// isErrorFinish reports whether reason marks the turn as having ended in an
// error, the only case a terminal item may carry ErrorCode/ErrorMessage.
func isErrorFinish(reason model.FinishReason) bool {
	return reason == model.FinishReasonError || reason == model.FinishReasonContent
}

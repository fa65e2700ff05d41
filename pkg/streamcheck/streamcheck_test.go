package streamcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zavora-ai/adk-go/pkg/content"
	"github.com/zavora-ai/adk-go/pkg/model"
	"github.com/zavora-ai/adk-go/pkg/tool"
)

func drain(t *testing.T, llm model.LLM, stream bool) ([]*model.Response, error) {
	t.Helper()
	var out []*model.Response
	for resp, err := range llm.GenerateContent(context.Background(), &model.Request{}, stream) {
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func TestWrapValidStreamPasses(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{Partial: true},
		{Partial: false, TurnComplete: true, FinishReason: model.FinishReasonStop},
	}}}
	out, err := drain(t, Wrap(fx), true)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestWrapZeroItemsIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
	var v *Violation
	require.ErrorAs(t, err, &v)
}

func TestWrapMissingTerminalIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{Partial: true},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapPartialAndTerminalIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{Partial: true, TurnComplete: true},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapItemAfterTerminalIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonStop},
		{Partial: true},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapErrorCodeOnNonTerminalIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{Partial: true, ErrorCode: "rate_limited"},
		{TurnComplete: true, FinishReason: model.FinishReasonStop},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapErrorCodeOnTerminalWithoutErrorFinishIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonStop, ErrorCode: "boom"},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapErrorCodeOnTerminalWithErrorFinishPasses(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonError, ErrorCode: "boom"},
	}}}
	out, err := drain(t, Wrap(fx), true)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestWrapContentWithWrongRoleIsViolation(t *testing.T) {
	userContent := content.NewText(content.RoleUser, "hi")
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonStop, Content: &userContent},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapContentWithNoPartsIsViolation(t *testing.T) {
	empty := content.Content{Role: content.RoleModel}
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonStop, Content: &empty},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapModelContentPasses(t *testing.T) {
	modelContent := content.NewText(content.RoleModel, "hi there")
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonStop, Content: &modelContent},
	}}}
	out, err := drain(t, Wrap(fx), true)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestWrapToolCallLeakedOnPartialIsViolation(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{Partial: true, ToolCalls: []tool.ToolCall{{Name: "add"}}},
		{TurnComplete: true, FinishReason: model.FinishReasonToolCalls},
	}}}
	_, err := drain(t, Wrap(fx), true)
	require.Error(t, err)
}

func TestWrapToolCallOnTerminalPasses(t *testing.T) {
	fx := &model.Fixture{Turns: [][]*model.Response{{
		{TurnComplete: true, FinishReason: model.FinishReasonToolCalls, ToolCalls: []tool.ToolCall{{Name: "add"}}},
	}}}
	out, err := drain(t, Wrap(fx), true)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

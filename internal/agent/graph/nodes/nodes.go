package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/pocketwise/server/internal/agent/graph/parsers"
	"github.com/pocketwise/server/internal/agent/graph/prompts"
	"github.com/pocketwise/server/internal/agent/graph/tools"
	"github.com/pocketwise/server/internal/agent/model"
	errx "github.com/pocketwise/server/internal/core/error"
	logx "github.com/pocketwise/server/pkg/logger"
)

// Node names.
const (
	NodeLoadContext     = "load_context"
	NodeRecognizeIntent = "recognize_intent"
	NodeTruncateHistory = "truncate_message_history"
	NodeChatbot         = "chatbot"
	NodeExecutePlan     = "execute_plan"
	NodeTools           = "tools"
)

const DefaultWindowSize = 20

// UnknownToolResult is the literal tool result for a hallucinated tool name.
const UnknownToolResult = "未知工具"

// Func is a pure state transition: it reads the current state and returns
// a partial update, never mutating the state directly.
type Func func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error)

// NewLoadContextNode loads the user's long-term profile snapshot into
// state. A storage hiccup keeps the previous snapshot rather than failing
// the turn.
func NewLoadContextNode(storage model.Storage) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error) {
		profile, err := storage.GetProfile(ctx, state.UserID)
		if err != nil {
			logx.Warn().Err(err).Str("user_id", state.UserID).Msg("Failed to load user profile; keeping previous snapshot")
			return model.StateUpdate{}, nil
		}
		return model.StateUpdate{model.FieldUserProfile: profile}, nil
	}
}

// NewRecognizeIntentNode classifies the newest user utterance into the
// closed intent enumeration. Classification failure of any kind degrades
// to IntentUnknown; this node never returns an error.
func NewRecognizeIntentNode(classifier model.ChatModel, callTimeout time.Duration) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error) {
		text := strings.TrimSpace(state.LastUserText())

		intent := model.IntentUnknown
		systemPrompt, err := prompts.RenderIntentSystem(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to render intent prompt")
			return model.StateUpdate{model.FieldLastIntent: intent}, nil
		}

		callCtx, cancel := withTimeout(ctx, callTimeout)
		defer cancel()

		resp, err := classifier.Generate(callCtx, []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(text),
		})
		if err != nil || resp == nil {
			logx.Warn().Err(err).Str("thread_id", state.ThreadID).Msg("Intent classification failed; falling back to unknown")
			return model.StateUpdate{model.FieldLastIntent: intent}, nil
		}

		intent = parsers.ParseIntentResponse(resp.Content)
		logx.Debug().Str("thread_id", state.ThreadID).Str("intent", intent.String()).Msg("Intent recognized")
		return model.StateUpdate{model.FieldLastIntent: intent}, nil
	}
}

// NewTruncateHistoryNode bounds the prompt window. At or below the window
// size the state passes through untouched; above it, the node emits the
// full desired window as an explicit replacement.
func NewTruncateHistoryNode(windowSize int) Func {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error) {
		if len(state.Messages) <= windowSize {
			return model.StateUpdate{}, nil
		}
		window := make([]*schema.Message, windowSize)
		copy(window, state.Messages[len(state.Messages)-windowSize:])
		logx.Debug().
			Str("thread_id", state.ThreadID).
			Int("dropped", len(state.Messages)-windowSize).
			Msg("Truncated message history")
		return model.StateUpdate{model.FieldMessages: model.ReplaceMessages(window)}, nil
	}
}

// NewChatbotNode issues one tool-augmented generation call over the
// (possibly truncated) history, prefixed by the instruction context built
// from the user id, profile and intent guidance.
func NewChatbotNode(cm model.ChatModel, callTimeout time.Duration) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error) {
		guidance := prompts.GuidanceFor(state.LastIntent)
		systemPrompt, err := prompts.RenderChatbotSystem(ctx, state.UserID, state.UserProfile, guidance)
		if err != nil {
			return nil, errx.WrapGeneration(err)
		}

		messages := make([]*schema.Message, 0, len(state.Messages)+1)
		messages = append(messages, schema.SystemMessage(systemPrompt))
		messages = append(messages, state.Messages...)

		callCtx, cancel := withTimeout(ctx, callTimeout)
		defer cancel()

		logx.Debug().Str("thread_id", state.ThreadID).Msg("AI thinking...")
		out, err := cm.Generate(callCtx, messages)
		if err != nil {
			return nil, errx.WrapGeneration(err)
		}

		// Some providers omit tool_call ids; synthesize them so tool
		// results can be correlated.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				out.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
		}

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Msg("AI response ready")
		}
		return model.StateUpdate{model.FieldMessages: out}, nil
	}
}

// NewToolNode executes the first pending tool call of the newest message.
// Additional calls in the same message are dropped. The caller-supplied
// user_id is always overridden with the live thread's user id. Failures
// become tool-result text; the node never returns an error.
func NewToolNode(registry *tools.Registry, clock func() time.Time) Func {
	if clock == nil {
		clock = time.Now
	}
	return func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error) {
		last := state.LastMessage()
		if last == nil || last.Role != schema.Assistant || len(last.ToolCalls) == 0 {
			return model.StateUpdate{}, nil
		}

		call := last.ToolCalls[0]
		if len(last.ToolCalls) > 1 {
			logx.Warn().
				Int("dropped", len(last.ToolCalls)-1).
				Str("thread_id", state.ThreadID).
				Msg("Multiple tool calls in one message; executing only the first")
		}

		name := call.Function.Name
		rawArgs := call.Function.Arguments
		args := tools.InjectUserID(rawArgs, state.UserID)

		var result string
		t, ok := registry.Lookup(name)
		switch {
		case !ok:
			logx.Warn().Str("tool_name", name).Msg("Unknown tool requested")
			result = UnknownToolResult
		default:
			out, err := t.InvokableRun(ctx, args)
			if err != nil {
				logx.Error().Err(err).Str("tool_name", name).Msg("Tool execution failed")
				result = fmt.Sprintf("工具执行出错: %v", err)
			} else {
				result = out
			}
		}

		toolMsg := schema.ToolMessage(result, call.ID)
		record := model.ToolCallRecord{
			Name:      name,
			Arguments: rawArgs,
			Result:    result,
			Timestamp: clock(),
		}
		return model.StateUpdate{
			model.FieldMessages:        toolMsg,
			model.FieldToolCallHistory: record,
		}, nil
	}
}

// PlanAgent is the separately-checkpointed sub-agent behind the plan branch.
type PlanAgent interface {
	Run(ctx context.Context, state *model.ConversationState) (*schema.Message, error)
}

// NewExecutePlanNode dispatches the turn to the plan sub-agent and appends
// its single final message to the parent thread.
func NewExecutePlanNode(agent PlanAgent) Func {
	return func(ctx context.Context, state *model.ConversationState) (model.StateUpdate, error) {
		reply, err := agent.Run(ctx, state)
		if err != nil {
			return nil, err
		}
		return model.StateUpdate{model.FieldMessages: reply}, nil
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

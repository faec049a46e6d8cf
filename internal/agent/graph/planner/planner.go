package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/pocketwise/server/internal/agent/graph/prompts"
	"github.com/pocketwise/server/internal/agent/graph/reducers"
	"github.com/pocketwise/server/internal/agent/graph/tools"
	"github.com/pocketwise/server/internal/agent/model"
	errx "github.com/pocketwise/server/internal/core/error"
	logx "github.com/pocketwise/server/pkg/logger"
)

// SharedThreadID is the upstream-compatible constant checkpoint thread for
// the plan agent. It is only used when SharedThread is enabled; by default
// each user gets their own plan thread.
const SharedThreadID = "plan_agent"

const defaultMaxToolCalls = 10

// planWindowSize bounds the sub-agent's own history the same way the main
// graph bounds its prompt window.
const planWindowSize = 20

const capReply = "抱歉，计划处理超出了工具调用上限，请稍后再试或简化需求。"

// Config wires the plan sub-agent.
type Config struct {
	ChatModel    model.ChatModel // plan model with the plan tool set bound
	Registry     *tools.Registry
	StateStore   model.StateStore
	SharedThread bool
	MaxToolCalls int
	CallTimeout  time.Duration
	Clock        func() time.Time
}

// Agent is the independently-checkpointed plan sub-agent. It owns its tool
// loop and, unlike the main graph's tool node, executes every tool call a
// message carries.
type Agent struct {
	cm           model.ChatModel
	registry     *tools.Registry
	store        model.StateStore
	reducers     *reducers.Registry
	sharedThread bool
	maxToolCalls int
	callTimeout  time.Duration
	clock        func() time.Time
}

func New(cfg Config) *Agent {
	maxCalls := cfg.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = defaultMaxToolCalls
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Agent{
		cm:           cfg.ChatModel,
		registry:     cfg.Registry,
		store:        cfg.StateStore,
		reducers:     reducers.NewRegistry(),
		sharedThread: cfg.SharedThread,
		maxToolCalls: maxCalls,
		callTimeout:  cfg.CallTimeout,
		clock:        clock,
	}
}

// ThreadID derives the sub-agent's checkpoint thread for a user.
func (a *Agent) ThreadID(userID string) string {
	if a.sharedThread {
		return SharedThreadID
	}
	return SharedThreadID + ":" + userID
}

// Run forwards the parent thread's history to the sub-agent, drives its
// tool loop to completion and returns the single final assistant message.
func (a *Agent) Run(ctx context.Context, parent *model.ConversationState) (*schema.Message, error) {
	threadID := a.ThreadID(parent.UserID)

	state, err := a.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = model.NewConversationState(threadID, parent.UserID)
	}

	if err := a.reducers.Apply(state, model.StateUpdate{
		model.FieldUserID:   parent.UserID,
		model.FieldMessages: parent.Messages,
	}); err != nil {
		return nil, fmt.Errorf("merge parent history: %w", err)
	}
	a.truncate(state)

	systemPrompt, err := prompts.RenderPlanSystem(ctx)
	if err != nil {
		return nil, errx.WrapGeneration(err)
	}

	var final *schema.Message
	toolCalls := 0
	for {
		messages := make([]*schema.Message, 0, len(state.Messages)+1)
		messages = append(messages, schema.SystemMessage(systemPrompt))
		messages = append(messages, state.Messages...)

		out, err := a.generate(ctx, messages)
		if err != nil {
			return nil, errx.WrapGeneration(err)
		}
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				out.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
		}
		if err := a.reducers.Apply(state, model.StateUpdate{model.FieldMessages: out}); err != nil {
			return nil, err
		}

		if len(out.ToolCalls) == 0 {
			final = out
			break
		}
		if toolCalls+len(out.ToolCalls) > a.maxToolCalls {
			logx.Warn().
				Str("thread_id", threadID).
				Int("max_tool_calls", a.maxToolCalls).
				Msg("Plan agent tool call limit exceeded")
			final = schema.AssistantMessage(capReply, nil)
			if err := a.reducers.Apply(state, model.StateUpdate{model.FieldMessages: final}); err != nil {
				return nil, err
			}
			break
		}

		for _, call := range out.ToolCalls {
			toolCalls++
			update := a.executeCall(ctx, call, parent.UserID)
			if err := a.reducers.Apply(state, update); err != nil {
				return nil, err
			}
		}
	}

	if err := a.store.Save(ctx, threadID, state); err != nil {
		return nil, err
	}
	return final, nil
}

func (a *Agent) executeCall(ctx context.Context, call schema.ToolCall, userID string) model.StateUpdate {
	name := call.Function.Name
	rawArgs := call.Function.Arguments
	args := tools.InjectUserID(rawArgs, userID)

	var result string
	t, ok := a.registry.Lookup(name)
	if !ok {
		logx.Warn().Str("tool_name", name).Msg("Plan agent requested unknown tool")
		result = "未知工具"
	} else if out, err := t.InvokableRun(ctx, args); err != nil {
		logx.Error().Err(err).Str("tool_name", name).Msg("Plan agent tool execution failed")
		result = fmt.Sprintf("工具执行出错: %v", err)
	} else {
		result = out
	}

	return model.StateUpdate{
		model.FieldMessages: schema.ToolMessage(result, call.ID),
		model.FieldToolCallHistory: model.ToolCallRecord{
			Name:      name,
			Arguments: rawArgs,
			Result:    result,
			Timestamp: a.clock(),
		},
	}
}

func (a *Agent) generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}
	return a.cm.Generate(ctx, messages)
}

func (a *Agent) truncate(state *model.ConversationState) {
	if len(state.Messages) <= planWindowSize {
		return
	}
	window := make([]*schema.Message, planWindowSize)
	copy(window, state.Messages[len(state.Messages)-planWindowSize:])
	state.Messages = window
}

package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/pocketwise/server/internal/agent/graph/nodes"
	"github.com/pocketwise/server/internal/agent/graph/observers"
	"github.com/pocketwise/server/internal/agent/graph/planner"
	"github.com/pocketwise/server/internal/agent/graph/reducers"
	"github.com/pocketwise/server/internal/agent/graph/tools"
	"github.com/pocketwise/server/internal/agent/model"
	logx "github.com/pocketwise/server/pkg/logger"
)

// Pseudo node names marking graph boundaries.
const (
	START = "__start__"
	END   = "__end__"
)

const (
	generationApology = "抱歉，我这边出了点问题，暂时无法回复。请稍后再试。"
	toolLoopApology   = "抱歉，这个请求涉及的工具调用太多了，我先停在这里。请换个方式描述或稍后再试。"
)

// Runner executes one conversation turn for a thread.
type Runner interface {
	Run(ctx context.Context, threadID, userID, utterance string) (string, error)
}

// Config holds everything needed to compose the full conversation graph
// end-to-end. This is a convenience layer over GraphConfig that also
// constructs ChatModels, tool registries and the plan sub-agent.
type Config struct {
	APIKey       string
	BaseURL      string
	IntentModel  model.IntentModelConfig
	ChatModel    model.ChatResponseModelConfig
	PlanModel    model.PlanModelConfig
	Conversation model.ConversationConfig
	PlanAgent    model.PlanAgentConfig
	StateStore   model.StateStore
	Storage      model.Storage
}

// GraphConfig holds all dependencies needed to build the graph directly.
type GraphConfig struct {
	Storage      model.Storage
	IntentModel  model.ChatModel
	ChatModel    model.ChatModel
	ChatRegistry *tools.Registry
	PlanAgent    nodes.PlanAgent
	StateStore   model.StateStore
	WindowSize   int
	MaxToolCalls int
	CallTimeout  time.Duration
	Clock        func() time.Time
	Observer     observers.Observer
}

// GraphBuilder handles the construction of the conversation graph.
type GraphBuilder struct {
	config   *GraphConfig
	nodes    map[string]nodes.Func
	edges    map[string]string
	branches map[string]branch
	entry    string
}

// branch picks the next node from state after its source node ran.
type branch struct {
	pick    func(*model.ConversationState) string
	targets map[string]bool
}

// BuildConversationGraph composes chat models, tool registries and the plan
// sub-agent, builds the graph, and returns a Runner.
func BuildConversationGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.StateStore == nil {
		return nil, fmt.Errorf("state store is nil")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		IntentConfig: &cfg.IntentModel,
		ChatConfig:   &cfg.ChatModel,
		PlanConfig:   &cfg.PlanModel,
	})
	if err != nil {
		return nil, err
	}

	deps := tools.Deps{Storage: cfg.Storage}

	chatTools := tools.ChatTools(deps)
	chatInfos, err := tools.GetToolInfos(ctx, chatTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get chat tool infos")
		return nil, fmt.Errorf("failed to get chat tool infos: %w", err)
	}
	if err := cms.BindToolsToChatModel(ctx, chatInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to chat model")
		return nil, fmt.Errorf("failed to bind tools to chat model: %w", err)
	}
	chatRegistry, err := tools.NewRegistry(ctx, chatTools)
	if err != nil {
		return nil, err
	}

	planTools := tools.PlanTools(deps)
	planInfos, err := tools.GetToolInfos(ctx, planTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get plan tool infos")
		return nil, fmt.Errorf("failed to get plan tool infos: %w", err)
	}
	if err := cms.BindToolsToPlanModel(ctx, planInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to plan model")
		return nil, fmt.Errorf("failed to bind tools to plan model: %w", err)
	}
	planRegistry, err := tools.NewRegistry(ctx, planTools)
	if err != nil {
		return nil, err
	}

	callTimeout := time.Duration(cfg.Conversation.CallTimeoutSeconds) * time.Second

	planAgent := planner.New(planner.Config{
		ChatModel:    cms.Plan,
		Registry:     planRegistry,
		StateStore:   cfg.StateStore,
		SharedThread: cfg.PlanAgent.SharedThread,
		MaxToolCalls: cfg.PlanAgent.MaxToolCalls,
		CallTimeout:  callTimeout,
	})

	runner, err := BuildGraph(ctx, &GraphConfig{
		Storage:      cfg.Storage,
		IntentModel:  cms.Intent,
		ChatModel:    cms.Chat,
		ChatRegistry: chatRegistry,
		PlanAgent:    planAgent,
		StateStore:   cfg.StateStore,
		WindowSize:   cfg.Conversation.WindowSize,
		MaxToolCalls: cfg.Conversation.Tools.MaxCalls,
		CallTimeout:  callTimeout,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Conversation graph built successfully")
	return runner, nil
}

// BuildGraph constructs and returns the compiled conversation graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (*Executor, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.IntentModel == nil || config.ChatModel == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.ChatRegistry == nil {
		return nil, fmt.Errorf("chat tool registry is nil")
	}
	if config.PlanAgent == nil {
		return nil, fmt.Errorf("plan agent is nil")
	}
	if config.StateStore == nil {
		return nil, fmt.Errorf("state store is nil")
	}

	builder := &GraphBuilder{
		config:   config,
		nodes:    make(map[string]nodes.Func),
		edges:    make(map[string]string),
		branches: make(map[string]branch),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile()
}

// addNodes registers all processing nodes.
func (b *GraphBuilder) addNodes() {
	cfg := b.config

	b.addNode(nodes.NodeLoadContext, nodes.NewLoadContextNode(cfg.Storage))
	b.addNode(nodes.NodeRecognizeIntent, nodes.NewRecognizeIntentNode(cfg.IntentModel, cfg.CallTimeout))
	b.addNode(nodes.NodeTruncateHistory, nodes.NewTruncateHistoryNode(cfg.WindowSize))
	b.addNode(nodes.NodeChatbot, nodes.NewChatbotNode(cfg.ChatModel, cfg.CallTimeout))
	b.addNode(nodes.NodeTools, nodes.NewToolNode(cfg.ChatRegistry, cfg.Clock))
	b.addNode(nodes.NodeExecutePlan, nodes.NewExecutePlanNode(cfg.PlanAgent))
}

func (b *GraphBuilder) addNode(name string, fn nodes.Func) {
	b.nodes[name] = fn
}

// addEdges creates the main flow connections between nodes.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{START, nodes.NodeLoadContext},
		{nodes.NodeLoadContext, nodes.NodeRecognizeIntent},
		{nodes.NodeRecognizeIntent, nodes.NodeTruncateHistory},
		{nodes.NodeTools, nodes.NodeChatbot},
		{nodes.NodeExecutePlan, END},
	}

	for _, edge := range edges {
		if edge[0] == START {
			b.entry = edge[1]
			continue
		}
		b.edges[edge[0]] = edge[1]
	}
}

// addBranches creates the conditional routing branches.
func (b *GraphBuilder) addBranches() error {
	intentBranch := branch{
		pick: routeByIntent,
		targets: map[string]bool{
			nodes.NodeChatbot:     true,
			nodes.NodeExecutePlan: true,
		},
	}
	if err := b.addBranch(nodes.NodeTruncateHistory, intentBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding intent branch")
		return fmt.Errorf("error adding intent branch: %w", err)
	}

	toolBranch := branch{
		pick: shouldContinue,
		targets: map[string]bool{
			nodes.NodeTools: true,
			END:             true,
		},
	}
	if err := b.addBranch(nodes.NodeChatbot, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool branch")
		return fmt.Errorf("error adding tool branch: %w", err)
	}

	return nil
}

func (b *GraphBuilder) addBranch(from string, br branch) error {
	if _, ok := b.nodes[from]; !ok {
		return fmt.Errorf("branch source %q is not a node", from)
	}
	if _, dup := b.branches[from]; dup {
		return fmt.Errorf("branch already registered for %q", from)
	}
	for target := range br.targets {
		if target == END {
			continue
		}
		if _, ok := b.nodes[target]; !ok {
			return fmt.Errorf("branch target %q is not a node", target)
		}
	}
	b.branches[from] = br
	return nil
}

// compile validates the topology and returns the executor.
func (b *GraphBuilder) compile() (*Executor, error) {
	if b.entry == "" {
		return nil, fmt.Errorf("graph has no entry edge")
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, fmt.Errorf("entry node %q is not registered", b.entry)
	}
	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("edge source %q is not a node", from)
		}
		if to != END {
			if _, ok := b.nodes[to]; !ok {
				return nil, fmt.Errorf("edge target %q is not a node", to)
			}
		}
	}
	for name := range b.nodes {
		_, hasEdge := b.edges[name]
		_, hasBranch := b.branches[name]
		if !hasEdge && !hasBranch {
			return nil, fmt.Errorf("node %q has no outgoing edge or branch", name)
		}
	}

	// Limit total run steps to avoid infinite loops in branching or tool
	// retries. Every tool round costs a tools step plus a chatbot step.
	maxSteps := 10 + b.config.MaxToolCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	observer := b.config.Observer
	if observer == nil {
		observer = observers.NewLogObserver()
	}

	logx.Debug().Msg("Graph compiled successfully")
	return &Executor{
		nodes:        b.nodes,
		edges:        b.edges,
		branches:     b.branches,
		entry:        b.entry,
		store:        b.config.StateStore,
		reducers:     reducers.NewRegistry(),
		observer:     observer,
		maxSteps:     maxSteps,
		maxToolCalls: b.config.MaxToolCalls,
	}, nil
}

// routeByIntent sends plan intents to the plan sub-agent and everything
// else to the chatbot.
func routeByIntent(state *model.ConversationState) string {
	if state.LastIntent.IsPlanIntent() {
		return nodes.NodeExecutePlan
	}
	return nodes.NodeChatbot
}

// shouldContinue keeps the tool loop going while the latest assistant
// message carries tool calls.
func shouldContinue(state *model.ConversationState) string {
	last := state.LastMessage()
	if last != nil && last.Role == schema.Assistant && len(last.ToolCalls) > 0 {
		return nodes.NodeTools
	}
	return END
}

// Executor walks a compiled graph one conversation turn at a time,
// checkpointing thread state after every node.
type Executor struct {
	nodes        map[string]nodes.Func
	edges        map[string]string
	branches     map[string]branch
	entry        string
	store        model.StateStore
	reducers     *reducers.Registry
	observer     observers.Observer
	maxSteps     int
	maxToolCalls int
}

// Run executes one turn. Persistence failures are the only errors it
// returns; model failures degrade to an apologetic reply so the thread
// stays usable.
func (e *Executor) Run(ctx context.Context, threadID, userID, utterance string) (string, error) {
	state, err := e.store.Load(ctx, threadID)
	if err != nil {
		return "", err
	}
	if state == nil {
		state = model.NewConversationState(threadID, userID)
	}

	if err := e.reducers.Apply(state, model.StateUpdate{
		model.FieldUserID:   userID,
		model.FieldMessages: schema.UserMessage(utterance),
	}); err != nil {
		return "", err
	}
	if err := e.store.Save(ctx, threadID, state); err != nil {
		return "", err
	}

	current := e.entry
	steps := 0
	toolRounds := 0
	for current != END {
		steps++
		if steps > e.maxSteps {
			logx.Warn().
				Str("thread_id", threadID).
				Int("max_steps", e.maxSteps).
				Msg("Graph step limit exceeded")
			return e.finish(ctx, threadID, state, toolLoopApology)
		}
		if current == nodes.NodeTools {
			toolRounds++
			if toolRounds > e.maxToolCalls {
				logx.Warn().
					Str("thread_id", threadID).
					Int("max_tool_calls", e.maxToolCalls).
					Msg("Tool loop limit exceeded")
				return e.finish(ctx, threadID, state, toolLoopApology)
			}
		}

		fn, ok := e.nodes[current]
		if !ok {
			return "", fmt.Errorf("unknown node %q", current)
		}

		e.observer.NodeStart(threadID, current)
		started := time.Now()
		update, err := fn(ctx, state)
		if err != nil {
			e.observer.NodeError(threadID, current, time.Since(started), err)
			return e.finish(ctx, threadID, state, generationApology)
		}
		e.observer.NodeEnd(threadID, current, time.Since(started), update)
		if err := e.reducers.Apply(state, update); err != nil {
			logx.Error().Err(err).
				Str("thread_id", threadID).
				Str("node", current).
				Msg("State merge failed")
			return e.finish(ctx, threadID, state, generationApology)
		}
		if err := e.store.Save(ctx, threadID, state); err != nil {
			return "", err
		}

		next, err := e.next(current, state)
		if err != nil {
			return "", err
		}
		current = next
	}

	last := state.LastMessage()
	if last == nil || last.Role != schema.Assistant {
		return e.finish(ctx, threadID, state, generationApology)
	}
	return last.Content, nil
}

// finish appends a terminal assistant reply, checkpoints and returns it.
func (e *Executor) finish(ctx context.Context, threadID string, state *model.ConversationState, reply string) (string, error) {
	msg := schema.AssistantMessage(reply, nil)
	if err := e.reducers.Apply(state, model.StateUpdate{model.FieldMessages: msg}); err != nil {
		return "", err
	}
	if err := e.store.Save(ctx, threadID, state); err != nil {
		return "", err
	}
	return reply, nil
}

func (e *Executor) next(current string, state *model.ConversationState) (string, error) {
	if br, ok := e.branches[current]; ok {
		target := br.pick(state)
		if !br.targets[target] {
			return "", fmt.Errorf("branch from %q picked unregistered target %q", current, target)
		}
		return target, nil
	}
	if to, ok := e.edges[current]; ok {
		return to, nil
	}
	return END, nil
}

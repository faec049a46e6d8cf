package planner

import (
	"context"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketwise/server/internal/agent/graph/tools"
	"github.com/pocketwise/server/internal/agent/model"
	"github.com/pocketwise/server/internal/agent/repo"
)

type recordingStorage struct {
	plans   []model.Plan
	deleted []int64
}

func (s *recordingStorage) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	return model.DefaultProfile(), nil
}

func (s *recordingStorage) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (model.Profile, error) {
	return model.DefaultProfile(), nil
}

func (s *recordingStorage) AddExpense(ctx context.Context, userID, description string, amount float64, category, context string) error {
	return nil
}

func (s *recordingStorage) GetRecentExpenses(ctx context.Context, userID string, limit int) ([]model.ExpenseRecord, error) {
	return nil, nil
}

func (s *recordingStorage) AddPlan(ctx context.Context, userID, planType, content, startDate string, goalAmount, stagesAmount float64) error {
	s.plans = append(s.plans, model.Plan{
		UserID: userID, PlanType: planType, Content: content,
		StartDate: startDate, GoalAmount: goalAmount, StagesAmount: stagesAmount,
		Status: "active",
	})
	return nil
}

func (s *recordingStorage) GetActivePlans(ctx context.Context, userID string) ([]model.Plan, error) {
	return s.plans, nil
}

func (s *recordingStorage) UpdatePlan(ctx context.Context, planID int64, userID string, update model.PlanUpdate) (bool, error) {
	return true, nil
}

func (s *recordingStorage) DeletePlan(ctx context.Context, planID int64, userID string) (bool, error) {
	s.deleted = append(s.deleted, planID)
	return true, nil
}

type scriptedModel struct {
	responses []*schema.Message
	calls     int
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++
	return m.responses[i], nil
}

func planRegistry(t *testing.T, storage model.Storage) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(context.Background(),
		tools.PlanTools(tools.Deps{Storage: storage}))
	require.NoError(t, err)
	return reg
}

func planCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func TestThreadIDScopedPerUserByDefault(t *testing.T) {
	a := New(Config{StateStore: repo.NewMemoryStateStore()})
	assert.Equal(t, "plan_agent:u1", a.ThreadID("u1"))
	assert.Equal(t, "plan_agent:u2", a.ThreadID("u2"))

	shared := New(Config{StateStore: repo.NewMemoryStateStore(), SharedThread: true})
	assert.Equal(t, SharedThreadID, shared.ThreadID("u1"))
	assert.Equal(t, SharedThreadID, shared.ThreadID("u2"))
}

func TestRunExecutesEveryToolCallInOneMessage(t *testing.T) {
	storage := &recordingStorage{}
	store := repo.NewMemoryStateStore()
	cm := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			planCall("p1", tools.ToolLogPlan, `{"plan_type":"储蓄","content":"每月存500","start_date":"2025-03-01","goal_amount":6000,"stages_amount":500}`),
			planCall("p2", tools.ToolViewPlan, `{}`),
		}),
		schema.AssistantMessage("已为你建立储蓄计划。", nil),
	}}

	a := New(Config{
		ChatModel:  cm,
		Registry:   planRegistry(t, storage),
		StateStore: store,
	})

	parent := model.NewConversationState("main:u1", "u1")
	parent.Messages = []*schema.Message{schema.UserMessage("帮我制定储蓄计划")}

	final, err := a.Run(context.Background(), parent)
	require.NoError(t, err)
	assert.Equal(t, "已为你建立储蓄计划。", final.Content)

	// both calls executed, unlike the main graph's first-only policy
	require.Len(t, storage.plans, 1)
	assert.Equal(t, "储蓄", storage.plans[0].PlanType)

	state, err := store.Load(context.Background(), "plan_agent:u1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Len(t, state.ToolCallHistory, 2)
	assert.Equal(t, tools.ToolLogPlan, state.ToolCallHistory[0].Name)
	assert.Equal(t, tools.ToolViewPlan, state.ToolCallHistory[1].Name)
}

func TestRunCheckpointsAwayFromParentThread(t *testing.T) {
	store := repo.NewMemoryStateStore()
	cm := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("暂时没有计划需要调整。", nil),
	}}

	a := New(Config{
		ChatModel:  cm,
		Registry:   planRegistry(t, &recordingStorage{}),
		StateStore: store,
	})

	parent := model.NewConversationState("main:u1", "u1")
	parent.Messages = []*schema.Message{schema.UserMessage("更新计划")}

	_, err := a.Run(context.Background(), parent)
	require.NoError(t, err)

	parentState, err := store.Load(context.Background(), "main:u1")
	require.NoError(t, err)
	assert.Nil(t, parentState)

	planState, err := store.Load(context.Background(), "plan_agent:u1")
	require.NoError(t, err)
	require.NotNil(t, planState)
	assert.Equal(t, "u1", planState.UserID)
}

func TestRunStopsAtToolCallLimit(t *testing.T) {
	store := repo.NewMemoryStateStore()
	// demands a tool on every iteration, forever
	cm := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			planCall("loop", tools.ToolViewPlan, `{}`),
		}),
	}}

	a := New(Config{
		ChatModel:    cm,
		Registry:     planRegistry(t, &recordingStorage{}),
		StateStore:   store,
		MaxToolCalls: 3,
	})

	parent := model.NewConversationState("main:u1", "u1")
	parent.Messages = []*schema.Message{schema.UserMessage("看看计划")}

	final, err := a.Run(context.Background(), parent)
	require.NoError(t, err)
	assert.Equal(t, capReply, final.Content)

	state, err := store.Load(context.Background(), "plan_agent:u1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Len(t, state.ToolCallHistory, 3)
}

func TestRunRemembersAcrossPlanTurns(t *testing.T) {
	store := repo.NewMemoryStateStore()
	cm := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("好的。", nil),
	}}

	a := New(Config{
		ChatModel:  cm,
		Registry:   planRegistry(t, &recordingStorage{}),
		StateStore: store,
	})

	parent := model.NewConversationState("main:u1", "u1")
	parent.Messages = []*schema.Message{schema.UserMessage("第一轮")}
	_, err := a.Run(context.Background(), parent)
	require.NoError(t, err)

	first, err := store.Load(context.Background(), "plan_agent:u1")
	require.NoError(t, err)
	require.NotNil(t, first)
	firstLen := len(first.Messages)

	parent.Messages = append(parent.Messages, schema.UserMessage("第二轮"))
	_, err = a.Run(context.Background(), parent)
	require.NoError(t, err)

	second, err := store.Load(context.Background(), "plan_agent:u1")
	require.NoError(t, err)
	assert.Greater(t, len(second.Messages), firstLen)
}

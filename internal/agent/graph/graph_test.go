package graph

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketwise/server/internal/agent/graph/tools"
	"github.com/pocketwise/server/internal/agent/model"
	"github.com/pocketwise/server/internal/agent/repo"
)

type stubStorage struct {
	profile model.Profile
}

func (s *stubStorage) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	return s.profile, nil
}

func (s *stubStorage) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (model.Profile, error) {
	s.profile = s.profile.Merge(updates)
	return s.profile, nil
}

func (s *stubStorage) AddExpense(ctx context.Context, userID, description string, amount float64, category, context string) error {
	return nil
}

func (s *stubStorage) GetRecentExpenses(ctx context.Context, userID string, limit int) ([]model.ExpenseRecord, error) {
	return nil, nil
}

func (s *stubStorage) AddPlan(ctx context.Context, userID, planType, content, startDate string, goalAmount, stagesAmount float64) error {
	return nil
}

func (s *stubStorage) GetActivePlans(ctx context.Context, userID string) ([]model.Plan, error) {
	return nil, nil
}

func (s *stubStorage) UpdatePlan(ctx context.Context, planID int64, userID string, update model.PlanUpdate) (bool, error) {
	return false, nil
}

func (s *stubStorage) DeletePlan(ctx context.Context, planID int64, userID string) (bool, error) {
	return false, nil
}

// scriptedModel replays canned responses; past the end it repeats the last.
type scriptedModel struct {
	responses []*schema.Message
	err       error
	calls     int
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := m.calls
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	m.calls++
	return m.responses[i], nil
}

type stubPlanAgent struct {
	reply *schema.Message
	calls int
}

func (a *stubPlanAgent) Run(ctx context.Context, state *model.ConversationState) (*schema.Message, error) {
	a.calls++
	return a.reply, nil
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	return nil, errors.New("redis unreachable")
}

func (failingStore) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	return errors.New("redis unreachable")
}

func buildTestExecutor(t *testing.T, intent, chat model.ChatModel, store model.StateStore, maxToolCalls int) (*Executor, *stubPlanAgent) {
	t.Helper()
	registry, err := tools.NewRegistry(context.Background(),
		tools.ChatTools(tools.Deps{Storage: &stubStorage{}}))
	require.NoError(t, err)

	plan := &stubPlanAgent{reply: schema.AssistantMessage("计划已经安排好了。", nil)}
	exec, err := BuildGraph(context.Background(), &GraphConfig{
		Storage:      &stubStorage{},
		IntentModel:  intent,
		ChatModel:    chat,
		ChatRegistry: registry,
		PlanAgent:    plan,
		StateStore:   store,
		WindowSize:   20,
		MaxToolCalls: maxToolCalls,
	})
	require.NoError(t, err)
	return exec, plan
}

func TestRunPlainTurn(t *testing.T) {
	store := repo.NewMemoryStateStore()
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("consult", nil)}}
	chat := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("建议先记录每周开销。", nil)}}
	exec, plan := buildTestExecutor(t, intent, chat, store, 10)

	reply, err := exec.Run(context.Background(), "t1", "u1", "我该怎么省钱？")
	require.NoError(t, err)
	assert.Equal(t, "建议先记录每周开销。", reply)
	assert.Zero(t, plan.calls)

	state, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, model.IntentConsult, state.LastIntent)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, schema.User, state.Messages[0].Role)
	assert.Equal(t, schema.Assistant, state.Messages[1].Role)
	assert.Empty(t, state.ToolCallHistory)
}

func TestRunToolRoundTrip(t *testing.T) {
	store := repo.NewMemoryStateStore()
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("review_profile", nil)}}
	chat := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "c1",
			Function: schema.FunctionCall{Name: tools.ToolViewUserProfile, Arguments: `{}`},
		}}),
		schema.AssistantMessage("你的预算还有富余。", nil),
	}}
	exec, _ := buildTestExecutor(t, intent, chat, store, 10)

	reply, err := exec.Run(context.Background(), "t1", "u1", "看看我的档案")
	require.NoError(t, err)
	assert.Equal(t, "你的预算还有富余。", reply)
	assert.Equal(t, 2, chat.calls)

	state, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, state)
	// user, assistant(tool_calls), tool, assistant
	require.Len(t, state.Messages, 4)
	assert.Equal(t, schema.Tool, state.Messages[2].Role)
	require.Len(t, state.ToolCallHistory, 1)
	assert.Equal(t, tools.ToolViewUserProfile, state.ToolCallHistory[0].Name)
}

func TestRunRoutesPlanIntentsToPlanAgent(t *testing.T) {
	store := repo.NewMemoryStateStore()
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("delete_plan", nil)}}
	chat := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("should not run", nil)}}
	exec, plan := buildTestExecutor(t, intent, chat, store, 10)

	reply, err := exec.Run(context.Background(), "t1", "u1", "删除我的储蓄计划")
	require.NoError(t, err)
	assert.Equal(t, "计划已经安排好了。", reply)
	assert.Equal(t, 1, plan.calls)
	assert.Zero(t, chat.calls)
}

func TestRunAbsorbsGenerationFailure(t *testing.T) {
	store := repo.NewMemoryStateStore()
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("consult", nil)}}
	chat := &scriptedModel{err: errors.New("provider 500")}
	exec, _ := buildTestExecutor(t, intent, chat, store, 10)

	reply, err := exec.Run(context.Background(), "t1", "u1", "你好")
	require.NoError(t, err)
	assert.Equal(t, generationApology, reply)

	state, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, generationApology, state.Messages[len(state.Messages)-1].Content)
}

func TestRunStopsRunawayToolLoop(t *testing.T) {
	store := repo.NewMemoryStateStore()
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("consult", nil)}}
	// the chat model demands a tool on every call, forever
	chat := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "loop",
			Function: schema.FunctionCall{Name: tools.ToolViewUserProfile, Arguments: `{}`},
		}}),
	}}
	exec, _ := buildTestExecutor(t, intent, chat, store, 2)

	reply, err := exec.Run(context.Background(), "t1", "u1", "查档案")
	require.NoError(t, err)
	assert.Equal(t, toolLoopApology, reply)

	state, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.LessOrEqual(t, len(state.ToolCallHistory), 2)
}

func TestRunSurfacesStoreFailure(t *testing.T) {
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("consult", nil)}}
	chat := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("ok", nil)}}
	exec, _ := buildTestExecutor(t, intent, chat, failingStore{}, 10)

	_, err := exec.Run(context.Background(), "t1", "u1", "你好")
	require.Error(t, err)
}

func TestRunPersistsAcrossTurns(t *testing.T) {
	store := repo.NewMemoryStateStore()
	intent := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("consult", nil)}}
	chat := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("好的。", nil)}}
	exec, _ := buildTestExecutor(t, intent, chat, store, 10)

	_, err := exec.Run(context.Background(), "t1", "u1", "第一句")
	require.NoError(t, err)
	_, err = exec.Run(context.Background(), "t1", "u1", "第二句")
	require.NoError(t, err)

	state, err := store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Len(t, state.Messages, 4)

	// a different thread starts clean
	other, err := store.Load(context.Background(), "t2")
	require.NoError(t, err)
	assert.Nil(t, other)
}

package repo

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketwise/server/internal/agent/model"
)

func TestMemoryStoreLoadUnknownThread(t *testing.T) {
	s := NewMemoryStateStore()

	state, err := s.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStateStore()
	ctx := context.Background()

	in := model.NewConversationState("t1", "u1")
	in.LastIntent = model.IntentLogExpense
	in.Messages = append(in.Messages, schema.UserMessage("记一笔 30 元咖啡"))
	in.ToolCallHistory = append(in.ToolCallHistory, model.ToolCallRecord{Name: "log_notable_expense"})

	require.NoError(t, s.Save(ctx, "t1", in))

	out, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, model.IntentLogExpense, out.LastIntent)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "记一笔 30 元咖啡", out.Messages[0].Content)
	require.Len(t, out.ToolCallHistory, 1)
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewMemoryStateStore()
	ctx := context.Background()

	in := model.NewConversationState("t1", "u1")
	in.Messages = append(in.Messages, schema.UserMessage("original"))
	require.NoError(t, s.Save(ctx, "t1", in))

	// mutating the caller's state after Save must not leak into the store
	in.Messages[0].Content = "mutated"
	in.UserID = "someone-else"

	out, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "original", out.Messages[0].Content)
	assert.Equal(t, "u1", out.UserID)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStateStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "t1", model.NewConversationState("t1", "u1")))
	require.NoError(t, s.Delete(ctx, "t1"))

	state, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

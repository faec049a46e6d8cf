package model

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// StateStore checkpoints per-thread conversation state. Implementations
// must make each Load/Save atomic; concurrent turns on the same thread id
// are last-writer-wins.
type StateStore interface {
	// Load returns the checkpointed state for a thread, or nil when the
	// thread has never been seen.
	Load(ctx context.Context, threadID string) (*ConversationState, error)

	// Save replaces the checkpoint for a thread.
	Save(ctx context.Context, threadID string, state *ConversationState) error
}

// Storage is the profile/expense/plan collaborator backing the tools.
type Storage interface {
	// GetProfile loads a user's profile, creating and persisting the
	// default profile on first access.
	GetProfile(ctx context.Context, userID string) (Profile, error)

	// UpdateProfile shallow-merges the supplied fields and persists the result.
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) (Profile, error)

	AddExpense(ctx context.Context, userID, description string, amount float64, category, context string) error

	// GetRecentExpenses returns up to limit expenses, most recent first.
	GetRecentExpenses(ctx context.Context, userID string, limit int) ([]ExpenseRecord, error)

	AddPlan(ctx context.Context, userID, planType, content, startDate string, goalAmount, stagesAmount float64) error

	GetActivePlans(ctx context.Context, userID string) ([]Plan, error)

	// UpdatePlan applies the non-nil fields; false when no row matched.
	UpdatePlan(ctx context.Context, planID int64, userID string, update PlanUpdate) (bool, error)

	// DeletePlan removes a plan; false when no row matched.
	DeletePlan(ctx context.Context, planID int64, userID string) (bool, error)
}

// ChatModel is the opaque text-generation capability. The signature matches
// the Eino chat-model component so provider models satisfy it directly.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

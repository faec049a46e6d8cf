package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Intent is the closed classification of the user's latest utterance.
// Anything outside this enumeration collapses to IntentUnknown.
type Intent string

const (
	IntentLogExpense    Intent = "log_expense"
	IntentConsult       Intent = "consult"
	IntentGeneratePlan  Intent = "generate_plan"
	IntentUpdatePlan    Intent = "update_plan"
	IntentDeletePlan    Intent = "delete_plan"
	IntentReviewPlan    Intent = "review_plan"
	IntentReviewProfile Intent = "review_profile"
	IntentEditProfile   Intent = "edit_profile"
	IntentUnknown       Intent = "unknown"
)

// Intents lists every valid member, in declaration order.
func Intents() []Intent {
	return []Intent{
		IntentLogExpense,
		IntentConsult,
		IntentGeneratePlan,
		IntentUpdatePlan,
		IntentDeletePlan,
		IntentReviewPlan,
		IntentReviewProfile,
		IntentEditProfile,
		IntentUnknown,
	}
}

// ParseIntent normalises a raw classifier response into a valid Intent.
// Out-of-enumeration values fall back to IntentUnknown.
func ParseIntent(v string) Intent {
	candidate := Intent(v)
	for _, it := range Intents() {
		if candidate == it {
			return it
		}
	}
	return IntentUnknown
}

// IsPlanIntent reports whether the intent routes to the plan sub-agent.
func (i Intent) IsPlanIntent() bool {
	return i == IntentGeneratePlan || i == IntentUpdatePlan || i == IntentDeletePlan
}

func (i Intent) String() string {
	return string(i)
}

// ToolCallRecord is one executed tool invocation, kept for observability.
// Arguments hold the caller-supplied JSON before user_id injection.
type ToolCallRecord struct {
	Name      string    `json:"name"`
	Arguments string    `json:"arguments"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the unit of truth for one thread. Messages and
// ToolCallHistory only ever grow (messages may additionally be
// window-truncated); UserProfile, LastIntent and UserID are point-in-time
// snapshots replaced whole.
type ConversationState struct {
	ThreadID        string            `json:"thread_id"`
	UserID          string            `json:"user_id"`
	Messages        []*schema.Message `json:"messages"`
	UserProfile     Profile           `json:"user_profile"`
	LastIntent      Intent            `json:"last_intent"`
	ToolCallHistory []ToolCallRecord  `json:"tool_call_history"`
}

// NewConversationState creates the default state for a first-seen thread.
func NewConversationState(threadID, userID string) *ConversationState {
	return &ConversationState{
		ThreadID:        threadID,
		UserID:          userID,
		Messages:        []*schema.Message{},
		UserProfile:     DefaultProfile(),
		LastIntent:      IntentUnknown,
		ToolCallHistory: []ToolCallRecord{},
	}
}

// LastMessage returns the newest message, or nil for an empty history.
func (s *ConversationState) LastMessage() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// LastUserText scans backwards for the nearest user-authored message and
// returns its content; empty string when none exists.
func (s *ConversationState) LastUserText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m != nil && m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

// State field names. These key StateUpdate entries and the reducer table.
const (
	FieldMessages        = "messages"
	FieldUserID          = "user_id"
	FieldUserProfile     = "user_profile"
	FieldLastIntent      = "last_intent"
	FieldToolCallHistory = "tool_call_history"
)

// StateUpdate is a node's partial output: field name to new value.
// Untouched fields are simply absent.
type StateUpdate map[string]any

// ReplaceMessages marks a messages update as a full-window replacement
// rather than an append delta. Only the history-truncation node emits it.
type ReplaceMessages []*schema.Message

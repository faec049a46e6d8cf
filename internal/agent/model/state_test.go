package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestParseIntentAcceptsEveryMember(t *testing.T) {
	for _, it := range Intents() {
		assert.Equal(t, it, ParseIntent(it.String()))
	}
}

func TestParseIntentFallsBackToUnknown(t *testing.T) {
	for _, raw := range []string{"banana", "", "LOG_EXPENSE ", "plan"} {
		assert.Equal(t, IntentUnknown, ParseIntent(raw), "raw=%q", raw)
	}
}

func TestIsPlanIntent(t *testing.T) {
	assert.True(t, IntentGeneratePlan.IsPlanIntent())
	assert.True(t, IntentUpdatePlan.IsPlanIntent())
	assert.True(t, IntentDeletePlan.IsPlanIntent())
	assert.False(t, IntentReviewPlan.IsPlanIntent())
	assert.False(t, IntentConsult.IsPlanIntent())
	assert.False(t, IntentUnknown.IsPlanIntent())
}

func TestLastUserTextScansBackwards(t *testing.T) {
	s := NewConversationState("t1", "u1")
	assert.Empty(t, s.LastUserText())

	s.Messages = []*schema.Message{
		schema.UserMessage("older"),
		schema.AssistantMessage("reply", nil),
		schema.UserMessage("newest"),
		schema.AssistantMessage("trailing", nil),
	}
	assert.Equal(t, "newest", s.LastUserText())
}

func TestProfileMergeAppliesKnownFieldsOnly(t *testing.T) {
	p := DefaultProfile()
	merged := p.Merge(map[string]any{
		"income":           float64(8000),
		"monthly_budget":   2000,
		"personality_tags": []any{"节俭", "impulsive"},
		"current_mood":     "anxious",
		"unrelated":        "ignored",
	})

	assert.Equal(t, float64(8000), merged.Income)
	assert.Equal(t, float64(2000), merged.MonthlyBudget)
	assert.Equal(t, []string{"节俭", "impulsive"}, merged.PersonalityTags)
	assert.Equal(t, "anxious", merged.CurrentMood)
	// original untouched
	assert.Equal(t, float64(0), p.Income)
}

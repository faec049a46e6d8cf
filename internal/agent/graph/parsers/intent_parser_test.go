package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pocketwise/server/internal/agent/model"
)

func TestParseIntentResponse(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    model.Intent
	}{
		{"bare label", "log_expense", model.IntentLogExpense},
		{"surrounding whitespace", "  consult \n", model.IntentConsult},
		{"uppercase", "DELETE_PLAN", model.IntentDeletePlan},
		{"quoted", `"generate_plan"`, model.IntentGeneratePlan},
		{"code fence", "```\nupdate_plan\n```", model.IntentUpdatePlan},
		{"fence with language tag", "```text\nreview_plan\n```", model.IntentReviewPlan},
		{"label with trailing prose", "edit_profile is the best match", model.IntentEditProfile},
		{"trailing punctuation", "review_profile.", model.IntentReviewProfile},
		{"multi line keeps first", "consult\nbecause the user asks for advice", model.IntentConsult},
		{"gibberish", "banana", model.IntentUnknown},
		{"empty", "", model.IntentUnknown},
		{"close but invalid", "log expenses", model.IntentUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseIntentResponse(tc.content))
		})
	}
}

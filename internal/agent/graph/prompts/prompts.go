package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/pocketwise/server/internal/agent/model"
)

//go:embed template/intent_prompt.txt
var intentSystemPrompt string

//go:embed template/chatbot_prompt.txt
var chatbotSystemPrompt string

//go:embed template/plan_prompt.txt
var planSystemPrompt string

// guidanceMap gives the chatbot intent-specific steering. Plan intents
// route to the sub-agent before this map is consulted.
var guidanceMap = map[model.Intent]string{
	model.IntentLogExpense:    "用户想记录一笔支出。请主动询问金额、类别和是否值得，再调用 log_notable_expense。",
	model.IntentEditProfile:   "用户想更新预算或收入信息。请先确认要修改的字段和新值，再调用 edit_user_profile。",
	model.IntentConsult:       "用户在咨询某笔消费是否值得。请结合用户财务状况分析，并可调用 detect_impulse_buying 辅助判断。",
	model.IntentReviewProfile: "用户想复盘财务状况。可调用 view_user_profile 获取最新数据，并总结趋势。",
	model.IntentReviewPlan:    "用户想查看当前计划，可调用view_plan获取用户计划",
	model.IntentUnknown:       "请自由回应用户，必要时使用工具。",
}

// GuidanceFor returns the directive for an intent, falling back to the
// unknown-intent directive.
func GuidanceFor(intent model.Intent) string {
	if g, ok := guidanceMap[intent]; ok {
		return g
	}
	return guidanceMap[model.IntentUnknown]
}

// RenderIntentSystem returns the fixed intent-classification instruction.
// Rendering goes through the Eino prompt component so prompt callbacks fire.
func RenderIntentSystem(ctx context.Context) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(intentSystemPrompt)},
	})
	if err != nil {
		return "", fmt.Errorf("intent prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("intent prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderChatbotSystem renders the chatbot instruction context from the
// user id, profile snapshot and intent guidance.
func RenderChatbotSystem(ctx context.Context, userID string, profile model.Profile, extraGuidance string) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(chatbotSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"UserID":        userID,
		"ProfileJSON":   string(profileJSON),
		"ExtraGuidance": extraGuidance,
	})
	if err != nil {
		return "", fmt.Errorf("chatbot prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("chatbot prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderPlanSystem returns the plan sub-agent's fixed instruction set.
func RenderPlanSystem(ctx context.Context) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(planSystemPrompt)},
	})
	if err != nil {
		return "", fmt.Errorf("plan prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("plan prompt render: empty result")
	}
	return msgs[0].Content, nil
}

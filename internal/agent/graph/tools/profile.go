package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/pocketwise/server/internal/agent/model"
)

// ===================================
// View User Profile Tool
// ===================================

type ViewUserProfileInput struct {
	UserID string `json:"user_id"`
}

func createViewUserProfileTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolViewUserProfile,
			Desc: "获取当前用户的档案，包括收入、预算、现有存款和性格标签。用于了解用户的财务基准情况。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *ViewUserProfileInput) (model.Profile, error) {
			return deps.Storage.GetProfile(ctx, in.UserID)
		},
	)
}

// ===================================
// Edit User Profile Tool
// ===================================

type EditUserProfileInput struct {
	UserID  string         `json:"user_id"`
	Updates map[string]any `json:"updates"`
}

func createEditUserProfileTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolEditUserProfile,
			Desc: "更新用户档案中的特定字段，例如 {\"monthly_budget\": 5000}。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
				"updates": {
					Type:     "object",
					Desc:     "要更新的字段字典，可用字段：income, monthly_budget, saving, personality_tags, current_mood",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *EditUserProfileInput) (string, error) {
			profile, err := deps.Storage.UpdateProfile(ctx, in.UserID, in.Updates)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(profile)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("档案已成功更新。当前状态：%s", b), nil
		},
	)
}

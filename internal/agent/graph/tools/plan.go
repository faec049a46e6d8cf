package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/pocketwise/server/internal/agent/model"
)

// ===================================
// Log Plan Tool
// ===================================

type LogPlanInput struct {
	UserID       string  `json:"user_id"`
	PlanType     string  `json:"plan_type"`
	Content      string  `json:"content"`
	StartDate    string  `json:"start_date"`
	GoalAmount   float64 `json:"goal_amount,omitempty"`
	StagesAmount float64 `json:"stages_amount,omitempty"`
}

func createLogPlanTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolLogPlan,
			Desc: "记录用户的财务计划或目标。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
				"plan_type": {
					Type:     "string",
					Desc:     "计划类型（例如：'储蓄'、'消费节制'）",
					Required: true,
				},
				"content": {
					Type:     "string",
					Desc:     "计划具体内容",
					Required: true,
				},
				"start_date": {
					Type:     "string",
					Desc:     "开始日期（ISO 格式字符串）",
					Required: true,
				},
				"goal_amount": {
					Type: "number",
					Desc: "目标金额（如适用）",
				},
				"stages_amount": {
					Type: "number",
					Desc: "阶段划分金额",
				},
			}),
		},
		func(ctx context.Context, in *LogPlanInput) (string, error) {
			if err := deps.Storage.AddPlan(ctx, in.UserID, in.PlanType, in.Content, in.StartDate, in.GoalAmount, in.StagesAmount); err != nil {
				return "", err
			}
			return fmt.Sprintf("计划已保存：%s", in.Content), nil
		},
	)
}

// ===================================
// View Plan Tool
// ===================================

type ViewPlanInput struct {
	UserID string `json:"user_id"`
}

func createViewPlanTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolViewPlan,
			Desc: "查看用户当前的活跃计划列表。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *ViewPlanInput) ([]model.Plan, error) {
			return deps.Storage.GetActivePlans(ctx, in.UserID)
		},
	)
}

// ===================================
// Update Plan Tool
// ===================================

type UpdatePlanInput struct {
	PlanID       int64    `json:"plan_id"`
	UserID       string   `json:"user_id"`
	PlanType     *string  `json:"plan_type,omitempty"`
	Content      *string  `json:"content,omitempty"`
	StartDate    *string  `json:"start_date,omitempty"`
	GoalAmount   *float64 `json:"goal_amount,omitempty"`
	StagesAmount *float64 `json:"stages_amount,omitempty"`
	Status       *string  `json:"status,omitempty"`
}

func createUpdatePlanTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolUpdatePlan,
			Desc: "更新用户计划，支持部分字段更新。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"plan_id": {
					Type:     "number",
					Desc:     "计划 ID",
					Required: true,
				},
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
				"plan_type": {
					Type: "string",
					Desc: "计划类型",
				},
				"content": {
					Type: "string",
					Desc: "计划内容",
				},
				"start_date": {
					Type: "string",
					Desc: "开始日期",
				},
				"goal_amount": {
					Type: "number",
					Desc: "目标金额",
				},
				"stages_amount": {
					Type: "number",
					Desc: "阶段划分金额",
				},
				"status": {
					Type: "string",
					Desc: "计划状态（active 或 closed）",
				},
			}),
		},
		func(ctx context.Context, in *UpdatePlanInput) (string, error) {
			ok, err := deps.Storage.UpdatePlan(ctx, in.PlanID, in.UserID, model.PlanUpdate{
				PlanType:     in.PlanType,
				Content:      in.Content,
				StartDate:    in.StartDate,
				GoalAmount:   in.GoalAmount,
				StagesAmount: in.StagesAmount,
				Status:       in.Status,
			})
			if err != nil {
				return "", err
			}
			if !ok {
				return fmt.Sprintf("未找到计划 %d，无法更新。", in.PlanID), nil
			}
			return fmt.Sprintf("计划 %d 已更新。", in.PlanID), nil
		},
	)
}

// ===================================
// Delete Plan Tool
// ===================================

type DeletePlanInput struct {
	PlanID int64  `json:"plan_id"`
	UserID string `json:"user_id"`
}

func createDeletePlanTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolDeletePlan,
			Desc: "删除用户计划。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"plan_id": {
					Type:     "number",
					Desc:     "计划 ID",
					Required: true,
				},
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *DeletePlanInput) (string, error) {
			ok, err := deps.Storage.DeletePlan(ctx, in.PlanID, in.UserID)
			if err != nil {
				return "", err
			}
			if !ok {
				return fmt.Sprintf("未找到计划 %d，无法删除。", in.PlanID), nil
			}
			return fmt.Sprintf("计划 %d 已删除。", in.PlanID), nil
		},
	)
}

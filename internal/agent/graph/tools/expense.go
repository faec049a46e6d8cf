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
// Log Notable Expense Tool
// ===================================

type LogNotableExpenseInput struct {
	UserID      string  `json:"user_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Context     string  `json:"context"`
}

func createLogNotableExpenseTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolLogNotableExpense,
			Desc: "记录一笔值得追踪或分析的支出。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
				"description": {
					Type:     "string",
					Desc:     "购买了什么",
					Required: true,
				},
				"amount": {
					Type:     "number",
					Desc:     "花费金额",
					Required: true,
				},
				"category": {
					Type:     "string",
					Desc:     "支出类别（例如：'餐饮'、'娱乐'）",
					Required: true,
				},
				"context": {
					Type:     "string",
					Desc:     "购买原因或当时的情境（例如：'心情不好'、'打折促销'）",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *LogNotableExpenseInput) (string, error) {
			if err := deps.Storage.AddExpense(ctx, in.UserID, in.Description, in.Amount, in.Category, in.Context); err != nil {
				return "", err
			}
			return fmt.Sprintf("已记录支出：%s，花费 $%g。", in.Description, in.Amount), nil
		},
	)
}

// ===================================
// View Recent Expenses Tool
// ===================================

type ViewRecentExpensesInput struct {
	UserID string `json:"user_id"`
}

func createViewRecentExpensesTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolViewRecentExpenses,
			Desc: "查看用户最近5笔支出。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *ViewRecentExpensesInput) ([]model.ExpenseRecord, error) {
			return deps.Storage.GetRecentExpenses(ctx, in.UserID, recentExpensesLimit)
		},
	)
}

// ===================================
// Detect Impulse Buying Tool
// ===================================

type DetectImpulseBuyingInput struct {
	UserID      string  `json:"user_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

func createDetectImpulseBuyingTool(deps Deps) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolDetectImpulseBuying,
			Desc: "基于用户当前状态，分析某笔消费是否可能属于冲动消费。",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     "string",
					Desc:     "用户 ID",
					Required: true,
				},
				"description": {
					Type:     "string",
					Desc:     "商品描述",
					Required: true,
				},
				"amount": {
					Type:     "number",
					Desc:     "消费金额",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *DetectImpulseBuyingInput) (ImpulseVerdict, error) {
			profile, err := deps.Storage.GetProfile(ctx, in.UserID)
			if err != nil {
				return ImpulseVerdict{}, err
			}
			plans, err := deps.Storage.GetActivePlans(ctx, in.UserID)
			if err != nil {
				return ImpulseVerdict{}, err
			}
			expenses, err := deps.Storage.GetRecentExpenses(ctx, in.UserID, recentExpensesLimit)
			if err != nil {
				return ImpulseVerdict{}, err
			}
			return ScoreImpulse(ImpulseInput{
				Profile:        profile,
				ActivePlans:    plans,
				RecentExpenses: expenses,
				Description:    in.Description,
				Amount:         in.Amount,
				Now:            deps.now(),
			}), nil
		},
	)
}

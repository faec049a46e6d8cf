package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/pocketwise/server/internal/agent/model"
	logx "github.com/pocketwise/server/pkg/logger"
)

// Tool names.
const (
	ToolViewUserProfile     = "view_user_profile"
	ToolEditUserProfile     = "edit_user_profile"
	ToolLogNotableExpense   = "log_notable_expense"
	ToolViewRecentExpenses  = "view_recent_expenses"
	ToolDetectImpulseBuying = "detect_impulse_buying"
	ToolLogPlan             = "log_plan"
	ToolViewPlan            = "view_plan"
	ToolUpdatePlan          = "update_plan"
	ToolDeletePlan          = "delete_plan"
)

// recentExpensesLimit bounds the sample used by view_recent_expenses and
// the impulse scorer.
const recentExpensesLimit = 5

// Deps carries everything a finance tool reaches for. Clock is injected so
// the impulse verdict stays reproducible under test.
type Deps struct {
	Storage model.Storage
	Clock   func() time.Time
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

// ChatTools returns the tool set bound to the chatbot branch.
func ChatTools(deps Deps) []tool.BaseTool {
	return []tool.BaseTool{
		createViewUserProfileTool(deps),
		createEditUserProfileTool(deps),
		createLogNotableExpenseTool(deps),
		createViewRecentExpensesTool(deps),
		createDetectImpulseBuyingTool(deps),
		createViewPlanTool(deps),
	}
}

// PlanTools returns the tool set bound to the plan sub-agent.
func PlanTools(deps Deps) []tool.BaseTool {
	return []tool.BaseTool{
		createViewUserProfileTool(deps),
		createLogPlanTool(deps),
		createViewPlanTool(deps),
		createUpdatePlanTool(deps),
		createDeletePlanTool(deps),
	}
}

// Registry maps tool names to their invokable implementations.
type Registry struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo
}

// NewRegistry indexes the given tools by declared name.
func NewRegistry(ctx context.Context, ts []tool.BaseTool) (*Registry, error) {
	r := &Registry{tools: make(map[string]tool.InvokableTool, len(ts))}
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to read tool info")
			return nil, fmt.Errorf("tool info: %w", err)
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, fmt.Errorf("tool %s is not invokable", info.Name)
		}
		r.tools[info.Name] = inv
		r.infos = append(r.infos, info)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (tool.InvokableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Infos returns the declared schemas for binding to a chat model.
func (r *Registry) Infos() []*schema.ToolInfo {
	return r.infos
}

// InjectUserID rewrites tool-call argument JSON so user_id always comes
// from the thread state, never from the model.
func InjectUserID(rawArgs, userID string) string {
	var m map[string]any
	if rawArgs == "" || json.Unmarshal([]byte(rawArgs), &m) != nil {
		m = map[string]any{}
	}
	m["user_id"] = userID
	b, err := json.Marshal(m)
	if err != nil {
		return rawArgs
	}
	return string(b)
}

// GetToolInfos collects the declared schemas of a tool slice.
func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

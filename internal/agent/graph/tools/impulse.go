package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketwise/server/internal/agent/model"
)

// impulseKeywords trigger the description rule. They mirror the promotional
// and urgency framing the assistant is trained to flag.
var impulseKeywords = []string{"盲盒", "限时", "促销", "折扣", "不需要", "冲动", "买买买"}

// restraintPlanTypes are the plan types whose stage targets produce an
// advisory reason (no score points) in the verdict.
var restraintPlanTypes = map[string]bool{
	"储蓄":     true,
	"saving": true,
	"消费节制":   true,
	"节省":     true,
}

// ImpulseInput is everything the scorer looks at. The function is pure:
// identical inputs produce an identical verdict, byte for byte.
type ImpulseInput struct {
	Profile        model.Profile
	ActivePlans    []model.Plan
	RecentExpenses []model.ExpenseRecord // most recent first
	Description    string
	Amount         float64
	Now            time.Time
}

// Remind gives the caller the context behind the verdict regardless of the
// outcome.
type Remind struct {
	ActivePlans          []model.Plan          `json:"active_plans"`
	RecentExpensesSample []model.ExpenseRecord `json:"recent_expenses_sample"`
	MonthlyBudget        float64               `json:"monthly_budget"`
	MonthSpentEstimate   float64               `json:"month_spent_estimate"`
	MonthRemaining       float64               `json:"month_remaining_estimate"`
}

// ImpulseVerdict is the scorer's result.
type ImpulseVerdict struct {
	IsImpulse      bool   `json:"is_impulse"`
	Score          int    `json:"score"`
	Reason         string `json:"reason"`
	Recommendation string `json:"recommendation"`
	Remind         Remind `json:"remind"`
}

// ScoreImpulse classifies one prospective expense with an additive
// multi-factor score. Each triggered rule contributes points and a
// human-readable reason; score >= 3 means impulsive, exactly 2 means
// suspicious.
func ScoreImpulse(in ImpulseInput) ImpulseVerdict {
	var reasons []string
	score := 0

	for _, plan := range in.ActivePlans {
		if restraintPlanTypes[strings.ToLower(plan.PlanType)] && plan.StagesAmount != 0 {
			reasons = append(reasons, fmt.Sprintf("存在阶段计划（每阶段目标 %g），本次消费可能影响计划进度。", plan.StagesAmount))
		}
	}

	budget := in.Profile.MonthlyBudget
	if budget > 0 {
		ratio := in.Amount / budget
		if ratio >= 0.1 {
			score += 2
			reasons = append(reasons, fmt.Sprintf("金额占月预算的 %.1f%%（阈值 10%%）", ratio*100))
		} else if ratio >= 0.05 {
			score++
			reasons = append(reasons, fmt.Sprintf("金额占月预算的 %.1f%%（较高）", ratio*100))
		}
	}

	if avg := averageAmount(in.RecentExpenses); avg > 0 {
		if in.Amount > avg*3 {
			score += 2
			reasons = append(reasons, fmt.Sprintf("消费远高于近期平均（%.2f），超过 3 倍", avg))
		} else if in.Amount > avg*1.5 {
			score++
			reasons = append(reasons, fmt.Sprintf("消费高于近期平均（%.2f）", avg))
		}
	}

	desc := strings.ToLower(in.Description)
	for _, kw := range impulseKeywords {
		if strings.Contains(desc, kw) {
			score += 2
			reasons = append(reasons, "商品描述包含冲动消费触发词")
			break
		}
	}

	for _, tag := range in.Profile.PersonalityTags {
		if strings.Contains(strings.ToLower(tag), "impuls") || strings.Contains(tag, "冲动") {
			score++
			reasons = append(reasons, "用户档案包含“容易冲动”相关标签")
			break
		}
	}

	monthSpent := monthToDateSpend(in.RecentExpenses, in.Now)
	var remaining float64
	if budget > 0 {
		remaining = budget - monthSpent
		if remaining < 0 {
			remaining = 0
		}
		if remaining <= 0 {
			score += 2
			reasons = append(reasons, "本月预算已接近或超支")
		} else if in.Amount > remaining {
			score += 2
			reasons = append(reasons, fmt.Sprintf("本次消费超过本月剩余额度（剩余 %.2f）", remaining))
		} else if in.Amount > remaining*0.5 {
			score++
			reasons = append(reasons, fmt.Sprintf("本次消费占本月剩余额度较高（剩余 %.2f）", remaining))
		}
	}

	isImpulse := score >= 3
	if score == 2 {
		reasons = append(reasons, "判定为可疑消费，建议二次确认")
	}

	recommendation := "看起来是理性消费，可记录入账以便后续分析。"
	if isImpulse {
		recommendation = "该消费可能为冲动消费，建议考虑推迟购买、设置等待期或采用预算外决定流程。"
	} else if score == 2 {
		recommendation = "该消费可疑，建议二次确认或缩小购买金额。"
	}

	reason := "看起来是一笔在合理范围内的理性消费。"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	sample := in.RecentExpenses
	if len(sample) > 5 {
		sample = sample[:5]
	}

	return ImpulseVerdict{
		IsImpulse:      isImpulse,
		Score:          score,
		Reason:         reason,
		Recommendation: recommendation,
		Remind: Remind{
			ActivePlans:          in.ActivePlans,
			RecentExpensesSample: sample,
			MonthlyBudget:        budget,
			MonthSpentEstimate:   monthSpent,
			MonthRemaining:       remaining,
		},
	}
}

func averageAmount(expenses []model.ExpenseRecord) float64 {
	if len(expenses) == 0 {
		return 0
	}
	var sum float64
	for _, e := range expenses {
		sum += e.Amount
	}
	return sum / float64(len(expenses))
}

// monthToDateSpend sums the sampled expenses that fall in the same calendar
// month as now.
func monthToDateSpend(expenses []model.ExpenseRecord, now time.Time) float64 {
	var spent float64
	for _, e := range expenses {
		if e.Timestamp.Year() == now.Year() && e.Timestamp.Month() == now.Month() {
			spent += e.Amount
		}
	}
	return spent
}

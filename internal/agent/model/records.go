package model

import "time"

// Profile is the long-term financial snapshot for one user.
type Profile struct {
	Income          float64  `json:"income"`
	MonthlyBudget   float64  `json:"monthly_budget"`
	Saving          float64  `json:"saving"`
	PersonalityTags []string `json:"personality_tags"`
	CurrentMood     string   `json:"current_mood"`
}

// DefaultProfile is the zero-valued profile written on first access.
func DefaultProfile() Profile {
	return Profile{
		PersonalityTags: []string{},
		CurrentMood:     "neutral",
	}
}

// Merge returns a copy of the profile with the supplied fields applied.
// Unknown keys are ignored; numeric values arrive as float64 from JSON.
func (p Profile) Merge(updates map[string]any) Profile {
	out := p
	for k, v := range updates {
		switch k {
		case "income":
			if f, ok := toFloat(v); ok {
				out.Income = f
			}
		case "monthly_budget":
			if f, ok := toFloat(v); ok {
				out.MonthlyBudget = f
			}
		case "saving":
			if f, ok := toFloat(v); ok {
				out.Saving = f
			}
		case "personality_tags":
			out.PersonalityTags = toStringSlice(v)
		case "current_mood":
			if s, ok := v.(string); ok {
				out.CurrentMood = s
			}
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ExpenseRecord is one logged expense row.
type ExpenseRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Context     string    `json:"context"`
	Timestamp   time.Time `json:"timestamp"`
}

// Plan is one financial plan row. Status is "active" until closed.
type Plan struct {
	ID           int64   `json:"id"`
	UserID       string  `json:"user_id"`
	PlanType     string  `json:"plan_type"`
	Content      string  `json:"content"`
	StartDate    string  `json:"start_date"`
	GoalAmount   float64 `json:"goal_amount"`
	StagesAmount float64 `json:"stages_amount"`
	Status       string  `json:"status"`
}

// PlanUpdate carries the optional fields of an update; nil means unchanged.
type PlanUpdate struct {
	PlanType     *string
	Content      *string
	StartDate    *string
	GoalAmount   *float64
	StagesAmount *float64
	Status       *string
}

// Empty reports whether the update touches no field at all.
func (u PlanUpdate) Empty() bool {
	return u.PlanType == nil && u.Content == nil && u.StartDate == nil &&
		u.GoalAmount == nil && u.StagesAmount == nil && u.Status == nil
}

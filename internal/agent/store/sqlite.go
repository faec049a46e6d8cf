package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pocketwise/server/internal/agent/model"
	errx "github.com/pocketwise/server/internal/core/error"
	logx "github.com/pocketwise/server/pkg/logger"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    user_id      TEXT PRIMARY KEY,
    profile_json TEXT
);
CREATE TABLE IF NOT EXISTS expenses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     TEXT,
    description TEXT,
    amount      REAL,
    category    TEXT,
    context     TEXT,
    timestamp   TEXT
);
CREATE TABLE IF NOT EXISTS plans (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id      TEXT,
    plan_type    TEXT,
    content      TEXT,
    start_date   TEXT,
    goal_amount  REAL,
    stages_amount REAL,
    status       TEXT
);
`

// SQLiteStorage persists profiles, expenses and plans in a local SQLite
// database. Profiles live as one JSON document per user.
type SQLiteStorage struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (and creates if missing) the database at path and applies the
// schema.
func Open(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("open sqlite at %s: %w", path, err))
	}
	// modernc sqlite serializes per connection; a single connection avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errx.WrapStorage(fmt.Errorf("apply schema: %w", err))
	}

	logx.Debug().Str("path", path).Msg("SQLite storage ready")
	return &SQLiteStorage{db: db, clock: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SetClock overrides the timestamp source, for tests.
func (s *SQLiteStorage) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// GetProfile loads a user's profile. A user seen for the first time gets
// the default profile written back before it is returned.
func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT profile_json FROM users WHERE user_id = ?", userID).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		profile := model.DefaultProfile()
		if err := s.writeProfile(ctx, userID, profile); err != nil {
			return model.Profile{}, err
		}
		return profile, nil
	case err != nil:
		return model.Profile{}, errx.WrapStorage(fmt.Errorf("select profile: %w", err))
	}

	var profile model.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return model.Profile{}, errx.WrapStorage(fmt.Errorf("decode profile for %s: %w", userID, err))
	}
	return profile, nil
}

// UpdateProfile shallow-merges updates into the stored profile and persists
// the result. Missing users start from the default profile.
func (s *SQLiteStorage) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (model.Profile, error) {
	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	merged := current.Merge(updates)
	if err := s.writeProfile(ctx, userID, merged); err != nil {
		return model.Profile{}, err
	}
	return merged, nil
}

func (s *SQLiteStorage) writeProfile(ctx context.Context, userID string, profile model.Profile) error {
	b, err := json.Marshal(profile)
	if err != nil {
		return errx.WrapStorage(fmt.Errorf("encode profile: %w", err))
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO users (user_id, profile_json) VALUES (?, ?)",
		userID, string(b))
	if err != nil {
		return errx.WrapStorage(fmt.Errorf("upsert profile: %w", err))
	}
	return nil
}

func (s *SQLiteStorage) AddExpense(ctx context.Context, userID, description string, amount float64, category, context string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO expenses (user_id, description, amount, category, context, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		userID, description, amount, category, context, s.clock().Format(time.RFC3339))
	if err != nil {
		return errx.WrapStorage(fmt.Errorf("insert expense: %w", err))
	}
	return nil
}

// GetRecentExpenses returns up to limit expenses, most recent first.
func (s *SQLiteStorage) GetRecentExpenses(ctx context.Context, userID string, limit int) ([]model.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, description, amount, category, context, timestamp FROM expenses WHERE user_id = ? ORDER BY id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("select expenses: %w", err))
	}
	defer rows.Close()

	var out []model.ExpenseRecord
	for rows.Next() {
		var rec model.ExpenseRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Description, &rec.Amount, &rec.Category, &rec.Context, &ts); err != nil {
			return nil, errx.WrapStorage(fmt.Errorf("scan expense: %w", err))
		}
		rec.Timestamp = parseTimestamp(ts)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("iterate expenses: %w", err))
	}
	return out, nil
}

func (s *SQLiteStorage) AddPlan(ctx context.Context, userID, planType, content, startDate string, goalAmount, stagesAmount float64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO plans (user_id, plan_type, content, start_date, goal_amount, stages_amount, status) VALUES (?, ?, ?, ?, ?, ?, ?)",
		userID, planType, content, startDate, goalAmount, stagesAmount, "active")
	if err != nil {
		return errx.WrapStorage(fmt.Errorf("insert plan: %w", err))
	}
	return nil
}

func (s *SQLiteStorage) GetActivePlans(ctx context.Context, userID string) ([]model.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, plan_type, content, start_date, goal_amount, stages_amount, status FROM plans WHERE user_id = ? AND status = 'active'",
		userID)
	if err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("select plans: %w", err))
	}
	defer rows.Close()

	var out []model.Plan
	for rows.Next() {
		var p model.Plan
		var goal, stages sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanType, &p.Content, &p.StartDate, &goal, &stages, &p.Status); err != nil {
			return nil, errx.WrapStorage(fmt.Errorf("scan plan: %w", err))
		}
		p.GoalAmount = goal.Float64
		p.StagesAmount = stages.Float64
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("iterate plans: %w", err))
	}
	return out, nil
}

// UpdatePlan applies the non-nil fields of update to one plan row. Returns
// false when the update is empty or no row matched.
func (s *SQLiteStorage) UpdatePlan(ctx context.Context, planID int64, userID string, update model.PlanUpdate) (bool, error) {
	if update.Empty() {
		return false, nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+"=?")
		args = append(args, value)
	}
	if update.PlanType != nil {
		add("plan_type", *update.PlanType)
	}
	if update.Content != nil {
		add("content", *update.Content)
	}
	if update.StartDate != nil {
		add("start_date", *update.StartDate)
	}
	if update.GoalAmount != nil {
		add("goal_amount", *update.GoalAmount)
	}
	if update.StagesAmount != nil {
		add("stages_amount", *update.StagesAmount)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}

	query := "UPDATE plans SET " + strings.Join(sets, ", ") + " WHERE id=? AND user_id=?"
	args = append(args, planID, userID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errx.WrapStorage(fmt.Errorf("update plan: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errx.WrapStorage(fmt.Errorf("update plan rowcount: %w", err))
	}
	return n > 0, nil
}

// DeletePlan removes one plan row. Returns false when no row matched.
func (s *SQLiteStorage) DeletePlan(ctx context.Context, planID int64, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM plans WHERE id=? AND user_id=?", planID, userID)
	if err != nil {
		return false, errx.WrapStorage(fmt.Errorf("delete plan: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errx.WrapStorage(fmt.Errorf("delete plan rowcount: %w", err))
	}
	return n > 0, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ model.Storage = (*SQLiteStorage)(nil)

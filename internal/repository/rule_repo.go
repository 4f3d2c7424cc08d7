package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inboxpilot/internal/model"
)

type RuleRepository struct {
	db *pgxpool.Pool
}

func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `
        id, user_id, name, trigger_type, trigger_config, action_type, action_config,
        enabled, priority, execution_count, last_executed_at, created_at`

func scanRules(rows pgx.Rows) ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	for rows.Next() {
		var ru model.AutomationRule
		err := rows.Scan(
			&ru.ID, &ru.UserID, &ru.Name, &ru.TriggerType, &ru.TriggerConfig,
			&ru.ActionType, &ru.ActionConfig, &ru.Enabled, &ru.Priority,
			&ru.ExecutionCount, &ru.LastExecutedAt, &ru.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, ru)
	}
	return rules, rows.Err()
}

// Create inserts a new rule.
func (r *RuleRepository) Create(ctx context.Context, ru *model.AutomationRule) error {
	query := `
        INSERT INTO automation_rules
            (user_id, name, trigger_type, trigger_config, action_type, action_config, enabled, priority, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		ru.UserID, ru.Name, ru.TriggerType, ru.TriggerConfig,
		ru.ActionType, ru.ActionConfig, ru.Enabled, ru.Priority,
	).Scan(&ru.ID, &ru.CreatedAt)
}

// FindByID returns one rule.
func (r *RuleRepository) FindByID(ctx context.Context, id int) (*model.AutomationRule, error) {
	query := `SELECT` + ruleColumns + ` FROM automation_rules WHERE id = $1`
	var ru model.AutomationRule
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ru.ID, &ru.UserID, &ru.Name, &ru.TriggerType, &ru.TriggerConfig,
		&ru.ActionType, &ru.ActionConfig, &ru.Enabled, &ru.Priority,
		&ru.ExecutionCount, &ru.LastExecutedAt, &ru.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ru, nil
}

// ListByUser returns all rules for a user in evaluation order:
// priority ascending, then creation order.
func (r *RuleRepository) ListByUser(ctx context.Context, userID int) ([]model.AutomationRule, error) {
	query := `
        SELECT` + ruleColumns + `
        FROM automation_rules
        WHERE user_id = $1
        ORDER BY priority ASC, created_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListEnabledByUser returns only enabled rules, in evaluation order.
func (r *RuleRepository) ListEnabledByUser(ctx context.Context, userID int) ([]model.AutomationRule, error) {
	query := `
        SELECT` + ruleColumns + `
        FROM automation_rules
        WHERE user_id = $1 AND enabled
        ORDER BY priority ASC, created_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// Update mutates a rule. The WHERE clause includes the owner so a
// non-owner update matches zero rows.
func (r *RuleRepository) Update(ctx context.Context, ru *model.AutomationRule) (bool, error) {
	query := `
        UPDATE automation_rules
        SET name = $3, trigger_type = $4, trigger_config = $5,
            action_type = $6, action_config = $7, enabled = $8, priority = $9
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.db.Exec(ctx, query,
		ru.ID, ru.UserID, ru.Name, ru.TriggerType, ru.TriggerConfig,
		ru.ActionType, ru.ActionConfig, ru.Enabled, ru.Priority,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a rule owned by userID.
func (r *RuleRepository) Delete(ctx context.Context, id, userID int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM automation_rules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementExecution bumps execution_count once. Called when a
// rule_action job transitions to succeeded, never during evaluation.
func (r *RuleRepository) IncrementExecution(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, `
        UPDATE automation_rules
        SET execution_count = execution_count + 1, last_executed_at = NOW()
        WHERE id = $1
    `, id)
	return err
}

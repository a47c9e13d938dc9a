package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
)

const ruleColumns = `id, group_id, coach_id, weekday, start_minute, end_minute, is_active, created_at, updated_at`

// AvailabilityRuleRepository управляет еженедельными окнами доступности в базе данных
type AvailabilityRuleRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewAvailabilityRuleRepository создаёт новый репозиторий
func NewAvailabilityRuleRepository(pool *pgxpool.Pool, logger *zap.Logger) *AvailabilityRuleRepository {
	return &AvailabilityRuleRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// CreateGroup создаёт правила группы одной транзакцией
func (r *AvailabilityRuleRepository) CreateGroup(ctx context.Context, rules []*model.AvailabilityRule) error {
	if len(rules) == 0 {
		return nil
	}

	query := `
		INSERT INTO availability_rules (group_id, coach_id, weekday, start_minute, end_minute, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rule := range rules {
			err := tx.QueryRow(
				ctx,
				query,
				rule.GroupID,
				rule.CoachID,
				rule.Weekday,
				rule.StartMinute,
				rule.EndMinute,
				rule.IsActive,
			).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create availability rules: %w", err)
	}

	r.logger.Debug("Availability rules created",
		zap.String("group_id", rules[0].GroupID.String()),
		zap.Int("count", len(rules)),
	)

	return nil
}

// GetByID получает правило по ID
func (r *AvailabilityRuleRepository) GetByID(ctx context.Context, id int64) (*model.AvailabilityRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM availability_rules WHERE id = $1`

	rule, err := scanRule(r.QueryRow(ctx, query, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get availability rule by id: %w", err)
	}

	return rule, nil
}

// GetByCoachID получает все правила коуча
func (r *AvailabilityRuleRepository) GetByCoachID(ctx context.Context, coachID int64) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE coach_id = $1
		ORDER BY weekday, start_minute
	`

	return r.list(ctx, "get availability rules by coach", query, coachID)
}

// GetActiveByCoachWeekday получает активные правила коуча на день недели
func (r *AvailabilityRuleRepository) GetActiveByCoachWeekday(ctx context.Context, coachID int64, weekday int) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE coach_id = $1 AND weekday = $2 AND is_active = true
		ORDER BY start_minute
	`

	return r.list(ctx, "get active availability rules", query, coachID, weekday)
}

// GetByGroupID получает все правила группы
func (r *AvailabilityRuleRepository) GetByGroupID(ctx context.Context, groupID uuid.UUID) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM availability_rules
		WHERE group_id = $1
		ORDER BY weekday, start_minute
	`

	return r.list(ctx, "get availability rules by group_id", query, groupID)
}

// Update обновляет правило
func (r *AvailabilityRuleRepository) Update(ctx context.Context, rule *model.AvailabilityRule) error {
	query := `
		UPDATE availability_rules
		SET weekday = $2, start_minute = $3, end_minute = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx,
		query,
		rule.ID,
		rule.Weekday,
		rule.StartMinute,
		rule.EndMinute,
		rule.IsActive,
	).Scan(&rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("update availability rule: %w", err)
	}

	return nil
}

// Deactivate деактивирует правило
func (r *AvailabilityRuleRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE availability_rules SET is_active = false, updated_at = NOW() WHERE id = $1`

	if _, err := r.ExecAffected(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate availability rule: %w", err)
	}

	return nil
}

// DeactivateByGroupID деактивирует все правила группы
func (r *AvailabilityRuleRepository) DeactivateByGroupID(ctx context.Context, groupID uuid.UUID) error {
	query := `UPDATE availability_rules SET is_active = false, updated_at = NOW() WHERE group_id = $1`

	if _, err := r.ExecAffected(ctx, query, groupID); err != nil {
		return fmt.Errorf("deactivate availability rules by group_id: %w", err)
	}

	return nil
}

func (r *AvailabilityRuleRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.AvailabilityRule, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rules []*model.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rules, nil
}

func scanRule(row rowScanner) (*model.AvailabilityRule, error) {
	rule := &model.AvailabilityRule{}
	err := row.Scan(
		&rule.ID,
		&rule.GroupID,
		&rule.CoachID,
		&rule.Weekday,
		&rule.StartMinute,
		&rule.EndMinute,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

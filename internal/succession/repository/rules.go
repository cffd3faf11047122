package repository

import (
	"context"
	"errors"
	"time"

	"leaddesk_backend/internal/succession/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Rule is one organization's escalation policy.
type Rule struct {
	ID                         uuid.UUID
	OrganizationID             uuid.UUID
	Enabled                    bool
	InactivityThresholdMinutes int
	ApplicableRoles            []domain.Role
	NotificationChannel        domain.NotificationChannel
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

const ruleSelectCols = `
	id, organization_id, enabled, inactivity_threshold_minutes, applicable_roles, notification_channel, created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	var roles []string
	if err := row.Scan(
		&rule.ID, &rule.OrganizationID, &rule.Enabled, &rule.InactivityThresholdMinutes,
		&roles, &rule.NotificationChannel, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return Rule{}, err
	}
	rule.ApplicableRoles = make([]domain.Role, 0, len(roles))
	for _, role := range roles {
		rule.ApplicableRoles = append(rule.ApplicableRoles, domain.Role(role))
	}
	return rule, nil
}

// GetActiveRule returns the organization's effective escalation rule, or nil
// if no enabled rule exists. If history contains multiple enabled rows the
// most recently created one wins; SetRule keeps at most one enabled in
// practice, the ordering here covers rows written before that convention.
func (r *Repository) GetActiveRule(ctx context.Context, organizationID uuid.UUID) (*Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `
		SELECT`+ruleSelectCols+`
		FROM reassignment_rules
		WHERE organization_id = $1 AND enabled
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, organizationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListOrganizationsWithActiveRules returns every organization the sweep
// scheduler must visit this tick.
func (r *Repository) ListOrganizationsWithActiveRules(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT organization_id
		FROM reassignment_rules
		WHERE enabled
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetRuleParams describes a new effective rule for an organization.
type SetRuleParams struct {
	OrganizationID             uuid.UUID
	Enabled                    bool
	InactivityThresholdMinutes int
	ApplicableRoles            []domain.Role
	NotificationChannel        domain.NotificationChannel
}

// SetRule records a new rule version and retires all previously enabled
// rows in the same transaction. Rule history is kept; only the newest row is
// ever effective.
func (r *Repository) SetRule(ctx context.Context, params SetRuleParams) (Rule, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Rule{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		UPDATE reassignment_rules
		SET enabled = false, updated_at = now()
		WHERE organization_id = $1 AND enabled
	`, params.OrganizationID); err != nil {
		return Rule{}, err
	}

	roles := make([]string, 0, len(params.ApplicableRoles))
	for _, role := range params.ApplicableRoles {
		roles = append(roles, string(role))
	}

	var rule Rule
	rule, err = scanRule(tx.QueryRow(ctx, `
		INSERT INTO reassignment_rules (
			organization_id, enabled, inactivity_threshold_minutes, applicable_roles, notification_channel
		)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING`+ruleSelectCols+`
	`, params.OrganizationID, params.Enabled, params.InactivityThresholdMinutes, roles, params.NotificationChannel))
	if err != nil {
		return Rule{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertAlertSQL = `INSERT INTO price_alerts (chain, threshold, email)
    VALUES ($1, $2, $3)
    RETURNING id, chain, threshold, email, created_at;`

	listAlertsByChainSQL = `SELECT id, chain, threshold, email, created_at
    FROM price_alerts
    WHERE chain = $1;`

	listRecentAlertsSQL = `SELECT id, chain, threshold, email, created_at
    FROM price_alerts
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`
)

// CreateAlert validates and persists a new threshold alert rule. The chain is
// deliberately not checked against the polled set: a rule for an unpolled
// chain is inert but valid.
func (s *Store) CreateAlert(ctx context.Context, chain string, threshold decimal.Decimal, email string) (AlertRule, error) {
	if strings.TrimSpace(chain) == "" {
		return AlertRule{}, fmt.Errorf("%w: chain is required", ErrInvalidAlert)
	}
	if strings.TrimSpace(email) == "" {
		return AlertRule{}, fmt.Errorf("%w: email is required", ErrInvalidAlert)
	}
	if !threshold.IsPositive() {
		return AlertRule{}, fmt.Errorf("%w: threshold must be greater than zero", ErrInvalidAlert)
	}

	pool, err := s.getPool()
	if err != nil {
		return AlertRule{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL, chain, threshold.String(), email)
	rule, err := scanAlertRule(row)
	if err != nil {
		return AlertRule{}, fmt.Errorf("insert alert: %w", err)
	}
	return rule, nil
}

// ListAlertsByChain returns every rule registered for chain.
func (s *Store) ListAlertsByChain(ctx context.Context, chain string) ([]AlertRule, error) {
	return s.queryAlerts(ctx, listAlertsByChainSQL, chain)
}

// ListRecentAlerts returns the newest registered rules.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRule, error) {
	return s.queryAlerts(ctx, listRecentAlertsSQL, limit)
}

func (s *Store) queryAlerts(ctx context.Context, sql string, args ...any) ([]AlertRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	rules := make([]AlertRule, 0)
	for rows.Next() {
		rule, scanErr := scanAlertRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

func scanAlertRule(row pgx.Row) (AlertRule, error) {
	var (
		rule         AlertRule
		thresholdStr string
	)

	if err := row.Scan(&rule.ID, &rule.Chain, &thresholdStr, &rule.Email, &rule.CreatedAt); err != nil {
		return AlertRule{}, err
	}

	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return AlertRule{}, fmt.Errorf("parse threshold: %w", err)
	}
	rule.Threshold = threshold

	return rule, nil
}

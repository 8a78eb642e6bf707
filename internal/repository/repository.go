// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRuleDefinition upserts a rule definition with tenant isolation.
// The structured parts (condition, severity, params) are stored as a JSON
// document; scalar columns are denormalized for listing and filtering.
func (r *SQLRepository) SaveRuleDefinition(ctx context.Context, tenantID string, rule *domain.RuleDefinition) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	definition, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule definition: %w", err)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_definitions (
			id, tenant_id, bucket, name, priority, weight, enabled, definition, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			bucket = excluded.bucket,
			name = excluded.name,
			priority = excluded.priority,
			weight = excluded.weight,
			enabled = excluded.enabled,
			definition = excluded.definition,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Bucket, rule.Name,
		rule.Priority, rule.Weight, enabled, string(definition),
		now, now,
	)
	return err
}

// GetRuleDefinition retrieves a rule definition with tenant isolation.
func (r *SQLRepository) GetRuleDefinition(ctx context.Context, tenantID string, ruleID string) (*domain.RuleDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT definition, enabled
		FROM rule_definitions
		WHERE tenant_id = ? AND id = ?
	`

	var definition string
	var enabled int
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(&definition, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rule domain.RuleDefinition
	if err := json.Unmarshal([]byte(definition), &rule); err != nil {
		return nil, fmt.Errorf("failed to parse rule definition %s: %w", ruleID, err)
	}
	// The enabled column is authoritative; a soft delete flips it without
	// rewriting the document.
	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListRuleDefinitions retrieves all rule definitions for a tenant, enabled
// or not, ordered by priority then id.
func (r *SQLRepository) ListRuleDefinitions(ctx context.Context, tenantID string) ([]*domain.RuleDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, definition, enabled
		FROM rule_definitions
		WHERE tenant_id = ?
		ORDER BY priority, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RuleDefinition
	for rows.Next() {
		var id, definition string
		var enabled int
		if err := rows.Scan(&id, &definition, &enabled); err != nil {
			return nil, err
		}

		var rule domain.RuleDefinition
		if err := json.Unmarshal([]byte(definition), &rule); err != nil {
			return nil, fmt.Errorf("failed to parse rule definition %s: %w", id, err)
		}
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteRuleDefinition disables a rule definition (soft delete).
func (r *SQLRepository) DeleteRuleDefinition(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE rule_definitions
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for rule catalog persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Rule definition operations
	SaveRuleDefinition(ctx context.Context, tenantID string, rule *RuleDefinition) error
	GetRuleDefinition(ctx context.Context, tenantID string, ruleID string) (*RuleDefinition, error)
	ListRuleDefinitions(ctx context.Context, tenantID string) ([]*RuleDefinition, error)
	DeleteRuleDefinition(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

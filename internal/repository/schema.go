package repository

// Schemas are written to work on both SQLite and PostgreSQL.

const ruleDefinitionsSchema = `
CREATE TABLE IF NOT EXISTS rule_definitions (
	id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	bucket TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 100,
	weight REAL NOT NULL DEFAULT 1.0,
	enabled INTEGER NOT NULL DEFAULT 1,
	definition TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (id, tenant_id)
);
CREATE INDEX IF NOT EXISTS idx_rule_definitions_tenant ON rule_definitions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_definitions_tenant_bucket ON rule_definitions(tenant_id, bucket);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		ruleDefinitionsSchema,
	}
}

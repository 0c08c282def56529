package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate runs all database migrations
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		createUserLogsTable,
		createHandlerErrorsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	if err := migrateErrorStack(db); err != nil {
		return fmt.Errorf("handler_errors stack migration failed: %w", err)
	}

	return nil
}

// migrateErrorStack adds the stack column to handler_errors tables created
// before panics carried a stack trace.
func migrateErrorStack(db *sqlx.DB) error {
	var columnExists int
	err := db.Get(&columnExists,
		"SELECT COUNT(*) FROM pragma_table_info('handler_errors') WHERE name='stack'")
	if err != nil {
		return fmt.Errorf("failed to check for stack column: %w", err)
	}
	if columnExists > 0 {
		return nil
	}
	if _, err := db.Exec("ALTER TABLE handler_errors ADD COLUMN stack TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("failed to add stack column: %w", err)
	}
	return nil
}

// user_logs keeps the layout of the existing log database so old logs stay
// usable for .ask and chat context.
const createUserLogsTable = `
CREATE TABLE IF NOT EXISTS user_logs (
	nick TEXT,
	target TEXT,
	message TEXT,
	timestamp REAL
);
`

const createHandlerErrorsTable = `
CREATE TABLE IF NOT EXISTS handler_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	context TEXT NOT NULL,
	error TEXT NOT NULL,
	occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_user_logs_nick_target ON user_logs(nick, target);
CREATE INDEX IF NOT EXISTS idx_user_logs_target_timestamp ON user_logs(target, timestamp);
CREATE INDEX IF NOT EXISTS idx_handler_errors_occurred_at ON handler_errors(occurred_at);
`

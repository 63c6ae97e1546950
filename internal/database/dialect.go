package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// Name returns the configured store driver name (sqlite, postgres, mysql)
	Name() string

	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// UpsertDailyHistoryQuery returns an insert-or-increment statement for daily_history
	// taking (account_id, activity_day, correct_count, incorrect_count)
	UpsertDailyHistoryQuery() string

	// IsUniqueViolation reports whether err is a unique constraint violation
	IsUniqueViolation(err error) bool
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// standardUpsertDailyHistory is shared by SQLite and PostgreSQL, which both
// implement ON CONFLICT ... DO UPDATE with an EXCLUDED pseudo-table.
const standardUpsertDailyHistory = `
	INSERT INTO daily_history (account_id, activity_day, correct_count, incorrect_count)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (account_id, activity_day) DO UPDATE SET
		correct_count = daily_history.correct_count + excluded.correct_count,
		incorrect_count = daily_history.incorrect_count + excluded.incorrect_count
`

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mathquest/internal/database"
	"mathquest/internal/models"
)

// AccountRepository stores accounts in a SQL database
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new SQL account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, username_key, credential_hash, age, role, COALESCE(guardian_id, ''),
	last_activity_date, streak, spent_points, created_at`

// Ping checks the database connection
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection
func (r *AccountRepository) Close() error {
	return r.db.Close()
}

// CreateAccount inserts a new account with zeroed counters for every topic
func (r *AccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	account.Topics = newTopicMap()
	account.DailyHistory = nil
	account.Inventory = nil
	account.Streak = 0
	account.SpentPoints = 0
	account.LastActivityDate = ""
	return r.insert(ctx, account)
}

// RestoreAccount inserts an account exactly as given
func (r *AccountRepository) RestoreAccount(ctx context.Context, account *models.Account) error {
	return r.insert(ctx, account)
}

func (r *AccountRepository) insert(ctx context.Context, account *models.Account) error {
	account.UsernameKey = models.UsernameKey(account.Username)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO accounts (id, username, username_key, credential_hash, age, role, guardian_id,
				last_activity_date, streak, spent_points, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			account.ID,
			account.Username,
			account.UsernameKey,
			account.CredentialHash,
			account.Age,
			string(account.Role),
			nullableString(account.GuardianID),
			account.LastActivityDate,
			account.Streak,
			account.SpentPoints,
			account.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}

		for _, topic := range models.AllTopics {
			stats := account.Stats(topic)
			_, err := tx.ExecContext(ctx,
				"INSERT INTO topic_stats (account_id, topic, score, failures, frequency_tier) VALUES (?, ?, ?, ?, ?)",
				account.ID, string(topic), stats.Score, stats.Failures, stats.FrequencyTier)
			if err != nil {
				return err
			}
		}

		for _, entry := range account.DailyHistory {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO daily_history (account_id, activity_day, correct_count, incorrect_count) VALUES (?, ?, ?, ?)",
				account.ID, entry.Date, entry.CorrectCount, entry.IncorrectCount)
			if err != nil {
				return err
			}
		}

		purchasedAt := account.CreatedAt.UTC().Format(time.RFC3339Nano)
		for _, item := range account.Inventory {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO inventory_items (account_id, item_id, cost, purchased_at) VALUES (?, ?, 0, ?)",
				account.ID, item, purchasedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return r.conflictError(ctx, account, err)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// conflictError names the account that a failed insert collided with.
// Violations of other keys, such as two history rows for one day, are returned as is.
func (r *AccountRepository) conflictError(ctx context.Context, account *models.Account, cause error) error {
	checks := []struct {
		query string
		arg   string
		err   error
	}{
		{"SELECT COUNT(*) FROM accounts WHERE username_key = ?", account.UsernameKey, ErrDuplicateUsername},
		{"SELECT COUNT(*) FROM accounts WHERE id = ?", account.ID, ErrDuplicateID},
	}
	for _, check := range checks {
		var n int
		if err := r.db.QueryRowContext(ctx, check.query, check.arg).Scan(&n); err != nil {
			return fmt.Errorf("failed to create account: %w", cause)
		}
		if n > 0 {
			return check.err
		}
	}
	return fmt.Errorf("failed to create account: %w", cause)
}

// GetAccountByUsername retrieves an account by username, ignoring case
func (r *AccountRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE username_key = ?"
	return r.getOne(ctx, r.db, query, models.UsernameKey(username))
}

// GetAccountByID retrieves an account by ID
func (r *AccountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ?"
	return r.getOne(ctx, r.db, query, id)
}

func (r *AccountRepository) getOne(ctx context.Context, q database.DBTX, query string, arg any) (*models.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if err := r.loadDetails(ctx, q, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccountsByGuardian retrieves the learners linked to a guardian
func (r *AccountRepository) ListAccountsByGuardian(ctx context.Context, guardianID string) ([]models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE guardian_id = ? ORDER BY created_at ASC, username_key ASC"
	return r.list(ctx, query, guardianID)
}

// ListAllAccounts retrieves every account
func (r *AccountRepository) ListAllAccounts(ctx context.Context) ([]models.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts ORDER BY username_key ASC"
	return r.list(ctx, query)
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	rows.Close()

	for i := range accounts {
		if err := r.loadDetails(ctx, r.db, &accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	var role, createdAt string
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.UsernameKey,
		&account.CredentialHash,
		&account.Age,
		&role,
		&account.GuardianID,
		&account.LastActivityDate,
		&account.Streak,
		&account.SpentPoints,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	account.Role = models.Role(role)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		account.CreatedAt = t
	}
	return account, nil
}

// loadDetails fills in topic counters, history and inventory
func (r *AccountRepository) loadDetails(ctx context.Context, q database.DBTX, account *models.Account) error {
	account.Topics = newTopicMap()
	rows, err := q.QueryContext(ctx,
		"SELECT topic, score, failures, frequency_tier FROM topic_stats WHERE account_id = ?", account.ID)
	if err != nil {
		return fmt.Errorf("failed to query topic stats: %w", err)
	}
	for rows.Next() {
		var topic string
		var stats models.TopicStats
		if err := rows.Scan(&topic, &stats.Score, &stats.Failures, &stats.FrequencyTier); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan topic stats: %w", err)
		}
		if t, err := models.ParseTopic(topic); err == nil {
			account.Topics[t] = stats
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate topic stats: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		"SELECT activity_day, correct_count, incorrect_count FROM daily_history WHERE account_id = ? ORDER BY activity_day ASC",
		account.ID)
	if err != nil {
		return fmt.Errorf("failed to query daily history: %w", err)
	}
	account.DailyHistory = nil
	for rows.Next() {
		var entry models.DailyHistoryEntry
		if err := rows.Scan(&entry.Date, &entry.CorrectCount, &entry.IncorrectCount); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan daily history: %w", err)
		}
		account.DailyHistory = append(account.DailyHistory, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate daily history: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		"SELECT item_id FROM inventory_items WHERE account_id = ? ORDER BY id ASC", account.ID)
	if err != nil {
		return fmt.Errorf("failed to query inventory: %w", err)
	}
	account.Inventory = nil
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan inventory item: %w", err)
		}
		account.Inventory = append(account.Inventory, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate inventory: %w", err)
	}

	return nil
}

// IncrementTopicScore adds points to a topic score
func (r *AccountRepository) IncrementTopicScore(ctx context.Context, accountID string, topic models.Topic, points int) (int, error) {
	return r.incrementTopicCounter(ctx, "score", accountID, topic, points)
}

// IncrementTopicFailures adds one failure to a topic
func (r *AccountRepository) IncrementTopicFailures(ctx context.Context, accountID string, topic models.Topic) (int, error) {
	return r.incrementTopicCounter(ctx, "failures", accountID, topic, 1)
}

// topicCounterQueries maps a counter to fixed statements so no column name is built from input
var topicCounterQueries = map[string][2]string{
	"score": {
		"UPDATE topic_stats SET score = score + ? WHERE account_id = ? AND topic = ? AND score <= ?",
		"SELECT score FROM topic_stats WHERE account_id = ? AND topic = ?",
	},
	"failures": {
		"UPDATE topic_stats SET failures = failures + ? WHERE account_id = ? AND topic = ? AND failures <= ?",
		"SELECT failures FROM topic_stats WHERE account_id = ? AND topic = ?",
	},
}

func (r *AccountRepository) incrementTopicCounter(ctx context.Context, counter, accountID string, topic models.Topic, delta int) (int, error) {
	if !topic.Valid() {
		return 0, fmt.Errorf("unknown topic %q", topic)
	}
	if delta < 0 {
		return 0, fmt.Errorf("negative %s increment %d", counter, delta)
	}
	if delta > models.MaxCounter {
		return 0, fmt.Errorf("failed to increment %s: %w", counter, ErrCounterLimit)
	}
	queries := topicCounterQueries[counter]
	ceiling := models.MaxCounter - delta

	var value int
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		result, err := tx.ExecContext(ctx, queries[0], delta, accountID, string(topic), ceiling)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			err := tx.QueryRowContext(ctx, queries[1], accountID, string(topic)).Scan(&value)
			if err == nil {
				return ErrCounterLimit
			}
			if err != sql.ErrNoRows {
				return err
			}
			// Accounts restored without a row for this topic
			_, err = tx.ExecContext(ctx,
				"INSERT INTO topic_stats (account_id, topic, score, failures, frequency_tier) VALUES (?, ?, 0, 0, 1)",
				accountID, string(topic))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queries[0], delta, accountID, string(topic), ceiling); err != nil {
				return err
			}
		}
		return tx.QueryRowContext(ctx, queries[1], accountID, string(topic)).Scan(&value)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return value, nil
}

// CompareAndSetStreak updates the streak when the last activity date has not moved
func (r *AccountRepository) CompareAndSetStreak(ctx context.Context, accountID, expectedLastDate, newLastDate string, newStreak int) (bool, error) {
	query := "UPDATE accounts SET streak = ?, last_activity_date = ? WHERE id = ? AND last_activity_date = ?"
	result, err := r.db.ExecContext(ctx, query, newStreak, newLastDate, accountID, expectedLastDate)
	if err != nil {
		return false, fmt.Errorf("failed to update streak: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read streak update result: %w", err)
	}
	return affected == 1, nil
}

// RecordDailyOutcome adds one answer to the history entry for date
func (r *AccountRepository) RecordDailyOutcome(ctx context.Context, accountID, date string, correct bool) error {
	correctCount, incorrectCount := 0, 1
	if correct {
		correctCount, incorrectCount = 1, 0
	}
	_, err := r.db.ExecContext(ctx, r.db.Dialect.UpsertDailyHistoryQuery(), accountID, date, correctCount, incorrectCount)
	if err != nil {
		return fmt.Errorf("failed to record daily history: %w", err)
	}
	return nil
}

// SetFrequencyTier stores the frequency counter of a topic
func (r *AccountRepository) SetFrequencyTier(ctx context.Context, accountID string, topic models.Topic, tier int) error {
	if !topic.Valid() {
		return fmt.Errorf("unknown topic %q", topic)
	}
	query := "UPDATE topic_stats SET frequency_tier = ? WHERE account_id = ? AND topic = ?"
	if _, err := r.db.ExecContext(ctx, query, tier, accountID, string(topic)); err != nil {
		return fmt.Errorf("failed to set frequency tier: %w", err)
	}
	return nil
}

// Spend charges the account and records the item in one transaction.
// The balance check is part of the UPDATE so concurrent purchases cannot both pass it.
func (r *AccountRepository) Spend(ctx context.Context, accountID, itemID string, cost int) (*models.Account, error) {
	var account *models.Account
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			UPDATE accounts SET spent_points = spent_points + ?
			WHERE id = ?
			AND (SELECT COALESCE(SUM(score), 0) FROM topic_stats WHERE topic_stats.account_id = accounts.id) - spent_points >= ?
		`
		result, err := tx.ExecContext(ctx, query, cost, accountID, cost)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO inventory_items (account_id, item_id, cost, purchased_at) VALUES (?, ?, ?, ?)",
			accountID, itemID, cost, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}

		account, err = r.getOne(ctx, tx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", accountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to spend points: %w", err)
	}
	return account, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"mathquest/internal/config"
	"mathquest/internal/database"
	"mathquest/internal/models"
)

var (
	// ErrDuplicateUsername is returned when an account with the same username key already exists
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateID is returned when another account already uses the ID
	ErrDuplicateID = errors.New("account id already exists")
	// ErrCounterLimit is returned when an increment would take a counter past models.MaxCounter
	ErrCounterLimit = errors.New("counter limit reached")
)

// AccountStore is the single source of truth for account state.
// Lookups return nil, nil when nothing matches.
type AccountStore interface {
	Ping(ctx context.Context) error
	Close() error

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	ListAccountsByGuardian(ctx context.Context, guardianID string) ([]models.Account, error)
	ListAllAccounts(ctx context.Context) ([]models.Account, error)

	// IncrementTopicScore adds points to a topic score in one atomic step and returns the new score.
	// It fails with ErrCounterLimit instead of exceeding models.MaxCounter.
	IncrementTopicScore(ctx context.Context, accountID string, topic models.Topic, points int) (int, error)
	// IncrementTopicFailures adds one failure to a topic in one atomic step and returns the new count
	IncrementTopicFailures(ctx context.Context, accountID string, topic models.Topic) (int, error)
	// CompareAndSetStreak writes the streak only if the last activity date still equals expectedLastDate
	CompareAndSetStreak(ctx context.Context, accountID, expectedLastDate, newLastDate string, newStreak int) (bool, error)
	// RecordDailyOutcome bumps the history entry for date, creating it if it does not exist
	RecordDailyOutcome(ctx context.Context, accountID, date string, correct bool) error
	SetFrequencyTier(ctx context.Context, accountID string, topic models.Topic, tier int) error
	// Spend charges cost and appends itemID only if the balance covers it, returning the
	// account as it stands after the purchase. Returns nil, nil when the balance does not cover it.
	Spend(ctx context.Context, accountID, itemID string, cost int) (*models.Account, error)

	// RestoreAccount inserts a complete account, counters included
	RestoreAccount(ctx context.Context, account *models.Account) error
}

// Open connects to the account store selected by the configuration
func Open(ctx context.Context, cfg *config.Config) (AccountStore, error) {
	driver := strings.ToLower(cfg.StoreDriver)
	if driver == "mongo" || driver == "mongodb" {
		store, err := NewMongoAccountStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Printf("Account store: mongodb (database %s)", cfg.MongoDatabase)
		return store, nil
	}

	dialect, err := database.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, dialect, database.DialectConfig{
		Path: cfg.DatabasePath,
		URL:  cfg.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Account store: %s", dialect.Name())
	return NewAccountRepository(db), nil
}

func newTopicMap() map[models.Topic]models.TopicStats {
	topics := make(map[models.Topic]models.TopicStats, len(models.AllTopics))
	for _, t := range models.AllTopics {
		topics[t] = models.TopicStats{FrequencyTier: models.DefaultFrequencyTier}
	}
	return topics
}

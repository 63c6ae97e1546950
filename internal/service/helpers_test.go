package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mathquest/internal/database"
	"mathquest/internal/models"
	"mathquest/internal/repository"
)

func boolPtr(b bool) *bool { return &b }

func newTestStore(t *testing.T) repository.AccountStore {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	store := repository.NewAccountRepository(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func fixedClock(year int, month time.Month, day int) Clock {
	return func() time.Time {
		return time.Date(year, month, day, 15, 0, 0, 0, time.UTC)
	}
}

func registerLearner(t *testing.T, accounts *AccountService, username string) *models.Account {
	t.Helper()
	account, err := accounts.Register(context.Background(), RegisterInput{
		Username: username,
		Password: "secret1",
		Age:      8,
	})
	require.NoError(t, err)
	return account
}

var errStoreDown = errors.New("connection refused")

// flakyStore wraps a working store and fails selected operations
type flakyStore struct {
	repository.AccountStore
	failLookup  bool
	failHistory bool
	failStreak  bool
	failByID    bool
}

func (s *flakyStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	if s.failByID {
		return nil, errStoreDown
	}
	return s.AccountStore.GetAccountByID(ctx, id)
}

func (s *flakyStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	if s.failLookup {
		return nil, errStoreDown
	}
	return s.AccountStore.GetAccountByUsername(ctx, username)
}

func (s *flakyStore) RecordDailyOutcome(ctx context.Context, accountID, date string, correct bool) error {
	if s.failHistory {
		return errStoreDown
	}
	return s.AccountStore.RecordDailyOutcome(ctx, accountID, date, correct)
}

func (s *flakyStore) CompareAndSetStreak(ctx context.Context, accountID, expected, newLast string, newStreak int) (bool, error) {
	if s.failStreak {
		return false, errStoreDown
	}
	return s.AccountStore.CompareAndSetStreak(ctx, accountID, expected, newLast, newStreak)
}

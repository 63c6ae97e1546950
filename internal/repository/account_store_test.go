package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathquest/internal/database"
	"mathquest/internal/models"
)

func newSQLiteStore(t *testing.T) AccountStore {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	store := NewAccountRepository(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func newMongoStore(t *testing.T) AccountStore {
	t.Helper()
	uri := os.Getenv("MATHQUEST_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("MATHQUEST_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "mathquest_test_" + uuid.NewString()[:8]
	store, err := NewMongoAccountStore(ctx, uri, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.client.Database(dbName).Drop(context.Background())
		store.Close()
	})
	return store
}

func storeFactories() map[string]func(t *testing.T) AccountStore {
	return map[string]func(t *testing.T) AccountStore{
		"sqlite": newSQLiteStore,
		"mongo":  newMongoStore,
	}
}

func createLearner(t *testing.T, store AccountStore, username string) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:             uuid.NewString(),
		Username:       username,
		CredentialHash: "hash",
		Age:            8,
		Role:           models.RoleLearner,
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func TestAccountStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Run("create and lookup ignores case", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				created := createLearner(t, store, "Alice")

				got, err := store.GetAccountByUsername(ctx, "ALICE")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, created.ID, got.ID)
				assert.Equal(t, "Alice", got.Username)
				assert.Equal(t, "alice", got.UsernameKey)
				assert.Equal(t, models.DefaultFrequencyTier, got.Stats(models.TopicPercent).FrequencyTier)
				assert.Empty(t, got.Inventory)

				byID, err := store.GetAccountByID(ctx, created.ID)
				require.NoError(t, err)
				require.NotNil(t, byID)
				assert.Equal(t, got.Username, byID.Username)
			})

			t.Run("missing account returns nil", func(t *testing.T) {
				store := factory(t)
				got, err := store.GetAccountByUsername(context.Background(), "nobody")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("duplicate username", func(t *testing.T) {
				store := factory(t)
				createLearner(t, store, "bob")
				err := store.CreateAccount(context.Background(), &models.Account{
					ID: uuid.NewString(), Username: "BOB", CredentialHash: "hash", Age: 9, Role: models.RoleLearner,
				})
				assert.ErrorIs(t, err, ErrDuplicateUsername)
			})

			t.Run("duplicate id is not reported as a taken username", func(t *testing.T) {
				store := factory(t)
				existing := createLearner(t, store, "bea")
				err := store.CreateAccount(context.Background(), &models.Account{
					ID: existing.ID, Username: "someone-else", CredentialHash: "hash", Age: 9, Role: models.RoleLearner,
				})
				assert.ErrorIs(t, err, ErrDuplicateID)
				assert.NotErrorIs(t, err, ErrDuplicateUsername)
			})

			t.Run("counters stop at the ceiling", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "cap")

				score, err := store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, models.MaxCounter)
				require.NoError(t, err)
				assert.Equal(t, models.MaxCounter, score)

				_, err = store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, 1)
				assert.ErrorIs(t, err, ErrCounterLimit)
				_, err = store.IncrementTopicScore(ctx, account.ID, models.TopicSubtraction, models.MaxCounter+1)
				assert.ErrorIs(t, err, ErrCounterLimit)

				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, models.MaxCounter, got.TotalScore())

				spent, err := store.Spend(ctx, account.ID, "crown", 500)
				require.NoError(t, err)
				require.NotNil(t, spent)
				assert.Equal(t, models.MaxCounter-500, spent.Balance())
			})

			t.Run("counters are exclusive", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "carol")

				score, err := store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, 3)
				require.NoError(t, err)
				assert.Equal(t, 3, score)

				failures, err := store.IncrementTopicFailures(ctx, account.ID, models.TopicAddition)
				require.NoError(t, err)
				assert.Equal(t, 1, failures)

				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, 3, got.Topics[models.TopicAddition].Score)
				assert.Equal(t, 1, got.Topics[models.TopicAddition].Failures)
			})

			t.Run("concurrent increments are not lost", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "dave")

				const n = 50
				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := store.IncrementTopicScore(ctx, account.ID, models.TopicMultiplication, 1)
						assert.NoError(t, err)
					}()
				}
				wg.Wait()

				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, n, got.Topics[models.TopicMultiplication].Score)
			})

			t.Run("streak compare and set", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "erin")

				ok, err := store.CompareAndSetStreak(ctx, account.ID, "", "2026-03-01", 1)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = store.CompareAndSetStreak(ctx, account.ID, "", "2026-03-02", 1)
				require.NoError(t, err)
				assert.False(t, ok, "stale expected date must not win")

				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, "2026-03-01", got.LastActivityDate)
				assert.Equal(t, 1, got.Streak)
			})

			t.Run("daily history has one entry per date", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "frank")

				var wg sync.WaitGroup
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						assert.NoError(t, store.RecordDailyOutcome(ctx, account.ID, "2026-03-01", i%2 == 0))
					}(i)
				}
				wg.Wait()
				require.NoError(t, store.RecordDailyOutcome(ctx, account.ID, "2026-03-02", true))

				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				require.Len(t, got.DailyHistory, 2)
				assert.Equal(t, "2026-03-01", got.DailyHistory[0].Date)
				assert.Equal(t, 10, got.DailyHistory[0].CorrectCount+got.DailyHistory[0].IncorrectCount)
				assert.Equal(t, models.DailyHistoryEntry{Date: "2026-03-02", CorrectCount: 1}, got.DailyHistory[1])
			})

			t.Run("frequency tier", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "gina")

				require.NoError(t, store.SetFrequencyTier(ctx, account.ID, models.TopicDivision, 3))
				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, 3, got.Stats(models.TopicDivision).FrequencyTier)
				assert.Equal(t, 1, got.Stats(models.TopicAddition).FrequencyTier)
			})

			t.Run("spend is conditional on balance", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "hank")

				spent, err := store.Spend(ctx, account.ID, "crown", 5)
				require.NoError(t, err)
				assert.Nil(t, spent)

				_, err = store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, 3)
				require.NoError(t, err)
				_, err = store.IncrementTopicScore(ctx, account.ID, models.TopicPercent, 2)
				require.NoError(t, err)

				spent, err = store.Spend(ctx, account.ID, "crown", 5)
				require.NoError(t, err)
				require.NotNil(t, spent)
				assert.Equal(t, 5, spent.SpentPoints)
				assert.Equal(t, []string{"crown"}, spent.Inventory)
				assert.Equal(t, 0, spent.Balance())

				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, 5, got.SpentPoints)
				assert.Equal(t, []string{"crown"}, got.Inventory)
				assert.Equal(t, 0, got.Balance())
			})

			t.Run("concurrent spends cannot overdraw", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := createLearner(t, store, "iris")
				_, err := store.IncrementTopicScore(ctx, account.ID, models.TopicSubtraction, 10)
				require.NoError(t, err)

				var wg sync.WaitGroup
				results := make([]bool, 2)
				for i := range results {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						spent, err := store.Spend(ctx, account.ID, "cat_boots", 10)
						assert.NoError(t, err)
						results[i] = spent != nil
					}(i)
				}
				wg.Wait()

				assert.NotEqual(t, results[0], results[1], "exactly one purchase should succeed")
				got, err := store.GetAccountByID(ctx, account.ID)
				require.NoError(t, err)
				assert.Equal(t, 10, got.SpentPoints)
				assert.Len(t, got.Inventory, 1)
			})

			t.Run("guardian listing", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				guardian := &models.Account{ID: uuid.NewString(), Username: "mom", CredentialHash: "hash", Age: 40, Role: models.RoleGuardian}
				require.NoError(t, store.CreateAccount(ctx, guardian))

				for i := 0; i < 2; i++ {
					child := &models.Account{
						ID:             uuid.NewString(),
						Username:       fmt.Sprintf("kid%d", i),
						CredentialHash: "hash",
						Age:            7,
						Role:           models.RoleLearner,
						GuardianID:     guardian.ID,
					}
					require.NoError(t, store.CreateAccount(ctx, child))
				}
				createLearner(t, store, "stranger")

				children, err := store.ListAccountsByGuardian(ctx, guardian.ID)
				require.NoError(t, err)
				assert.Len(t, children, 2)
				for _, child := range children {
					assert.Equal(t, guardian.ID, child.GuardianID)
				}

				all, err := store.ListAllAccounts(ctx)
				require.NoError(t, err)
				assert.Len(t, all, 4)
			})

			t.Run("restore keeps counters", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				account := &models.Account{
					ID:               uuid.NewString(),
					Username:         "Restored",
					CredentialHash:   "hash",
					Age:              10,
					Role:             models.RoleLearner,
					Topics:           map[models.Topic]models.TopicStats{models.TopicAddition: {Score: 40, Failures: 2, FrequencyTier: 2}},
					LastActivityDate: "2026-02-01",
					Streak:           4,
					DailyHistory:     []models.DailyHistoryEntry{{Date: "2026-02-01", CorrectCount: 3, IncorrectCount: 1}},
					SpentPoints:      30,
					Inventory:        []string{"crown", "crown"},
					CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				}
				require.NoError(t, store.RestoreAccount(ctx, account))

				got, err := store.GetAccountByUsername(ctx, "restored")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, 40, got.Topics[models.TopicAddition].Score)
				assert.Equal(t, 2, got.Stats(models.TopicAddition).FrequencyTier)
				assert.Equal(t, 4, got.Streak)
				assert.Equal(t, 10, got.Balance())
				assert.Equal(t, []string{"crown", "crown"}, got.Inventory)
				assert.Equal(t, account.DailyHistory, got.DailyHistory)
				assert.True(t, account.CreatedAt.Equal(got.CreatedAt))
			})
		})
	}
}

func TestRestoreRejectsDuplicateHistoryDates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	store := newSQLiteStore(t)
	ctx := context.Background()

	err := store.RestoreAccount(ctx, &models.Account{
		ID:             uuid.NewString(),
		Username:       "dup",
		CredentialHash: "hash",
		Age:            8,
		Role:           models.RoleLearner,
		DailyHistory: []models.DailyHistoryEntry{
			{Date: "2026-01-01", CorrectCount: 1},
			{Date: "2026-01-01", CorrectCount: 2},
		},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
	assert.NotErrorIs(t, err, ErrDuplicateID)

	got, err := store.GetAccountByUsername(ctx, "dup")
	require.NoError(t, err)
	assert.Nil(t, got, "a failed restore must not leave a partial account")
}

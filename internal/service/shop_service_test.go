package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathquest/internal/models"
)

func TestPurchase(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")
	shop := NewShopService(store)
	account := registerLearner(t, accounts, "shopper")

	_, err := store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, 120)
	require.NoError(t, err)

	t.Run("insufficient funds leaves account untouched", func(t *testing.T) {
		_, err := shop.Purchase(ctx, "shopper", "crown", 500)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		balance, err := shop.Balance(ctx, "shopper")
		require.NoError(t, err)
		assert.Equal(t, &Balance{TotalScore: 120, SpentPoints: 0, Balance: 120}, balance)
	})

	t.Run("duplicates are allowed", func(t *testing.T) {
		result, err := shop.Purchase(ctx, "shopper", "wisdom_potion", 50)
		require.NoError(t, err)
		assert.Equal(t, 70, result.NewBalance)

		result, err = shop.Purchase(ctx, "SHOPPER", "wisdom_potion", 50)
		require.NoError(t, err)
		assert.Equal(t, 20, result.NewBalance)
		assert.Equal(t, 100, result.SpentPoints)
		assert.Equal(t, []string{"wisdom_potion", "wisdom_potion"}, result.Inventory)
	})

	t.Run("missing data", func(t *testing.T) {
		tests := []struct {
			name     string
			username string
			itemID   string
			cost     int
			wantErr  error
		}{
			{"no username", "", "crown", 5, ErrMissingData},
			{"no item", "shopper", "", 5, ErrMissingData},
			{"zero cost", "shopper", "crown", 0, ErrMissingData},
			{"unknown account", "nobody", "crown", 5, ErrNoSuchAccount},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := shop.Purchase(ctx, tt.username, tt.itemID, tt.cost)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})
}

func TestPurchaseNoDoubleSpend(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")
	shop := NewShopService(store)
	account := registerLearner(t, accounts, "doubler")

	const cost = 200
	_, err := store.IncrementTopicScore(ctx, account.ID, models.TopicDivision, cost)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = shop.Purchase(ctx, "doubler", "cat_boots", cost)
		}(i)
	}
	wg.Wait()

	successes, refusals := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrInsufficientFunds):
			refusals++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, refusals)

	got, err := store.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, cost, got.SpentPoints)
	assert.Equal(t, 0, got.Balance())
	assert.Equal(t, []string{"cat_boots"}, got.Inventory)
}

func TestBalanceNeverNegative(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")
	scoring := NewScoringService(store, time.UTC)
	shop := NewShopService(store)
	registerLearner(t, accounts, "random")

	rng := rand.New(rand.NewSource(42))
	costs := []int{1, 3, 5, 50}

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		correct := rng.Intn(2) == 0
		points := []int{1, 3, 5}[rng.Intn(3)]
		topic := models.AllTopics[rng.Intn(len(models.AllTopics))]
		cost := costs[rng.Intn(len(costs))]
		buy := rng.Intn(3) == 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			if buy {
				_, err := shop.Purchase(ctx, "random", "medal_gold_real", cost)
				if err != nil {
					assert.ErrorIs(t, err, ErrInsufficientFunds)
				}
				return
			}
			_, err := scoring.RecordAnswerOutcome(ctx, AnswerOutcome{Username: "random", Topic: string(topic), IsCorrect: &correct, Points: points})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetAccountByUsername(ctx, "random")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Balance(), 0)
	assert.GreaterOrEqual(t, got.SpentPoints, 0)
	for _, topic := range models.AllTopics {
		assert.GreaterOrEqual(t, got.Topics[topic].Score, 0)
		assert.GreaterOrEqual(t, got.Topics[topic].Failures, 0)
	}
}

func TestCatalog(t *testing.T) {
	shop := NewShopService(nil)
	items := shop.Catalog()

	costs := make(map[string]int)
	for _, item := range items {
		costs[item.ID] = item.Cost
	}
	assert.Equal(t, map[string]int{"medal_gold_real": 100, "cat_boots": 200, "wisdom_potion": 50, "crown": 500}, costs)

	items[0].Cost = 1
	assert.NotEqual(t, 1, shop.Catalog()[0].Cost, "Catalog() must return a copy")
}

func TestPurchaseDoesNotReloadAfterCharging(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	account := registerLearner(t, NewAccountService(store, 1, 120, ""), "onetime")
	_, err := store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, 60)
	require.NoError(t, err)

	flaky := &flakyStore{AccountStore: store, failByID: true}
	shop := NewShopService(flaky)

	result, err := shop.Purchase(ctx, "onetime", "wisdom_potion", 50)
	require.NoError(t, err, "a committed purchase must not be reported as a retryable failure")
	assert.Equal(t, 10, result.NewBalance)
	assert.Equal(t, 50, result.SpentPoints)
	assert.Equal(t, []string{"wisdom_potion"}, result.Inventory)

	balance, err := NewShopService(store).Balance(ctx, "onetime")
	require.NoError(t, err)
	assert.Equal(t, 10, balance.Balance)
}

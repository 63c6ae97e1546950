package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathquest/internal/models"
	"mathquest/internal/security"
)

func TestRegister(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")

	account, err := accounts.Register(ctx, RegisterInput{Username: "Alice", Password: "pw1234", Age: 8})
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, models.RoleLearner, account.Role)
	assert.NotEqual(t, "pw1234", account.CredentialHash)
	assert.True(t, security.CheckPassword("pw1234", account.CredentialHash))

	tests := []struct {
		name    string
		input   RegisterInput
		wantErr error
	}{
		{"username taken ignoring case", RegisterInput{Username: "ALICE", Password: "x", Age: 8}, ErrUsernameTaken},
		{"age too low", RegisterInput{Username: "baby", Password: "x", Age: 0}, ErrInvalidAge},
		{"age too high", RegisterInput{Username: "elder", Password: "x", Age: 121}, ErrInvalidAge},
		{"missing username", RegisterInput{Password: "x", Age: 8}, ErrMissingData},
		{"missing password", RegisterInput{Username: "nopass", Age: 8}, ErrMissingData},
		{"unknown role", RegisterInput{Username: "boss", Password: "x", Age: 30, Role: "admin"}, ErrMissingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Register(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckLogin(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")
	created := registerLearner(t, accounts, "Lucy")

	account, err := accounts.CheckLogin(ctx, "lucy", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)
	assert.Equal(t, models.RoleLearner, account.Role)

	_, err = accounts.CheckLogin(ctx, "lucy", "wrong")
	assert.ErrorIs(t, err, ErrBadSecret)

	_, err = accounts.CheckLogin(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrNoSuchAccount)
}

func TestGetStatsIsStable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")
	account := registerLearner(t, accounts, "steady")
	_, err := store.IncrementTopicScore(ctx, account.ID, models.TopicAddition, 7)
	require.NoError(t, err)

	first, err := accounts.GetStats(ctx, "steady")
	require.NoError(t, err)
	second, err := accounts.GetStats(ctx, "STEADY")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 7, first.TotalScore)

	_, err = accounts.GetStats(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNoSuchAccount)
}

func TestGuardianChildren(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")

	guardian, err := accounts.Register(ctx, RegisterInput{Username: "mom", Password: "secret1", Age: 38, Role: "parent"})
	require.NoError(t, err)
	learner := registerLearner(t, accounts, "loner")

	named, err := accounts.CreateChild(ctx, guardian.ID, ChildInput{Username: "Tom", Password: "tom123", Age: 7})
	require.NoError(t, err)
	assert.Empty(t, named.GeneratedPassword)
	assert.Equal(t, guardian.ID, named.Account.GuardianID)

	generated, err := accounts.CreateChild(ctx, guardian.ID, ChildInput{Age: 9})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.Account.Username)
	assert.NotEmpty(t, generated.GeneratedPassword)

	_, err = accounts.CheckLogin(ctx, generated.Account.Username, generated.GeneratedPassword)
	assert.NoError(t, err, "generated credentials must work for login")

	children, err := accounts.ListChildrenOf(ctx, guardian.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, guardian.ID, child.GuardianID)
		assert.Equal(t, models.RoleLearner, child.Role)
	}

	t.Run("learner cannot act as guardian", func(t *testing.T) {
		_, err := accounts.ListChildrenOf(ctx, learner.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = accounts.CreateChild(ctx, learner.ID, ChildInput{Username: "sneaky", Password: "x", Age: 7})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown guardian", func(t *testing.T) {
		_, err := accounts.ListChildrenOf(ctx, "missing-id")
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = accounts.ListChildrenOf(ctx, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("child age is validated", func(t *testing.T) {
		_, err := accounts.CreateChild(ctx, guardian.ID, ChildInput{Username: "tiny", Password: "x", Age: 0})
		assert.ErrorIs(t, err, ErrInvalidAge)
	})
}

func TestListAllAccountsGate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)

	disabled := NewAccountService(store, 1, 120, "")
	registerLearner(t, disabled, "one")
	registerLearner(t, disabled, "two")

	_, err := disabled.ListAllAccounts(ctx, "")
	assert.ErrorIs(t, err, ErrForbidden, "the gate is closed when no password is configured")

	enabled := NewAccountService(store, 1, 120, "support-only")
	_, err = enabled.ListAllAccounts(ctx, "guess")
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := enabled.ListAllAccounts(ctx, "support-only")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// TestAliceScenario walks a new learner from zero points to buying a crown
func TestAliceScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountService(store, 1, 120, "")
	scoring := NewScoringService(store, nil)
	shop := NewShopService(store)

	_, err := accounts.Register(ctx, RegisterInput{Username: "alice", Password: "pw", Age: 8})
	require.NoError(t, err)

	result, err := scoring.RecordAnswerOutcome(ctx, AnswerOutcome{Username: "alice", Topic: "addition", IsCorrect: boolPtr(true), Points: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Score)

	result, err = scoring.RecordAnswerOutcome(ctx, AnswerOutcome{Username: "alice", Topic: "addition", IsCorrect: boolPtr(false), Points: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Score)
	assert.Equal(t, 1, result.Failures)

	_, err = shop.Purchase(ctx, "alice", "crown", 500)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := shop.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, balance.Balance)

	for result.Score < 500 {
		points := 5
		if result.Score+points > 500 {
			points = 1
		}
		result, err = scoring.RecordAnswerOutcome(ctx, AnswerOutcome{Username: "alice", Topic: "addition", IsCorrect: boolPtr(true), Points: points})
		require.NoError(t, err)
	}
	require.Equal(t, 500, result.Score)

	purchase, err := shop.Purchase(ctx, "alice", "crown", 500)
	require.NoError(t, err)
	assert.Equal(t, 500, purchase.SpentPoints)
	assert.Equal(t, 0, purchase.NewBalance)
	assert.Equal(t, []string{"crown"}, purchase.Inventory)
}

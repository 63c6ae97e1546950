package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mathquest/internal/credentials"
	"mathquest/internal/models"
	"mathquest/internal/repository"
	"mathquest/internal/security"
	"mathquest/internal/validation"
)

// AccountService handles registration, login and guardian views
type AccountService struct {
	store      repository.AccountStore
	minAge     int
	maxAge     int
	gateSecret string
}

// NewAccountService creates a new account service.
// An empty gateSecret disables the shared-password account listing.
func NewAccountService(store repository.AccountStore, minAge, maxAge int, gateSecret string) *AccountService {
	return &AccountService{
		store:      store,
		minAge:     minAge,
		maxAge:     maxAge,
		gateSecret: gateSecret,
	}
}

// RegisterInput holds the fields of a new account
type RegisterInput struct {
	Username string
	Password string
	Age      int
	Role     string
}

// Register creates a new learner or guardian account
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	role, ok := models.ParseRole(input.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrMissingData, input.Role)
	}
	return s.create(ctx, strings.TrimSpace(input.Username), input.Password, input.Age, role, "")
}

func (s *AccountService) create(ctx context.Context, username, password string, age int, role models.Role, guardianID string) (*models.Account, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingData, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingData, err)
	}
	if err := validation.ValidateAge(age, s.minAge, s.maxAge); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAge, err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		ID:             security.NewAccountID(),
		Username:       username,
		CredentialHash: hash,
		Age:            age,
		Role:           role,
		GuardianID:     guardianID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, storeError("create account", err)
	}

	log.Printf("Created %s account %s", account.Role, account.ID)
	return account, nil
}

// CheckLogin verifies a username and secret and returns the account on success
func (s *AccountService) CheckLogin(ctx context.Context, username, password string) (*models.Account, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingData
	}
	account, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, storeError("look up account", err)
	}
	if account == nil {
		return nil, ErrNoSuchAccount
	}
	if !security.CheckPassword(password, account.CredentialHash) {
		return nil, ErrBadSecret
	}
	return account, nil
}

// GetStats returns everything about an account except its credential
func (s *AccountService) GetStats(ctx context.Context, username string) (*models.AccountSummary, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrMissingData
	}
	account, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, storeError("look up account", err)
	}
	if account == nil {
		return nil, ErrNoSuchAccount
	}
	summary := account.Summary()
	return &summary, nil
}

// ChildInput holds the fields of a guardian-created learner.
// Empty Username or Password are generated.
type ChildInput struct {
	Username string
	Password string
	Age      int
}

// CreatedChild is a new learner plus any secret generated for it.
// GeneratedPassword is only ever returned here and is not stored in plaintext.
type CreatedChild struct {
	Account           *models.Account
	GeneratedPassword string
}

const maxGeneratedUsernameAttempts = 5

// CreateChild creates a learner owned by a guardian
func (s *AccountService) CreateChild(ctx context.Context, guardianID string, input ChildInput) (*CreatedChild, error) {
	if _, err := s.requireGuardian(ctx, guardianID); err != nil {
		return nil, err
	}

	result := &CreatedChild{}
	password := input.Password
	if password == "" {
		generated, err := credentials.GenerateChildSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		password = generated
		result.GeneratedPassword = generated
	}

	username := strings.TrimSpace(input.Username)
	if username != "" {
		account, err := s.create(ctx, username, password, input.Age, models.RoleLearner, guardianID)
		if err != nil {
			return nil, err
		}
		result.Account = account
		return result, nil
	}

	for attempt := 0; attempt < maxGeneratedUsernameAttempts; attempt++ {
		generated, err := credentials.GenerateChildUsername()
		if err != nil {
			return nil, fmt.Errorf("failed to generate username: %w", err)
		}
		account, err := s.create(ctx, generated, password, input.Age, models.RoleLearner, guardianID)
		if errors.Is(err, ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Account = account
		return result, nil
	}
	return nil, ErrUsernameTaken
}

// ListChildrenOf returns the learners owned by a guardian
func (s *AccountService) ListChildrenOf(ctx context.Context, guardianID string) ([]models.AccountSummary, error) {
	if _, err := s.requireGuardian(ctx, guardianID); err != nil {
		return nil, err
	}

	children, err := s.store.ListAccountsByGuardian(ctx, guardianID)
	if err != nil {
		return nil, storeError("list children", err)
	}

	summaries := make([]models.AccountSummary, 0, len(children))
	for i := range children {
		if children[i].IsGuardian() {
			continue
		}
		summaries = append(summaries, children[i].Summary())
	}
	return summaries, nil
}

// ListAllAccounts returns every account to support staff holding the gate password
func (s *AccountService) ListAllAccounts(ctx context.Context, gatePassword string) ([]models.AccountSummary, error) {
	if s.gateSecret == "" || !security.SecretsEqual(gatePassword, s.gateSecret) {
		return nil, ErrForbidden
	}

	accounts, err := s.store.ListAllAccounts(ctx)
	if err != nil {
		return nil, storeError("list accounts", err)
	}

	summaries := make([]models.AccountSummary, 0, len(accounts))
	for i := range accounts {
		summaries = append(summaries, accounts[i].Summary())
	}
	return summaries, nil
}

// Ping reports whether the account store is reachable
func (s *AccountService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func (s *AccountService) requireGuardian(ctx context.Context, guardianID string) (*models.Account, error) {
	if strings.TrimSpace(guardianID) == "" {
		return nil, ErrForbidden
	}
	guardian, err := s.store.GetAccountByID(ctx, guardianID)
	if err != nil {
		return nil, storeError("look up guardian", err)
	}
	if guardian == nil || !guardian.IsGuardian() {
		return nil, ErrForbidden
	}
	return guardian, nil
}

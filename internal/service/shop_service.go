package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mathquest/internal/models"
	"mathquest/internal/repository"
	"mathquest/internal/validation"
)

// CatalogItem is an item offered in the shop
type CatalogItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost int    `json:"cost"`
}

var catalog = []CatalogItem{
	{ID: "wisdom_potion", Name: "Wisdom Potion", Cost: 50},
	{ID: "medal_gold_real", Name: "Gold Medal", Cost: 100},
	{ID: "cat_boots", Name: "Cat Boots", Cost: 200},
	{ID: "crown", Name: "Crown", Cost: 500},
}

// PurchaseResult is the account state after a successful purchase
type PurchaseResult struct {
	NewBalance  int      `json:"newBalance"`
	SpentPoints int      `json:"spentPoints"`
	Inventory   []string `json:"inventory"`
}

// Balance breaks down what a learner can spend
type Balance struct {
	TotalScore  int `json:"totalScore"`
	SpentPoints int `json:"spentPoints"`
	Balance     int `json:"balance"`
}

// ShopService spends earned points on items
type ShopService struct {
	store repository.AccountStore
}

// NewShopService creates a new shop service
func NewShopService(store repository.AccountStore) *ShopService {
	return &ShopService{store: store}
}

// Catalog returns the items the shop displays.
// Purchases are not checked against it.
func (s *ShopService) Catalog() []CatalogItem {
	items := make([]CatalogItem, len(catalog))
	copy(items, catalog)
	return items
}

// Purchase spends cost points on itemID if the balance covers it.
// Buying an item that is already owned is allowed.
func (s *ShopService) Purchase(ctx context.Context, username, itemID string, cost int) (*PurchaseResult, error) {
	itemID = strings.TrimSpace(itemID)
	if err := validation.ValidatePurchase(itemID, cost); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingData, err)
	}

	account, err := lookupLearner(ctx, s.store, username)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Spend(ctx, account.ID, itemID, cost)
	if err != nil {
		return nil, storeError("spend points", err)
	}
	if updated == nil {
		return nil, ErrInsufficientFunds
	}

	log.Printf("Account %s bought %s for %d points", account.ID, itemID, cost)

	inventory := updated.Inventory
	if inventory == nil {
		inventory = []string{}
	}
	return &PurchaseResult{
		NewBalance:  updated.Balance(),
		SpentPoints: updated.SpentPoints,
		Inventory:   inventory,
	}, nil
}

// Balance returns the spendable points of a learner
func (s *ShopService) Balance(ctx context.Context, username string) (*Balance, error) {
	account, err := lookupLearner(ctx, s.store, username)
	if err != nil {
		return nil, err
	}
	return balanceOf(account), nil
}

func balanceOf(account *models.Account) *Balance {
	return &Balance{
		TotalScore:  account.TotalScore(),
		SpentPoints: account.SpentPoints,
		Balance:     account.Balance(),
	}
}

package handlers

import (
	"net/http"

	"mathquest/internal/service"
)

// ShopHandler handles purchases and balances
type ShopHandler struct {
	shop *service.ShopService
}

// NewShopHandler creates a new shop handler
func NewShopHandler(shop *service.ShopService) *ShopHandler {
	return &ShopHandler{shop: shop}
}

type buyRequest struct {
	Username string `json:"username"`
	ItemName string `json:"itemName"`
	ItemCost int    `json:"itemCost"`
}

// Buy spends points on an item
func (h *ShopHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.shop.Purchase(r.Context(), req.Username, req.ItemName, req.ItemCost)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"newBalance":  result.NewBalance,
		"spentPoints": result.SpentPoints,
		"inventory":   result.Inventory,
	})
}

// Balance returns the spendable points of the learner in the path
func (h *ShopHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.shop.Balance(r.Context(), r.PathValue("username"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"totalScore":  balance.TotalScore,
		"spentPoints": balance.SpentPoints,
		"balance":     balance.Balance,
	})
}

// Items returns the shop catalog
func (h *ShopHandler) Items(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": h.shop.Catalog()})
}

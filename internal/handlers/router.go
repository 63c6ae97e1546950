package handlers

import "net/http"

// Routes groups the handlers served by the API
type Routes struct {
	Accounts   *AccountHandler
	Scoring    *ScoringHandler
	Shop       *ShopHandler
	Middleware *Middleware
}

// NewRouter registers every API route on a new ServeMux
func NewRouter(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()
	m := rt.Middleware

	// Health
	mux.HandleFunc("GET /api/ping", Ping)
	mux.HandleFunc("GET /api/health", rt.Accounts.Health)

	// Accounts
	mux.HandleFunc("POST /api/register", m.RateLimit(rt.Accounts.Register))
	mux.HandleFunc("POST /api/check-login", m.RateLimit(rt.Accounts.CheckLogin))
	mux.HandleFunc("POST /api/user/stats", rt.Accounts.StatsByBody)
	mux.HandleFunc("GET /api/users/{username}", rt.Accounts.Stats)

	// Scoring and difficulty
	mux.HandleFunc("POST /api/score/{topic}", rt.Scoring.RecordScore)
	mux.HandleFunc("GET /api/user/frequency/{topic}", rt.Scoring.GetFrequency)
	mux.HandleFunc("PUT /api/user/frequency/{topic}", rt.Scoring.SetFrequency)
	mux.HandleFunc("GET /api/users/{username}/levels", rt.Scoring.Levels)

	// Shop
	mux.HandleFunc("POST /api/shop/buy", rt.Shop.Buy)
	mux.HandleFunc("GET /api/shop/items", rt.Shop.Items)
	mux.HandleFunc("GET /api/users/{username}/balance", rt.Shop.Balance)

	// Guardians
	mux.HandleFunc("POST /api/guardians/{guardianID}/children", rt.Accounts.CreateChild)
	mux.HandleFunc("GET /api/guardians/{guardianID}/children", rt.Accounts.ListChildren)
	mux.HandleFunc("POST /api/child", rt.Accounts.CreateChildForCaller)
	mux.HandleFunc("GET /api/children", rt.Accounts.ListChildrenForCaller)
	mux.HandleFunc("POST /api/parents/data", m.RateLimit(rt.Accounts.AllAccounts))
	mux.HandleFunc("POST /api/get_parents", m.RateLimit(rt.Accounts.AllAccounts))

	return mux
}

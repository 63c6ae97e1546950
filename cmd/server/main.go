package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mathquest/internal/config"
	"mathquest/internal/handlers"
	"mathquest/internal/repository"
	"mathquest/internal/security"
	"mathquest/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load time zone: %v", err)
	}

	// Connect to the account store (migrations run for SQL drivers)
	connectCtx, cancel := context.WithTimeout(context.Background(), 3*cfg.StoreTimeout)
	store, err := repository.Open(connectCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to open account store: %v", err)
	}
	defer store.Close()

	// Initialize services
	accountService := service.NewAccountService(store, cfg.MinAge, cfg.MaxAge, cfg.SupportGatePassword)
	scoringService := service.NewScoringService(store, loc)
	scoringService.SetMaxPoints(cfg.MaxPoints)
	levelingService := service.NewLevelingService(store)
	shopService := service.NewShopService(store)

	if cfg.SupportGatePassword == "" {
		log.Println("Support gate disabled (SUPPORT_GATE_PASSWORD not set)")
	}

	// Rate limiting for login and registration
	limiter, closeLimiter := newLimiter(cfg)
	defer closeLimiter()

	// Initialize handlers and routes
	mux := handlers.NewRouter(handlers.Routes{
		Accounts:   handlers.NewAccountHandler(accountService),
		Scoring:    handlers.NewScoringHandler(scoringService, levelingService),
		Shop:       handlers.NewShopHandler(shopService),
		Middleware: handlers.NewMiddleware(limiter),
	})

	var handler http.Handler = mux
	handler = handlers.StoreTimeout(cfg.StoreTimeout)(handler)
	handler = handlers.CORS(cfg.CORSOrigin)(handler)
	handler = handlers.Logging(handler)
	handler = handlers.Recover(handler)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

// newLimiter uses Redis when REDIS_URL is set so limits hold across instances,
// and falls back to an in-process limiter otherwise.
func newLimiter(cfg *config.Config) (security.Limiter, func()) {
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
		defer cancel()
		limiter, err := security.NewRedisRateLimiter(ctx, cfg.RedisURL, cfg.LoginRateLimit, cfg.LoginRateWindow)
		if err == nil {
			log.Println("Rate limiter: redis")
			return limiter, func() { limiter.Close() }
		}
		log.Printf("Warning: Redis rate limiter unavailable, using in-memory limiter: %v", err)
	}

	limiter := security.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	log.Println("Rate limiter: in-memory")
	return limiter, limiter.Close
}

package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lamnguyen-dev/chat-dispatch/internal/admin"
	"github.com/lamnguyen-dev/chat-dispatch/internal/api"
	"github.com/lamnguyen-dev/chat-dispatch/internal/auth"
	"github.com/lamnguyen-dev/chat-dispatch/internal/config"
	"github.com/lamnguyen-dev/chat-dispatch/internal/credentials"
	"github.com/lamnguyen-dev/chat-dispatch/internal/db"
	"github.com/lamnguyen-dev/chat-dispatch/internal/dispatch"
	"github.com/lamnguyen-dev/chat-dispatch/internal/modelchain"
	"github.com/lamnguyen-dev/chat-dispatch/internal/pool"
	"github.com/lamnguyen-dev/chat-dispatch/internal/quota"
	"github.com/lamnguyen-dev/chat-dispatch/internal/respcache"
	"github.com/lamnguyen-dev/chat-dispatch/internal/shard"
	"github.com/lamnguyen-dev/chat-dispatch/internal/subscription"
	"github.com/lamnguyen-dev/chat-dispatch/internal/upstream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Open one store per partition, probe order = configuration order
	partitions, err := db.OpenAll(cfg.DatabaseURLs)
	if err != nil {
		log.Fatal("Failed to open partitions:", err)
	}
	defer func() {
		for _, p := range partitions {
			p.Close()
		}
	}()

	stores := make([]shard.Store, len(partitions))
	for i, p := range partitions {
		stores[i] = p
	}
	locator := shard.NewLocator(stores)

	// Cache/counter backend pool
	backends := pool.New(cfg.RedisAddrs)
	defer backends.Close()

	// Upstream credentials: zero valid keys is a fatal configuration error
	creds := credentials.New(cfg.UpstreamKeys)
	if creds.ValidCount() == 0 {
		log.Fatal("No valid upstream API keys configured")
	}
	log.Printf("Loaded %d upstream credentials", creds.ValidCount())

	// Model fallback chains
	chains, err := modelchain.Load(cfg.ModelsConfig)
	if err != nil {
		log.Fatal("Failed to load model config:", err)
	}

	ledger := quota.NewLedger(backends)
	cache := respcache.New(backends)
	resolver := subscription.NewResolver(locator)
	dispatcher := dispatch.New(chains, creds, cache, upstream.NewClient(cfg.UpstreamURL))

	// Initialize router
	router := mux.NewRouter()

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	// Public routes
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/auth/token", tokenHandler(locator, cfg.JWTSecret)).Methods("POST")

	// Admin routes (you may want to add admin auth middleware here)
	adminHandler := admin.NewAdminHandler(creds, backends, ledger, locator)
	adminHandler.RegisterRoutes(router)

	// Chat and quota surfaces
	apiHandler := api.NewHandler(cfg, ledger, resolver, dispatcher)
	apiHandler.RegisterRoutes(router, authMiddleware)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	log.Printf("Serving %d partitions, %d cache backends", locator.Size(), backends.Size())
	if err := http.ListenAndServe(":"+cfg.ServerPort, router); err != nil {
		log.Fatal("Server failed:", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func tokenHandler(locator *shard.Locator, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IdentityKey string `json:"identity_key"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Failed to decode request: %v", err)
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		user, partition, err := locator.Locate(r.Context(), req.IdentityKey)
		if err != nil {
			log.Printf("Identity lookup failed: %v", err)
			http.Error(w, "Unknown identity", http.StatusUnauthorized)
			return
		}

		log.Printf("Found user %d in partition %d", user.ID, partition)

		token, err := auth.GenerateToken(user.ID, user.IdentityKey, jwtSecret)
		if err != nil {
			log.Printf("Token generation failed: %v", err)
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	}
}

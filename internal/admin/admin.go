package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lamnguyen-dev/chat-dispatch/internal/credentials"
	"github.com/lamnguyen-dev/chat-dispatch/internal/pool"
	"github.com/lamnguyen-dev/chat-dispatch/internal/quota"
	"github.com/lamnguyen-dev/chat-dispatch/internal/shard"
)

type AdminHandler struct {
	creds   *credentials.Pool
	pool    *pool.Pool
	ledger  *quota.Ledger
	locator *shard.Locator
}

func NewAdminHandler(creds *credentials.Pool, p *pool.Pool, ledger *quota.Ledger, locator *shard.Locator) *AdminHandler {
	return &AdminHandler{creds: creds, pool: p, ledger: ledger, locator: locator}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/credentials", h.CredentialReport).Methods("GET")
	router.HandleFunc("/admin/backends", h.BackendHealth).Methods("GET")
	router.HandleFunc("/admin/quota/reset", h.ResetQuota).Methods("POST")
	router.HandleFunc("/admin/users/{key}", h.LookupUser).Methods("GET")
}

// CredentialReport exposes the format-validation summary of the configured
// upstream key slots. Values are never returned, only slot numbers.
func (h *AdminHandler) CredentialReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.creds.ValidateAll())
}

type backendStatus struct {
	Addr  string `json:"addr"`
	Alive bool   `json:"alive"`
}

func (h *AdminHandler) BackendHealth(w http.ResponseWriter, r *http.Request) {
	statuses := make([]backendStatus, 0, h.pool.Size())
	for _, b := range h.pool.All() {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := b.Client.Ping(ctx).Err()
		cancel()
		statuses = append(statuses, backendStatus{Addr: b.Addr, Alive: err == nil})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

// ResetQuota drops an identity's current usage window. This is the only way
// a usage record is ever explicitly deleted.
func (h *AdminHandler) ResetQuota(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuestIP  string `json:"guest_ip"`
		TenantID int64  `json:"tenant_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var key string
	switch {
	case req.GuestIP != "":
		key = quota.GuestKey(req.GuestIP)
	case req.TenantID != 0:
		key = quota.TenantKey(req.TenantID)
	default:
		http.Error(w, "guest_ip or tenant_id is required", http.StatusBadRequest)
		return
	}

	if err := h.ledger.Reset(r.Context(), key); err != nil {
		log.Printf("quota reset for %s failed: %v", key, err)
		http.Error(w, "Failed to reset quota", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}

// LookupUser shows which partition owns an identity, for shard debugging.
func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	user, partition, err := h.locator.Locate(r.Context(), key)
	if err != nil {
		http.Error(w, "Identity not found in any partition", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"partition": partition,
		"user":      user,
	})
}

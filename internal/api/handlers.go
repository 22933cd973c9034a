// Package api exposes the admission-control surfaces over HTTP: guest quota,
// guest and tenant chat, and subscription resolution.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lamnguyen-dev/chat-dispatch/internal/auth"
	"github.com/lamnguyen-dev/chat-dispatch/internal/config"
	"github.com/lamnguyen-dev/chat-dispatch/internal/credentials"
	"github.com/lamnguyen-dev/chat-dispatch/internal/dispatch"
	"github.com/lamnguyen-dev/chat-dispatch/internal/modelchain"
	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
	"github.com/lamnguyen-dev/chat-dispatch/internal/quota"
	"github.com/lamnguyen-dev/chat-dispatch/internal/shard"
	"github.com/lamnguyen-dev/chat-dispatch/internal/subscription"
)

type Handler struct {
	cfg        *config.Config
	ledger     *quota.Ledger
	resolver   *subscription.Resolver
	dispatcher *dispatch.Dispatcher
}

func NewHandler(cfg *config.Config, ledger *quota.Ledger, resolver *subscription.Resolver, dispatcher *dispatch.Dispatcher) *Handler {
	return &Handler{cfg: cfg, ledger: ledger, resolver: resolver, dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(router *mux.Router, authMW *auth.Middleware) {
	router.HandleFunc("/api/guest/quota", h.GuestQuota).Methods("GET")
	router.HandleFunc("/api/guest/chat", h.GuestChat).Methods("POST")
	router.Handle("/api/chat", authMW.Authenticate(http.HandlerFunc(h.TenantChat))).Methods("POST")
	router.Handle("/api/subscription", authMW.Authenticate(http.HandlerFunc(h.Subscription))).Methods("GET")
}

type chatRequest struct {
	Mode     string           `json:"mode"`
	Vision   bool             `json:"vision"`
	Messages []models.Message `json:"messages"`
}

type chatResponse struct {
	Text      string    `json:"text"`
	ModelID   string    `json:"model"`
	Cached    bool      `json:"cached"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type quotaResponse struct {
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`
}

func (h *Handler) GuestQuota(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	d := h.ledger.Status(r.Context(), quota.GuestKey(ip), h.cfg.GuestLimit, h.cfg.GuestWindow)

	writeJSON(w, http.StatusOK, quotaResponse{
		Remaining: d.Remaining,
		Total:     d.Limit,
		ResetAt:   d.ResetAt,
	})
}

func (h *Handler) GuestChat(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()[:8]
	ip := clientIP(r)

	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	d := h.ledger.Track(r.Context(), quota.GuestKey(ip), h.cfg.GuestLimit, h.cfg.GuestWindow)
	if !d.Admitted {
		log.Printf("[%s] guest %s denied, window resets %s", reqID, ip, d.ResetAt.Format(time.RFC3339))
		writeJSON(w, http.StatusTooManyRequests, quotaResponse{Remaining: 0, Total: d.Limit, ResetAt: d.ResetAt})
		return
	}

	h.completeAndRespond(w, r, reqID, req, d)
}

func (h *Handler) TenantChat(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()[:8]

	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	req, decoded := decodeChatRequest(w, r)
	if !decoded {
		return
	}

	ent, err := h.resolver.Resolve(r.Context(), claims.IdentityKey)
	if err != nil {
		if errors.Is(err, shard.ErrNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.Printf("[%s] tier resolution failed for user %d: %v", reqID, claims.UserID, err)
		http.Error(w, "Failed to resolve subscription", http.StatusInternalServerError)
		return
	}

	limit := h.cfg.LimitForTier(ent.Tier)
	d := h.ledger.Track(r.Context(), quota.TenantKey(claims.UserID), limit, h.cfg.TenantWindow)
	if !d.Admitted {
		log.Printf("[%s] tenant %d (%s) denied, window resets %s", reqID, claims.UserID, ent.Tier, d.ResetAt.Format(time.RFC3339))
		writeJSON(w, http.StatusTooManyRequests, quotaResponse{Remaining: 0, Total: d.Limit, ResetAt: d.ResetAt})
		return
	}

	h.completeAndRespond(w, r, reqID, req, d)
}

func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ent, err := h.resolver.Resolve(r.Context(), claims.IdentityKey)
	if err != nil {
		if errors.Is(err, shard.ErrNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to resolve subscription", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ent)
}

func (h *Handler) completeAndRespond(w http.ResponseWriter, r *http.Request, reqID string, req chatRequest, d *models.QuotaDecision) {
	start := time.Now()

	result, err := h.dispatcher.Complete(r.Context(), dispatch.Request{
		Mode:     modelchain.Mode(req.Mode),
		Vision:   req.Vision,
		Messages: req.Messages,
	})
	if err != nil {
		if errors.Is(err, credentials.ErrNoCredentialsConfigured) {
			log.Printf("[%s] dispatch refused: %v", reqID, err)
			http.Error(w, "Service not configured", http.StatusServiceUnavailable)
			return
		}
		log.Printf("[%s] dispatch failed after %dms: %v", reqID, time.Since(start).Milliseconds(), err)
		http.Error(w, "All upstream models failed", http.StatusBadGateway)
		return
	}

	log.Printf("[%s] served by %s in %dms (cached=%v, remaining=%d)",
		reqID, result.ModelID, time.Since(start).Milliseconds(), result.Cached, d.Remaining)

	writeJSON(w, http.StatusOK, chatResponse{
		Text:      result.Text,
		ModelID:   result.ModelID,
		Cached:    result.Cached,
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt,
	})
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return req, false
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages is required", http.StatusBadRequest)
		return req, false
	}
	if req.Mode == "" {
		req.Mode = string(modelchain.ModeNormal)
	}
	return req, true
}

// clientIP prefers X-Forwarded-For (first hop) and falls back to the socket
// peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

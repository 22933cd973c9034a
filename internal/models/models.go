package models

import "time"

// Subscription status values as stored on the user record.
const (
	SubStatusNone      = "none"
	SubStatusActive    = "active"
	SubStatusCancelled = "cancelled"
	SubStatusExpired   = "expired"
)

// TierFree is the lowest entitlement tier; expired subscriptions are
// downgraded to it.
const TierFree = "free"

// User is one identity record as stored in a partition. IdentityKey is the
// opaque lookup key (email or external user id).
type User struct {
	ID          int64      `json:"id"`
	IdentityKey string     `json:"identity_key"`
	Name        string     `json:"name"`
	Tier        string     `json:"tier"`
	SubStatus   string     `json:"subscription_status"`
	SubExpires  *time.Time `json:"subscription_expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Entitlement is the resolved subscription state returned to callers.
type Entitlement struct {
	Tier          string     `json:"tier"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
}

// QuotaDecision is the outcome of one usage-ledger check or track call.
type QuotaDecision struct {
	Admitted  bool      `json:"admitted"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Message is one turn of a chat conversation in the upstream wire shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the result of a cached-or-dispatched chat completion.
type Completion struct {
	Text    string `json:"text"`
	ModelID string `json:"model"`
	Cached  bool   `json:"cached"`
}

// Package credentials rotates outbound calls across a fixed pool of upstream
// API keys so that no single key absorbs the full request rate.
package credentials

import (
	"errors"
	"math/rand"
	"strings"
)

// ErrNoCredentialsConfigured is returned by Pick when no key slot holds a
// validly-formatted credential.
var ErrNoCredentialsConfigured = errors.New("no upstream credentials configured")

// keyPrefix is the syntactic marker a well-formed upstream key carries.
// Validation is format-only; a key that passes can still be rejected upstream.
const keyPrefix = "sk-"

type Credential struct {
	Slot  int // 1-based configuration slot
	Value string
}

// Report summarises the configured key slots for the admin surface.
type Report struct {
	ValidCount     int   `json:"valid_count"`
	MissingSlots   []int `json:"missing_slots"`
	MalformedSlots []int `json:"malformed_slots"`
}

type Pool struct {
	valid     []Credential
	missing   []int
	malformed []int
}

// New validates the raw key slots once. Slots is positional: index i is
// configuration slot i+1, an empty string means the slot is unset.
func New(slots []string) *Pool {
	p := &Pool{}
	for i, raw := range slots {
		slot := i + 1
		value := strings.TrimSpace(raw)
		switch {
		case value == "":
			p.missing = append(p.missing, slot)
		case !strings.HasPrefix(value, keyPrefix):
			p.malformed = append(p.malformed, slot)
		default:
			p.valid = append(p.valid, Credential{Slot: slot, Value: value})
		}
	}
	return p
}

// Pick selects a uniformly random valid credential. No rotation state is kept
// between calls: independent draws spread load across keys without any slot
// being hit twice in a predictable pattern.
func (p *Pool) Pick() (Credential, error) {
	if len(p.valid) == 0 {
		return Credential{}, ErrNoCredentialsConfigured
	}
	return p.valid[rand.Intn(len(p.valid))], nil
}

// ValidateAll reports how the configured slots validated.
func (p *Pool) ValidateAll() Report {
	return Report{
		ValidCount:     len(p.valid),
		MissingSlots:   append([]int(nil), p.missing...),
		MalformedSlots: append([]int(nil), p.malformed...),
	}
}

func (p *Pool) ValidCount() int {
	return len(p.valid)
}

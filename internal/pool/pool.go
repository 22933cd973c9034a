// Package pool manages the set of interchangeable redis backends used for
// counters and response caching. Selection is a pure read of an immutable
// slice built once at startup; a backend that is down degrades hit rate, it
// never fails a request.
package pool

import (
	"context"
	"hash/fnv"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultAddr is used when no backends are configured, so the service stays
// operable in single-backend mode.
const DefaultAddr = "localhost:6379"

type Backend struct {
	Addr   string
	Client *redis.Client
}

type Pool struct {
	backends []*Backend
}

// New builds the backend pool from the configured address list. Addresses are
// deduplicated preserving order; an empty list falls back to DefaultAddr.
// Connections are verified with a ping but a failed ping is only logged —
// go-redis reconnects on demand.
func New(addrs []string) *Pool {
	if len(addrs) == 0 {
		addrs = []string{DefaultAddr}
	}

	seen := make(map[string]bool)
	backends := make([]*Backend, 0, len(addrs))
	for _, addr := range addrs {
		if seen[addr] {
			continue
		}
		seen[addr] = true

		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MaxRetries:   2,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("backend %s unreachable at startup: %v", addr, err)
		}
		cancel()

		backends = append(backends, &Backend{Addr: addr, Client: client})
	}

	return &Pool{backends: backends}
}

// SelectRandom returns a uniformly random pool member. Load spreading only;
// not health-weighted.
func (p *Pool) SelectRandom() *Backend {
	return p.backends[rand.Intn(len(p.backends))]
}

// SelectByIndex returns the backend at i modulo the pool size, for callers
// that need a sticky slot.
func (p *Pool) SelectByIndex(i int) *Backend {
	if i < 0 {
		i = -i
	}
	return p.backends[i%len(p.backends)]
}

// SelectByKey maps a key to a stable backend so that one logical record
// (a usage counter, a cache entry) always lands in the same store.
func (p *Pool) SelectByKey(key string) *Backend {
	h := fnv.New32a()
	h.Write([]byte(key))
	return p.backends[int(h.Sum32()%uint32(len(p.backends)))]
}

// All returns every pool member, in configuration order.
func (p *Pool) All() []*Backend {
	return p.backends
}

func (p *Pool) Size() int {
	return len(p.backends)
}

func (p *Pool) Close() {
	for _, b := range p.backends {
		if err := b.Client.Close(); err != nil {
			log.Printf("closing backend %s: %v", b.Addr, err)
		}
	}
}

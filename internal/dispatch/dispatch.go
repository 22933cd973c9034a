// Package dispatch runs the cached-or-dispatch path: cache lookup, then the
// mode's fallback chain with credential rotation, then cache store.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lamnguyen-dev/chat-dispatch/internal/credentials"
	"github.com/lamnguyen-dev/chat-dispatch/internal/modelchain"
	"github.com/lamnguyen-dev/chat-dispatch/internal/models"
	"github.com/lamnguyen-dev/chat-dispatch/internal/respcache"
	"github.com/lamnguyen-dev/chat-dispatch/internal/upstream"
)

// ErrAllModelsFailed is surfaced once every model in the chain has failed or
// the global time budget ran out.
var ErrAllModelsFailed = errors.New("all models in fallback chain failed")

type Request struct {
	Mode     modelchain.Mode
	Vision   bool
	Messages []models.Message
}

type Dispatcher struct {
	chains    *modelchain.Selector
	creds     *credentials.Pool
	cache     *respcache.Cache
	completer upstream.Completer
}

func New(chains *modelchain.Selector, creds *credentials.Pool, cache *respcache.Cache, completer upstream.Completer) *Dispatcher {
	return &Dispatcher{chains: chains, creds: creds, cache: cache, completer: completer}
}

// Complete serves the request from cache when possible, otherwise walks the
// fallback chain. Each attempt runs under the mode's timeout with a freshly
// picked credential; the whole chain shares the global budget. The model id
// that actually produced the text is returned alongside it.
func (d *Dispatcher) Complete(ctx context.Context, req Request) (*models.Completion, error) {
	if d.creds.ValidCount() == 0 {
		return nil, credentials.ErrNoCredentialsConfigured
	}

	chain, attemptTimeout := d.selectChain(req)
	query := lastUserMessage(req.Messages)

	if query != "" {
		for _, modelID := range chain {
			if text, hit := d.cache.Get(ctx, query, modelID); hit {
				return &models.Completion{Text: text, ModelID: modelID, Cached: true}, nil
			}
		}
	}

	budgetCtx, cancel := context.WithTimeout(ctx, d.chains.GlobalMax())
	defer cancel()

	var lastErr error
	for _, modelID := range chain {
		if budgetCtx.Err() != nil {
			log.Printf("dispatch budget exhausted before trying %s", modelID)
			break
		}

		cred, err := d.creds.Pick()
		if err != nil {
			return nil, err
		}

		attemptCtx, attemptCancel := context.WithTimeout(budgetCtx, attemptTimeout)
		start := time.Now()
		text, err := d.completer.Complete(attemptCtx, modelID, req.Messages, cred.Value)
		attemptCancel()

		if err != nil {
			lastErr = err
			log.Printf("dispatch attempt %s failed after %dms: %v", modelID, time.Since(start).Milliseconds(), err)
			continue
		}

		if query != "" {
			d.cache.Put(ctx, query, modelID, text)
		}
		return &models.Completion{Text: text, ModelID: modelID, Cached: false}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllModelsFailed, lastErr)
	}
	return nil, ErrAllModelsFailed
}

func (d *Dispatcher) selectChain(req Request) ([]string, time.Duration) {
	if req.Vision {
		return d.chains.VisionChain(), d.chains.VisionTimeout()
	}
	return d.chains.ChainFor(req.Mode), d.chains.TimeoutFor(req.Mode)
}

// lastUserMessage is the cache query: the literal question being asked.
func lastUserMessage(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

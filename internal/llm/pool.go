// internal/llm/pool.go
package llm

import (
	"context"
	"sync/atomic"

	"support-triage/internal/common/logger"
)

// Pool holds a fixed set of reusable client handles selected round-robin per
// call. Each handle carries a small in-flight limit, which bounds the total
// outstanding model calls without a global semaphore. The pool is constructed
// once at startup and injected into the stages that need it.
type Pool struct {
	handles []*handle
	next    atomic.Uint64
	logger  logger.Logger
}

type handle struct {
	client *Client
	slots  chan struct{}
}

// NewPool builds size handles over the same endpoint config, each admitting at
// most maxConcurrent in-flight calls.
func NewPool(config *Config, size, maxConcurrent int, log logger.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	handles := make([]*handle, size)
	for i := range handles {
		handles[i] = &handle{
			client: NewClient(config, log),
			slots:  make(chan struct{}, maxConcurrent),
		}
	}

	return &Pool{
		handles: handles,
		logger:  log.WithFields(map[string]interface{}{"component": "llm-pool"}),
	}
}

// Size returns the number of handles in the pool.
func (p *Pool) Size() int {
	return len(p.handles)
}

// Acquire picks the next handle round-robin and claims one of its slots,
// blocking (context-aware) while the handle is saturated. The returned release
// func must be called exactly once.
func (p *Pool) Acquire(ctx context.Context) (*Client, func(), error) {
	idx := p.next.Add(1) % uint64(len(p.handles))
	h := p.handles[idx]

	select {
	case h.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	release := func() { <-h.slots }
	return h.client, release, nil
}

// Complete acquires a handle, runs one completion, and releases the slot.
func (p *Pool) Complete(ctx context.Context, prompt string) (string, error) {
	client, release, err := p.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	return client.Complete(ctx, prompt)
}

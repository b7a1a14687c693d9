package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Handler answers requests addressed to one context
type Handler interface {
	HandleMessage(ctx context.Context, req Request) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// HandleMessage calls f(ctx, req)
func (f HandlerFunc) HandleMessage(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Notifier is implemented by endpoints that can deliver a one-way message
// without waiting for a handler result.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// Router carries messages between isolated contexts. Delivery is at most
// once: nothing is acknowledged, retried or queued for an absent endpoint.
type Router struct {
	endpoints map[string]Handler
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRouter creates a router with no endpoints
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		endpoints: make(map[string]Handler),
		logger:    logger,
	}
}

// Register binds name to h, replacing any previous endpoint
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = h
}

// Unregister removes the endpoint bound to name
func (r *Router) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, name)
}

func (r *Router) lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.endpoints[name]
	return h, ok
}

// Send delivers req to the named endpoint without waiting. Failures are
// logged and dropped.
func (r *Router) Send(ctx context.Context, to string, req Request) {
	h, ok := r.lookup(to)
	if !ok {
		r.logger.Debug("dropping message for missing endpoint", "to", to, "action", req.Action)
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		var err error
		if n, ok := h.(Notifier); ok {
			err = n.Notify(ctx, req)
		} else {
			_, err = h.HandleMessage(ctx, req)
		}
		if err != nil {
			r.logger.Warn("message delivery failed", "to", to, "action", req.Action, "error", err)
		}
	}()
}

// Request delivers req to the named endpoint and decodes its answer into
// out. The answer is copied through JSON so no memory is shared between
// contexts.
func (r *Router) Request(ctx context.Context, to string, req Request, out any) error {
	h, ok := r.lookup(to)
	if !ok {
		return fmt.Errorf("no endpoint registered for %s", to)
	}

	result, err := h.HandleMessage(ctx, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", to, req.Action, err)
	}

	if out == nil {
		return nil
	}
	return copyResult(result, out)
}

func copyResult(result any, out any) error {
	var data []byte
	switch v := result.(type) {
	case json.RawMessage:
		data = v
	default:
		var err error
		data, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}
	if len(data) == 0 {
		data = []byte("null")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

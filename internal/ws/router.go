package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrUnknownEvent = errors.New("unknown_event")

// internal (untyped) handler signature.
type handlerFunc func(ctx context.Context, cc *ConnContext, body json.RawMessage) (any, error)

// Router maps frame event names onto typed handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]handlerFunc
}

func NewRouter() *Router { return &Router{handlers: make(map[string]handlerFunc)} }

// Register binds an event to a strongly typed handler.
func Register[Req any, Res any](
	r *Router,
	event string,
	h func(ctx context.Context, cc *ConnContext, req Req) (Res, error),
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, cc *ConnContext, body json.RawMessage) (any, error) {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
		}
		return h(ctx, cc, req)
	}
}

// dispatch is called by the connection reader loop.
func (r *Router) dispatch(ctx context.Context, cc *ConnContext, env Envelope) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownEvent
	}
	return h(ctx, cc, env.Body)
}

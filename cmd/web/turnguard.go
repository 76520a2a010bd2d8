package main

import (
	"context"
	"sync"
)

// turnGuard allows one outstanding turn per session.
type turnGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newTurnGuard() *turnGuard {
	return &turnGuard{busy: make(map[string]struct{})}
}

// acquire marks key busy and reports whether it was idle. An empty key always succeeds because a brand-new session
// cannot have another turn in flight.
func (g *turnGuard) acquire(key string) bool {
	if key == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

func (g *turnGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, key)
}

// beginTurn claims the turn slot of the request's session. The caller must call release when ok.
func (app *application) beginTurn(ctx context.Context) (func(), bool) {
	key := app.sessionManager.Token(ctx)
	if !app.turnGuard.acquire(key) {
		return nil, false
	}
	return func() { app.turnGuard.release(key) }, true
}

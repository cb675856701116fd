package service

import (
	"context"
	"sync"
)

type endedKey struct{}

type endedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// TrackEnded returns a context under which EndSession records the sessions it closes, and a func
// reporting whether sessionID was closed under it.
func TrackEnded(ctx context.Context) (context.Context, func(sessionID string) bool) {
	set := &endedSet{ids: make(map[string]struct{})}
	return context.WithValue(ctx, endedKey{}, set), func(sessionID string) bool {
		set.mu.Lock()
		defer set.mu.Unlock()
		_, ok := set.ids[sessionID]
		return ok
	}
}

func markEnded(ctx context.Context, sessionID string) {
	set, ok := ctx.Value(endedKey{}).(*endedSet)
	if !ok {
		return
	}
	set.mu.Lock()
	set.ids[sessionID] = struct{}{}
	set.mu.Unlock()
}

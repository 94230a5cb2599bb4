package app

import (
	"strings"
	"sync"
)

// keyLimiter serializes requests that share a key, e.g. two signups for one email.
type keyLimiter struct {
	mu    sync.Mutex
	byKey map[string]*keyLock
}

type keyLock struct {
	mu      sync.Mutex
	waiters int
}

func newKeyLimiter() *keyLimiter {
	return &keyLimiter{byKey: make(map[string]*keyLock)}
}

// lock blocks until key is free and returns the release func.
func (l *keyLimiter) lock(key string) func() {
	key = strings.ToLower(strings.TrimSpace(key))
	l.mu.Lock()
	k, ok := l.byKey[key]
	if !ok {
		k = &keyLock{}
		l.byKey[key] = k
	}
	k.waiters++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.waiters--
		if k.waiters == 0 {
			delete(l.byKey, key)
		}
		l.mu.Unlock()
	}
}

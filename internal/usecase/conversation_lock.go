package usecase

import (
	"context"
	"fmt"
	"sync"
)

// ConversationLocker serializes processing per conversation scope. Two
// messages into the same private chat or the same group must not interleave
// their history reads, pending-action checks, and writes; messages into
// different scopes proceed in parallel.
type ConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

// scopeLock is reference-counted so the map entry can be dropped once the
// last waiter releases it.
type scopeLock struct {
	mu   sync.Mutex
	refs int
}

func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{locks: make(map[string]*scopeLock)}
}

// Lock blocks until the scope identified by key is free or ctx is cancelled.
// The returned unlock func must be called exactly once.
func (cl *ConversationLocker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	cl.mu.Lock()
	sl, ok := cl.locks[key]
	if !ok {
		sl = &scopeLock{}
		cl.locks[key] = sl
	}
	sl.refs++
	cl.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		sl.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { cl.release(key, sl) }, nil
	case <-ctx.Done():
		// The acquiring goroutine will still take the mutex eventually;
		// release it as soon as it does so the scope is not held forever.
		go func() {
			<-acquired
			cl.release(key, sl)
		}()
		return nil, fmt.Errorf("conversation lock: %w", ctx.Err())
	}
}

func (cl *ConversationLocker) release(key string, sl *scopeLock) {
	sl.mu.Unlock()
	cl.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(cl.locks, key)
	}
	cl.mu.Unlock()
}

// ActiveCount reports how many scopes currently have a holder or waiters.
func (cl *ConversationLocker) ActiveCount() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.locks)
}

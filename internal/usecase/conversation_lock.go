package usecase

import (
	"context"
	"fmt"
	"sync"
)

// ConversationLocker serializes turns per conversation so that a reply is
// stored before the next prompt of the same conversation reads history.
type ConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	sem  chan struct{}
	refs int
}

// NewConversationLocker creates an empty locker.
func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{locks: make(map[string]*conversationLock)}
}

// Lock blocks until the conversation is free or ctx is done. The returned
// unlock function must be called exactly once.
func (l *ConversationLocker) Lock(ctx context.Context, conversationID string) (unlock func(), err error) {
	l.mu.Lock()
	cl, ok := l.locks[conversationID]
	if !ok {
		cl = &conversationLock{sem: make(chan struct{}, 1)}
		l.locks[conversationID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-cl.sem
				l.release(conversationID, cl)
			})
		}, nil
	case <-ctx.Done():
		l.release(conversationID, cl)
		return nil, fmt.Errorf("conversation lock: %w", context.Cause(ctx))
	}
}

func (l *ConversationLocker) release(conversationID string, cl *conversationLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, conversationID)
	}
}

// Len returns the number of conversations with a held or pending lock.
func (l *ConversationLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

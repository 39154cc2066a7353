package runtime

import (
	"chat-realtime/domain"
	"sync"
)

// presenceLocks serializes the registry change of an identity with the write
// of its durable online flag, so an offline mark from a closing session never
// lands after the online mark of the session that replaced it.
type presenceLocks struct {
	mu    sync.Mutex
	locks map[domain.UserID]*presenceLock
}

type presenceLock struct {
	sync.Mutex
	refs int
}

func newPresenceLocks() *presenceLocks {
	return &presenceLocks{locks: make(map[domain.UserID]*presenceLock)}
}

// lock blocks until userID is free and returns the matching unlock.
// An entry lives only while someone holds or waits for it.
func (p *presenceLocks) lock(userID domain.UserID) func() {
	p.mu.Lock()
	l, ok := p.locks[userID]
	if !ok {
		l = &presenceLock{}
		p.locks[userID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, userID)
		}
		p.mu.Unlock()
	}
}

func (p *presenceLocks) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

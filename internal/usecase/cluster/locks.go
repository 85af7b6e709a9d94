package cluster

import "sync"

// nameLocks serializes work per collection name.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	sync.Mutex
	refs int
}

// lock blocks until name is free and returns its release func.
func (n *nameLocks) lock(name string) func() {
	n.mu.Lock()
	if n.locks == nil {
		n.locks = make(map[string]*nameLock)
	}
	l, ok := n.locks[name]
	if !ok {
		l = &nameLock{}
		n.locks[name] = l
	}
	l.refs++
	n.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		n.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(n.locks, name)
		}
		n.mu.Unlock()
	}
}

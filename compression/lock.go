package compression

import "sync"

// lockTable serializes compression per scope. One scope compresses at
// most once at a time; independent scopes never block each other.
type lockTable struct {
	mu     sync.Mutex
	locked map[string]bool
}

func newLockTable() *lockTable {
	return &lockTable{locked: make(map[string]bool)}
}

// TryLock acquires the scope's lock without blocking. It reports
// whether the lock was acquired.
func (t *lockTable) TryLock(scope string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locked[scope] {
		return false
	}
	t.locked[scope] = true
	return true
}

// Unlock releases the scope's lock.
func (t *lockTable) Unlock(scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locked, scope)
}

// InProgress reports whether the scope is currently locked.
func (t *lockTable) InProgress(scope string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked[scope]
}

// AnyInProgress reports whether any scope is currently locked.
func (t *lockTable) AnyInProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locked) > 0
}

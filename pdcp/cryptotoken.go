package pdcp

import "sync"

// CryptoToken is a scoped crypto-task admission handle (spec.md §9,
// "Crypto token"): acquiring one increments the owning
// CryptoTokenManager's in-flight refcount, and Release decrements it.
// Release is idempotent and safe to call from whichever goroutine
// finishes the task it was acquired for.
type CryptoToken struct {
	mgr      *CryptoTokenManager
	once     sync.Once
}

// Release drops the token. A nil token or a token released twice is a
// no-op.
func (t *CryptoToken) Release() {
	if t == nil {
		return
	}
	t.once.Do(t.mgr.release)
}

// CryptoTokenManager gates Entity.Stop() until every crypto task acquired
// before the stop request has released its token (spec.md §5, "Shared
// resources").
type CryptoTokenManager struct {
	mu         sync.Mutex
	refs       int
	stopping   bool
	done       chan struct{}
	doneClosed bool
}

// NewCryptoTokenManager returns a manager with zero in-flight tokens.
func NewCryptoTokenManager() *CryptoTokenManager {
	return &CryptoTokenManager{done: make(chan struct{})}
}

// Acquire returns a new token, or ok=false if Stop has already been
// called.
func (m *CryptoTokenManager) Acquire() (token *CryptoToken, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return nil, false
	}
	m.refs++
	return &CryptoToken{mgr: m}, true
}

func (m *CryptoTokenManager) release() {
	m.mu.Lock()
	m.refs--
	shouldClose := m.stopping && m.refs == 0
	m.mu.Unlock()
	if shouldClose {
		m.closeDone()
	}
}

func (m *CryptoTokenManager) closeDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.doneClosed {
		close(m.done)
		m.doneClosed = true
	}
}

// Stop marks the manager as stopping (no further Acquire calls succeed)
// and returns a channel closed once every outstanding token has been
// released.
func (m *CryptoTokenManager) Stop() <-chan struct{} {
	m.mu.Lock()
	m.stopping = true
	shouldClose := m.refs == 0
	m.mu.Unlock()
	if shouldClose {
		m.closeDone()
	}
	return m.done
}

// Wait blocks until Stop has been called and every token released.
func (m *CryptoTokenManager) Wait() {
	<-m.done
}

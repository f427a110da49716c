package identity

import (
	"context"
	"sync"
)

// User is an authenticated session holder. ID is the stable identifier the
// remote store is keyed by.
type User struct {
	ID    string
	Email string
	Token string
}

// Provider yields the current authenticated user and auth-state change
// notifications.
type Provider interface {
	CurrentUser() *User
	SubscribeAuthState(fn func(user *User)) func()
}

// SessionManager holds the process-wide session and fans auth-state changes
// out to subscribers. Sign-in and sign-up are delegated to the identity API
// through Client; the manager only tracks the resulting session.
type SessionManager struct {
	client *Client

	mu     sync.Mutex
	user   *User
	subs   map[int]func(*User)
	lastID int
}

func NewSessionManager(client *Client) *SessionManager {
	return &SessionManager{
		client: client,
		subs:   make(map[int]func(*User)),
	}
}

// CurrentUser returns the active session's user, or nil.
func (m *SessionManager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// SubscribeAuthState registers fn and invokes it immediately with the
// current state, then on every sign-in and sign-out. The returned function
// releases the subscription.
func (m *SessionManager) SubscribeAuthState(fn func(user *User)) func() {
	m.mu.Lock()
	m.lastID++
	id := m.lastID
	m.subs[id] = fn
	current := m.user
	m.mu.Unlock()

	fn(current)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *SessionManager) setUser(user *User) {
	m.mu.Lock()
	m.user = user
	subs := make([]func(*User), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(user)
	}
}

// SignIn authenticates against the identity API and starts a session.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*User, error) {
	user, err := m.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.setUser(user)
	return user, nil
}

// SignUp creates an account and starts a session for it.
func (m *SessionManager) SignUp(ctx context.Context, email, password string) (*User, error) {
	user, err := m.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.setUser(user)
	return user, nil
}

// SignOut ends the session; subscribers are notified with nil.
func (m *SessionManager) SignOut() {
	m.setUser(nil)
}

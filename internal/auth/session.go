package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Spok95/campus-community/internal/models"
)

// ErrUnauthenticated means the session holds no complete user payload.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// SessionUser is the payload kept in the session after login.
type SessionUser struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Role        models.Role `json:"role"`
	Name        *string     `json:"name"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

func (u *SessionUser) complete() bool {
	return u != nil && u.ID != "" && u.Email != "" && u.Role != "" && !u.LastUpdated.IsZero()
}

// Session is the per-caller session store. Get returns (nil, nil) for an empty session.
type Session interface {
	Get(ctx context.Context) (*SessionUser, error)
	Save(ctx context.Context, u SessionUser) error
	Clear(ctx context.Context) error
}

// Require returns the logged-in user or ErrUnauthenticated.
func Require(ctx context.Context, sess Session) (*SessionUser, error) {
	if sess == nil {
		return nil, ErrUnauthenticated
	}
	u, err := sess.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !u.complete() {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// MemorySession keeps the payload in process. Used by tests and tooling.
type MemorySession struct {
	mu   sync.Mutex
	user *SessionUser
	// Err, when set, is returned by every call.
	Err error
}

func NewMemorySession(u *SessionUser) *MemorySession {
	return &MemorySession{user: u}
}

func (m *MemorySession) Get(context.Context) (*SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.user == nil {
		return nil, nil
	}
	cp := *m.user
	return &cp, nil
}

func (m *MemorySession) Save(_ context.Context, u SessionUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.user = &u
	return nil
}

func (m *MemorySession) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.user = nil
	return nil
}

package auth

import (
	"context"
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/Spok95/campus-community/internal/models"
)

const (
	SessionName = "campus-session"
	sessionTTL  = 7 * 24 * time.Hour

	keyID          = "user_id"
	keyEmail       = "user_email"
	keyRole        = "user_role"
	keyName        = "user_name"
	keyLastUpdated = "last_updated"
)

// NewCookieStore signs cookies with secret and encrypts them with a key derived from it.
// In production (secure=true) cookies are Secure + SameSite=None; in dev Lax over http.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	enc := sha256.Sum256([]byte("campus-session-enc:" + secret))
	store := sessions.NewCookieStore([]byte(secret), enc[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}
	store.MaxAge(int(sessionTTL.Seconds()))
	return store
}

// CookieSession binds a gorilla session store to one request/response pair.
type CookieSession struct {
	store sessions.Store
	w     http.ResponseWriter
	r     *http.Request
}

func NewCookieSession(store sessions.Store, w http.ResponseWriter, r *http.Request) *CookieSession {
	return &CookieSession{store: store, w: w, r: r}
}

// Get treats an undecodable cookie as an empty session.
func (c *CookieSession) Get(context.Context) (*SessionUser, error) {
	s, err := c.store.Get(c.r, SessionName)
	if err != nil || s.IsNew {
		return nil, nil
	}
	id, _ := s.Values[keyID].(string)
	if id == "" {
		return nil, nil
	}
	u := &SessionUser{ID: id}
	u.Email, _ = s.Values[keyEmail].(string)
	role, _ := s.Values[keyRole].(string)
	u.Role = models.Role(role)
	if name, ok := s.Values[keyName].(string); ok && name != "" {
		u.Name = &name
	}
	if ts, ok := s.Values[keyLastUpdated].(int64); ok {
		u.LastUpdated = time.UnixMilli(ts).UTC()
	}
	return u, nil
}

func (c *CookieSession) Save(_ context.Context, u SessionUser) error {
	s, _ := c.store.Get(c.r, SessionName)
	s.Values[keyID] = u.ID
	s.Values[keyEmail] = u.Email
	s.Values[keyRole] = string(u.Role)
	if u.Name != nil {
		s.Values[keyName] = *u.Name
	} else {
		delete(s.Values, keyName)
	}
	s.Values[keyLastUpdated] = u.LastUpdated.UnixMilli()
	return s.Save(c.r, c.w)
}

func (c *CookieSession) Clear(context.Context) error {
	s, _ := c.store.Get(c.r, SessionName)
	s.Values = map[any]any{}
	s.Options.MaxAge = -1
	return s.Save(c.r, c.w)
}

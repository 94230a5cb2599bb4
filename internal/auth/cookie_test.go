package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/campus-community/internal/models"
)

func TestCookieSessionRoundTrip(t *testing.T) {
	store := NewCookieStore(string(securecookie.GenerateRandomKey(32)), false)
	ctx := context.Background()
	name := "Ann"
	want := SessionUser{ID: "u1", Email: "ann@campus.edu", Role: models.Moderator, Name: &name,
		LastUpdated: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	require.NoError(t, NewCookieSession(store, rec, req).Save(ctx, want))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	next.AddCookie(cookies[0])
	got, err := Require(ctx, NewCookieSession(store, httptest.NewRecorder(), next))
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestCookieSessionTamperedIsEmpty(t *testing.T) {
	store := NewCookieStore(string(securecookie.GenerateRandomKey(32)), true)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionName, Value: "garbage"})

	_, err := Require(context.Background(), NewCookieSession(store, httptest.NewRecorder(), req))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCookieSessionClear(t *testing.T) {
	store := NewCookieStore(string(securecookie.GenerateRandomKey(32)), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)

	require.NoError(t, NewCookieSession(store, rec, req).Clear(context.Background()))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

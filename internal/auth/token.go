// Package auth holds the authentication primitives: opaque session tokens
// and their cookie, bcrypt password hashing, bearer-token identity
// verification, GitHub OAuth, and the middleware that resolves the current
// user for every request.
//
// SESSION TOKENS:
// A session token is a random UUIDv4 handed to the browser in the
// "session_token" cookie. The server never stores the raw token, only its
// SHA-256 hex digest, so someone who reads the sessions table still cannot
// present a valid cookie.
//
//	browser cookie:  session_token=0b5c2f0e-...        (raw)
//	sessions table:  token_hash=9f86d081884c7d65...    (sha256 hex)
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

const (
	// SessionCookieName is the cookie carrying the raw session token.
	SessionCookieName = "session_token"

	// SessionTTL is how long a freshly issued session stays valid.
	SessionTTL = 7 * 24 * time.Hour

	oauthStateCookieName = "oauth_state"
)

// NewSessionToken returns a fresh random token. uuid.NewRandom reads from
// crypto/rand, so tokens are unguessable.
func NewSessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// HashToken returns the hex SHA-256 digest stored in place of the token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewOAuthState returns a value for the OAuth "state" parameter.
func NewOAuthState() string {
	return xid.New().String()
}

// SetSessionCookie attaches the session cookie to the response.
// secure should be true whenever the site is served over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
// MaxAge -1 is rendered as "Max-Age=0".
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionTokenFromRequest returns the raw session token, or "" when the
// request carries no session cookie.
func SessionTokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetOAuthStateCookie stores the OAuth state for ten minutes, long enough
// for the user to approve the app on GitHub.
func SetOAuthStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsumeOAuthState reports whether the callback's state matches the cookie
// and clears the cookie either way. The state is single-use.
func ConsumeOAuthState(w http.ResponseWriter, r *http.Request) bool {
	c, err := r.Cookie(oauthStateCookieName)
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	if err != nil || c.Value == "" {
		return false
	}
	return r.URL.Query().Get("state") == c.Value
}

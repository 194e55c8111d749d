package model

import "time"

// Session maps a hashed session token to a user.
//
// The raw token only ever lives in the client's cookie; storage keeps the
// SHA-256 hex digest so a leaked table cannot be replayed.
type Session struct {
	TokenHash string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

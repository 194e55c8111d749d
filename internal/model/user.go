// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a profile that owns tweets and scores.
//
// A user comes into existence in one of three ways: POST /api/user, a
// password signup, or the first authenticated request carrying an external
// identity (get-or-create on ExternalUID). The ID never changes afterwards.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Bio          *string   `json:"bio"`
	ProfileURL   *string   `json:"profile_url"`
	ExternalUID  *string   `json:"-"` // identity-provider subject, e.g. "github:583231"
	PasswordHash string    `json:"-"` // empty for users without a password
	CreatedAt    time.Time `json:"created_at"`
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Identity is a verified claim from an external identity provider.
type Identity struct {
	Subject string // stable provider user ID, namespaced by provider where needed
	Email   string // may be empty
	Login   string // provider username hint, may be empty
}

// UserProfile is the public view of a user returned by the /api/user routes.
type UserProfile struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	Bio        *string `json:"bio"`
	ProfileURL *string `json:"profile_url"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:         u.ID,
		Username:   u.Username,
		Bio:        u.Bio,
		ProfileURL: u.ProfileURL,
	}
}

package models

import "time"

// User is the identity returned by the auth service
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSession is a token pair accepted by the auth service, with the identity it belongs to
type AuthSession struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

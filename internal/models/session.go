package models

import "time"

// User is the identity resolved by the backend at login time.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Session is the credential pair plus resolved user held for one browser
// session. It lives in the durable session store; the access token is
// additionally mirrored into a short-lived cookie.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         User      `json:"user"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

package models

import (
	"encoding/json"
	"time"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Envelope is the response wrapper the novels backend uses for most
// endpoints. Data is kept raw so each caller decodes its own payload.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type LoginPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

type MeResponse struct {
	User                 User      `json:"user"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

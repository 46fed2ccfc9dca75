package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/lfhwnqe/gen-novel-gateway/internal/models"
)

const maxPayloadBytes = 1 << 20

// DecodeTokenPair parses a refresh response. The backend wraps most
// responses in a {code, message, data} envelope but the shape is accepted
// flat as well.
func DecodeTokenPair(r io.Reader) (*models.TokenPair, error) {
	var pair models.TokenPair
	if err := decodePayload(r, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, errors.New("missing access token")
	}
	return &pair, nil
}

// DecodeLoginPayload parses a login response into tokens plus user identity.
func DecodeLoginPayload(r io.Reader) (*models.LoginPayload, error) {
	var login models.LoginPayload
	if err := decodePayload(r, &login); err != nil {
		return nil, err
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		return nil, errors.New("missing token pair")
	}
	return &login, nil
}

func decodePayload(r io.Reader, dest interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		raw = env.Data
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Package session stores the remote grocery service credentials issued
// after OTP login, keyed by the owning user.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/instamart"
)

// ErrNotFound is returned when no credentials exist for the given user.
var ErrNotFound = errors.New("session: credentials not found")

// Credentials is one user's remote session state.
type Credentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	SwiggyUserID string    `json:"swiggyUserId,omitempty"`
	AddressID    string    `json:"addressId,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is past its expiry. A zero
// ExpiresAt means the token carries no known expiry.
func (c Credentials) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// Store persists session credentials across requests.
type Store interface {
	Save(ctx context.Context, userID string, creds Credentials) error
	Get(ctx context.Context, userID string) (*Credentials, error)
	Delete(ctx context.Context, userID string) error
}

// Refresher exchanges a refresh token for fresh access credentials. A nil
// Refresher disables transparent refresh.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*instamart.AuthResult, error)
}

var _ Refresher = (*instamart.Auth)(nil)

// Resolve loads usable credentials for the user. An expired access token is
// transparently refreshed and re-saved when a refresh token and a Refresher
// are available; otherwise a SessionError surfaces the re-authentication
// reason code instead of a storage detail.
func Resolve(ctx context.Context, store Store, userID string, refresher Refresher) (*Credentials, error) {
	creds, err := store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &core.SessionError{Message: "no Swiggy session, please log in"}
		}
		return nil, err
	}
	if !creds.Expired() {
		return creds, nil
	}
	if refresher == nil || creds.RefreshToken == "" {
		return nil, &core.SessionError{Message: "Swiggy session expired, please log in again"}
	}

	auth, err := refresher.RefreshToken(ctx, creds.RefreshToken)
	if err != nil || !auth.Success {
		return nil, &core.SessionError{Message: "Swiggy session expired and refresh failed, please log in again"}
	}

	refreshed := *creds
	refreshed.AccessToken = auth.AccessToken
	if auth.RefreshToken != "" {
		refreshed.RefreshToken = auth.RefreshToken
	}
	refreshed.ExpiresAt = time.Time{}
	if auth.ExpiresIn > 0 {
		refreshed.ExpiresAt = time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	}
	if err := store.Save(ctx, userID, refreshed); err != nil {
		return nil, err
	}
	return &refreshed, nil
}

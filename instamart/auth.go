package instamart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/cartpilot/core"
)

// OTPResult reports the outcome of an OTP dispatch.
type OTPResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AuthResult carries the credentials issued after OTP verification.
type AuthResult struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
	UserID       string `json:"userId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Auth performs the pre-session operations against the Instamart endpoint:
// OTP issuance/verification, address listing and token refresh.
type Auth struct {
	endpoint   string
	httpClient *http.Client
}

// NewAuth creates an Auth client for the given endpoint ("" selects the
// production endpoint).
func NewAuth(endpoint string, httpClient *http.Client) *Auth {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Auth{endpoint: endpoint, httpClient: httpClient}
}

// call performs one unauthenticated (or token-authenticated) JSON-RPC call.
func (a *Auth) call(ctx context.Context, method, bearer string, params map[string]any, out any) error {
	if params == nil {
		params = map[string]any{}
	}

	body, err := json.Marshal(rpcEnvelope{
		JSONRPC: "2.0",
		ID:      time.Now().UnixMilli(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("instamart %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instamart %s: HTTP %d", method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("instamart %s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("instamart %s: %s", method, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("instamart %s: decode result: %w", method, err)
		}
	}
	return nil
}

// SendOTP dispatches a login OTP to the given phone number.
func (a *Auth) SendOTP(ctx context.Context, phone string) (*OTPResult, error) {
	var result struct {
		Message string `json:"message"`
	}
	if err := a.call(ctx, "auth/send-otp", "", map[string]any{"phone": phone}, &result); err != nil {
		return &OTPResult{Success: false, Message: err.Error()}, err
	}
	message := result.Message
	if message == "" {
		message = "OTP sent successfully"
	}
	return &OTPResult{Success: true, Message: message}, nil
}

// VerifyOTP exchanges a phone + OTP pair for access credentials.
func (a *Auth) VerifyOTP(ctx context.Context, phone, otp string) (*AuthResult, error) {
	var result struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
		UserID       string `json:"userId"`
	}
	if err := a.call(ctx, "auth/verify-otp", "", map[string]any{"phone": phone, "otp": otp}, &result); err != nil {
		return &AuthResult{Success: false, Error: err.Error()}, err
	}
	return &AuthResult{
		Success:      true,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		UserID:       result.UserID,
	}, nil
}

// RefreshToken exchanges a refresh token for a fresh access token.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (*AuthResult, error) {
	var result struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	if err := a.call(ctx, "auth/refresh", "", map[string]any{"refreshToken": refreshToken}, &result); err != nil {
		return &AuthResult{Success: false, Error: err.Error()}, err
	}
	return &AuthResult{
		Success:      true,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	}, nil
}

// GetAddresses lists the saved delivery addresses for an authenticated user.
// The remote payload uses loose field names; unknown fields map to their
// closest DeliveryAddress equivalents.
func (a *Auth) GetAddresses(ctx context.Context, accessToken string) ([]core.DeliveryAddress, error) {
	var result struct {
		Addresses []struct {
			ID         string `json:"id"`
			Annotation string `json:"annotation"`
			Label      string `json:"label"`
			Address    string `json:"address"`
			Line1      string `json:"addressLine1"`
			City       string `json:"city"`
			Pincode    string `json:"pincode"`
			Zipcode    string `json:"zipcode"`
			IsDefault  bool   `json:"isDefault"`
		} `json:"addresses"`
	}
	if err := a.call(ctx, "user/addresses", accessToken, nil, &result); err != nil {
		return nil, err
	}

	addresses := make([]core.DeliveryAddress, 0, len(result.Addresses))
	for _, addr := range result.Addresses {
		label := addr.Annotation
		if label == "" {
			label = addr.Label
		}
		line := addr.Address
		if line == "" {
			line = addr.Line1
		}
		pincode := addr.Pincode
		if pincode == "" {
			pincode = addr.Zipcode
		}
		addresses = append(addresses, core.DeliveryAddress{
			ID:        addr.ID,
			Label:     label,
			Address:   line,
			City:      addr.City,
			Pincode:   pincode,
			IsDefault: addr.IsDefault,
		})
	}
	return addresses, nil
}

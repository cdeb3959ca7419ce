package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMirrorExists indicates the external provider already holds an account
// for the email. Callers treat it as success.
var ErrMirrorExists = errors.New("identity: mirrored account already exists")

// Mirror replicates new accounts to an external identity provider so the
// same credentials work against both systems.
type Mirror interface {
	CreateAccount(ctx context.Context, email, password string) error
}

const mirrorTimeout = 15 * time.Second

// HTTPMirror posts signup requests to an identity-toolkit style endpoint.
type HTTPMirror struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPMirror constructs an HTTPMirror. Returns nil when the endpoint is
// empty, which disables mirroring.
func NewHTTPMirror(endpoint, apiKey string) *HTTPMirror {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	return &HTTPMirror{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: mirrorTimeout},
	}
}

type mirrorSignupRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// CreateAccount registers the account at the provider. An EMAIL_EXISTS
// response maps to ErrMirrorExists.
func (m *HTTPMirror) CreateAccount(ctx context.Context, email, password string) error {
	body, errMarshal := json.Marshal(mirrorSignupRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
	if errMarshal != nil {
		return fmt.Errorf("identity: marshal mirror request: %w", errMarshal)
	}

	endpoint := m.endpoint
	if m.apiKey != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "key=" + m.apiKey
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("identity: build mirror request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := m.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("identity: mirror request: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if strings.Contains(string(detail), "EMAIL_EXISTS") {
		return ErrMirrorExists
	}
	return fmt.Errorf("identity: mirror status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
}

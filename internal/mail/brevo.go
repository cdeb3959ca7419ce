// Package mail sends transactional email through the Brevo SMTP API.
package mail

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

const (
	brevoEndpoint  = "https://api.brevo.com/v3/smtp/email"
	requestTimeout = 15 * time.Second
)

// ErrNotConfigured indicates the API key or sender address is missing.
var ErrNotConfigured = errors.New("mail: api key or sender email not configured")

// Sender delivers OTP emails. Implementations must not retry on failure;
// callers decide how a delivery error surfaces.
type Sender interface {
	SendOTP(ctx context.Context, recipient, code string) error
}

// recipient is one address entry in a Brevo payload.
type recipient struct {
	Email string `json:"email"`
}

// sendRequest is the Brevo transactional email payload.
type sendRequest struct {
	Sender      recipient   `json:"sender"`
	To          []recipient `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

// BrevoClient sends email via the Brevo HTTP API.
type BrevoClient struct {
	apiKey      string
	senderEmail string
	productName string
	endpoint    string
	httpClient  *http.Client
}

// NewBrevoClient constructs a BrevoClient. productName is used in the
// subject line and body copy.
func NewBrevoClient(apiKey, senderEmail, productName string) *BrevoClient {
	return &BrevoClient{
		apiKey:      strings.TrimSpace(apiKey),
		senderEmail: strings.TrimSpace(senderEmail),
		productName: productName,
		endpoint:    brevoEndpoint,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

// SendOTP delivers a one-time password to the recipient. Any 2xx response
// counts as delivered.
func (c *BrevoClient) SendOTP(ctx context.Context, to, code string) error {
	if c.apiKey == "" || c.senderEmail == "" {
		return ErrNotConfigured
	}

	payload := sendRequest{
		Sender:      recipient{Email: c.senderEmail},
		To:          []recipient{{Email: to}},
		Subject:     fmt.Sprintf("Your %s OTP Code 💖", c.productName),
		HTMLContent: c.renderBody(code),
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("mail: marshal request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("mail: build request: %w", errReq)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("mail: send: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: brevo status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (c *BrevoClient) renderBody(code string) string {
	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; padding: 20px; color: #333; line-height: 1.5;">
  <h2 style="text-align:center;">Dear User,</h2>

  <p>Your One Time Password (OTP) for logging into %[1]s is:</p>

  <p style="font-size:24px; font-weight:bold; text-align:center; margin: 20px 0;">
    %[2]s
  </p>

  <p>This OTP is valid for <strong>5 minutes</strong>.</p>
  <p>Do not share this OTP with anyone.</p>

  <p>If you did not request this OTP, please contact our support immediately at
  <a href="mailto:support@friendix.ai">support@friendix.ai</a>.</p>

  <br>
  <p>Regards,<br>
  Team %[1]s</p>

  <hr style="border:none; border-top:1px solid #ddd; margin-top:25px;">

  <p style="font-size:12px; color:#777;">
    <strong>Notice:</strong> This email and its attachments may contain confidential information.
    If you are not the intended recipient, please delete this email immediately.
  </p>
</div>`, c.productName, code)
}

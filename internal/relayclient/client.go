// Package relayclient talks to the upload and email relay (cmd/relay).
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// PhotoField is the multipart field the relay reads the photo from.
const PhotoField = "studentPhoto"

// ErrAuth is returned when the relay reports bad SMTP credentials.
var ErrAuth = errors.New("relay: smtp credentials rejected")

// Response is the relay's JSON envelope.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// EmailRequest is the body of POST /send-email.
type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Client calls the relay service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with a default timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts an email to the relay.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload, _ := json.Marshal(EmailRequest{To: to, Subject: subject, Body: body})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/send-email", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	out, err := c.do(req)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("relay: send failed: %s", out.Message)
	}
	return nil
}

// Upload posts a photo and returns the URL the relay serves it under.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(PhotoField, filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload-photo", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	out, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !out.Success || out.PhotoURL == "" {
		return "", fmt.Errorf("relay: upload failed: %s", out.Message)
	}
	return out.PhotoURL, nil
}

// Health checks if the relay is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("relay unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) do(req *http.Request) (Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out Response
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode == http.StatusUnauthorized {
		return out, fmt.Errorf("%w: %s", ErrAuth, out.Message)
	}
	if resp.StatusCode >= 300 {
		return out, fmt.Errorf("relay error %s: %s", resp.Status, string(body))
	}
	return out, nil
}

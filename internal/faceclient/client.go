// Package faceclient calls the external face-recognition microservice.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// VerifyResult is the service's verdict on a 1:1 face comparison.
type VerifyResult struct {
	Verified   bool    `json:"verified"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Detail     string  `json:"detail,omitempty"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. Skip short-circuits every call as verified, for
// development without the service running.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Health checks the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Verify compares an uploaded frame against the stored reference image URL.
func (c *Client) Verify(ctx context.Context, frame io.Reader, filename, referenceURL string) (VerifyResult, error) {
	if c.Skip {
		return VerifyResult{Verified: true, Similarity: 1}, nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return VerifyResult{}, err
	}
	if _, err := io.Copy(part, frame); err != nil {
		return VerifyResult{}, err
	}
	if err := writer.WriteField("url", referenceURL); err != nil {
		return VerifyResult{}, err
	}
	if err := writer.Close(); err != nil {
		return VerifyResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify-face", &body)
	if err != nil {
		return VerifyResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return VerifyResult{}, err
	}
	defer resp.Body.Close()

	var out VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return VerifyResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		detail := out.Detail
		if detail == "" {
			detail = "face service error"
		}
		return VerifyResult{}, fmt.Errorf("face service returned %d: %s", resp.StatusCode, detail)
	}
	return out, nil
}

package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Payment states reported by the gateway.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

// PaymentGateway initiates checkouts and reports order state.
type PaymentGateway interface {
	Pay(ctx context.Context, merchantOrderID string, amount int64, redirectURL string) (PayResponse, error)
	OrderStatus(ctx context.Context, merchantOrderID string) (string, error)
}

// PayResponse is the gateway's answer to a checkout initiation.
type PayResponse struct {
	RedirectURL string `json:"redirectUrl"`
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
}

// Client calls the payment gateway's standard-checkout HTTP API.
type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTP         *http.Client
}

// NewClient creates a gateway client with a bounded timeout.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
	}
}

// Pay initiates a checkout for the given order.
func (c *Client) Pay(ctx context.Context, merchantOrderID string, amount int64, redirectURL string) (PayResponse, error) {
	body, err := json.Marshal(map[string]any{
		"merchantOrderId": merchantOrderID,
		"amount":          amount,
		"paymentFlow": map[string]any{
			"type":        "PG_CHECKOUT",
			"redirectUrl": redirectURL,
		},
	})
	if err != nil {
		return PayResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/checkout/v2/pay", bytes.NewReader(body))
	if err != nil {
		return PayResponse{}, err
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return PayResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PayResponse{}, fmt.Errorf("payment gateway returned %d", resp.StatusCode)
	}

	var out PayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PayResponse{}, err
	}
	return out, nil
}

// OrderStatus returns the gateway's state for an order.
func (c *Client) OrderStatus(ctx context.Context, merchantOrderID string) (string, error) {
	url := fmt.Sprintf("%s/checkout/v2/order/%s/status", c.BaseURL, merchantOrderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment gateway returned %d", resp.StatusCode)
	}

	var out struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.State, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Id", c.ClientID)
	req.Header.Set("X-Client-Secret", c.ClientSecret)
}

package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the upstream core API that owns clients, projects, and
// payment events. One instance is shared across the app.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// defaultHTTP backs clients constructed without an explicit HTTP field. The
// aggregator fans out list calls on one shared Client, so httpClient must not
// write to the receiver.
var defaultHTTP = &http.Client{Timeout: 15 * time.Second}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return defaultHTTP
}

func (c *Client) endpoint(path string) (string, error) {
	if c.BaseURL == "" {
		return "", fmt.Errorf("coreapi: CORE_API_URL is not set")
	}
	return strings.TrimRight(c.BaseURL, "/") + path, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("coreapi request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// remoteError surfaces the backend's own message verbatim when it sends one,
// so callers can show it unchanged.
func remoteError(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return fmt.Errorf("%s", payload.Message)
		}
		if payload.Error != "" {
			return fmt.Errorf("%s", payload.Error)
		}
	}
	return fmt.Errorf("coreapi error: status %d body: %s", status, string(body))
}

// dataEnvelope is the {data: [...]} wrapper most list endpoints use.
type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

// ListClients GET /clients — the one endpoint that returns a bare array.
func (c *Client) ListClients(ctx context.Context) ([]ClientRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/clients", nil)
	if err != nil {
		return nil, err
	}
	var clients []ClientRecord
	if err := json.Unmarshal(body, &clients); err != nil {
		return nil, fmt.Errorf("coreapi clients decode: %w", err)
	}
	return clients, nil
}

// ListProjects GET /projects.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/projects", nil)
	if err != nil {
		return nil, err
	}
	var env dataEnvelope[ProjectRecord]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("coreapi projects decode: %w", err)
	}
	return env.Data, nil
}

// ListProjectPayments GET /projects/{id}/payments.
func (c *Client) ListProjectPayments(ctx context.Context, projectID string) ([]PaymentRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/payments", nil)
	if err != nil {
		return nil, err
	}
	var env dataEnvelope[PaymentRecord]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("coreapi payments decode: %w", err)
	}
	return env.Data, nil
}

// CreatePayment POST /projects/{id}/payments. New events are always active.
func (c *Client) CreatePayment(ctx context.Context, projectID string, in CreatePaymentInput) error {
	in.Active = true
	_, err := c.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/payments", in)
	return err
}

// CancelPayment DELETE /projects/{id}/payments/{paymentId}. The upstream
// keeps the record and flips estado to false, storing the reason.
func (c *Client) CancelPayment(ctx context.Context, projectID, paymentID, reason string) error {
	path := "/projects/" + url.PathEscape(projectID) + "/payments/" + url.PathEscape(paymentID)
	_, err := c.do(ctx, http.MethodDelete, path, map[string]string{"motivo_anulacion": reason})
	return err
}

// Ping does a cheap reachability check for the health dashboard.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/clients", nil)
	return err
}

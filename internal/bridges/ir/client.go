package ir

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

// Sentinel errors for IR transport operations.
var (
	// ErrCommandFailed indicates the endpoint was reached but did not
	// confirm the IR command.
	ErrCommandFailed = errors.New("ir: command failed")

	// ErrUnavailable indicates the endpoint could not be reached.
	ErrUnavailable = errors.New("ir: transport unavailable")
)

const (
	defaultTimeout = 5 * time.Second
	sendPath       = "/api/ir/send"

	// maxResponseSize bounds how much of an error body is read.
	maxResponseSize = 64 * 1024
)

// Request is one IR command for one device.
type Request struct {
	DeviceID string `json:"deviceId"`
	Address  string `json:"address"`
	Command  string `json:"command"`
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client posts IR commands to the external IR transport service.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send transmits req. A 2xx response whose body does not explicitly
// report failure counts as success.
func (c *Client) Send(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encoding request: %w", ErrCommandFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrCommandFailed, req.Command, req.DeviceID, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var r response
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &r) != nil {
		return nil
	}
	if !r.Success && r.Error != "" {
		return fmt.Errorf("%w: %s %s: %s", ErrCommandFailed, req.Command, req.DeviceID, r.Error)
	}
	return nil
}

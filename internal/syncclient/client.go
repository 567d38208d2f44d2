// Package syncclient is the HTTP client for the showsync server.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anders/showsync/internal/sync"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrChecksumMismatch = errors.New("checksum rejected")
	ErrDeviceUnknown    = errors.New("device not registered")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrRateLimited      = errors.New("rate limited")
)

// Client is an HTTP client for the showsync server. DeviceID is sent on
// every request; leave it empty only for first-time registration.
type Client struct {
	BaseURL  string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new sync client.
func New(baseURL, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Wire types (mirror internal/api, independently defined) ---

// PullResponse is the body of GET /records/all and GET /records/pending.
type PullResponse struct {
	Data     []sync.Record `json:"data"`
	Checksum string        `json:"checksum"`
}

// RegisterResponse is the body of PUT /devices/{name}.
type RegisterResponse struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// pushEnvelope is the wire shape of a pushed record.
type pushEnvelope struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register registers this client with the server. With an empty DeviceID a
// new device is created and the client adopts its id; with a DeviceID set the
// existing device is renamed. Returns the (possibly newly assigned) id.
func (c *Client) Register(ctx context.Context, name string) (string, error) {
	var resp RegisterResponse
	if err := c.do(ctx, "PUT", "/devices/"+name, nil, &resp, nil); err != nil {
		return "", err
	}
	c.DeviceID = resp.DeviceID
	return resp.DeviceID, nil
}

// Deregister removes this device from the server. Already-deregistered is
// success.
func (c *Client) Deregister(ctx context.Context) error {
	return c.do(ctx, "DELETE", "/devices/"+c.DeviceID, nil, nil, nil)
}

// PushRecord uploads a record body under the given id. The MD5 checksum of
// the exact payload bytes travels in the Content-MD5 header; the server
// echoes it as ETag once the record is persisted, and the echo is verified
// here before reporting success.
func (c *Client) PushRecord(ctx context.Context, recordID string, body json.RawMessage) (*sync.Record, error) {
	payload, err := json.Marshal(pushEnvelope{ID: recordID, Body: body})
	if err != nil {
		return nil, fmt.Errorf("marshal record envelope: %w", err)
	}
	sum := sync.Checksum(payload)

	var rec sync.Record
	echo, err := c.doRaw(ctx, "POST", "/records", payload, &rec, map[string]string{
		"Content-MD5":  sum,
		"Content-Type": "application/json",
	})
	if err != nil {
		return nil, err
	}
	if echo != "" && echo != sum {
		return nil, fmt.Errorf("%w: server echoed %q, sent %q", ErrChecksumMismatch, echo, sum)
	}
	return &rec, nil
}

// DeleteRecord tombstones a record on the server. Deleting a record that no
// longer exists is success.
func (c *Client) DeleteRecord(ctx context.Context, recordID string) error {
	return c.do(ctx, "DELETE", "/records/"+recordID, nil, nil, nil)
}

// PullAll fetches every record plus the set checksum, verifying the checksum
// over the received data before returning it.
func (c *Client) PullAll(ctx context.Context) (*PullResponse, error) {
	var resp PullResponse
	if err := c.do(ctx, "GET", "/records/all", nil, &resp, nil); err != nil {
		return nil, err
	}
	if err := verifySetChecksum(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PullPending fetches the records still pending for this device, verifying
// the set checksum.
func (c *Client) PullPending(ctx context.Context) (*PullResponse, error) {
	var resp PullResponse
	if err := c.do(ctx, "GET", "/records/pending", nil, &resp, nil); err != nil {
		return nil, err
	}
	if err := verifySetChecksum(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AcknowledgePending confirms a pulled record was durably applied locally.
func (c *Client) AcknowledgePending(ctx context.Context, recordID string) error {
	return c.do(ctx, "DELETE", "/records/"+recordID+"/pending", nil, nil, nil)
}

// verifySetChecksum recomputes the result-set checksum over the received
// records. Record serialization is deterministic (sorted ids, sorted pending
// sets, verbatim bodies), so a clean transfer reproduces the digest exactly.
func verifySetChecksum(resp *PullResponse) error {
	recs := resp.Data
	if recs == nil {
		recs = []sync.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("serialize pulled records: %w", err)
	}
	if sum := sync.Checksum(data); sum != resp.Checksum {
		return fmt.Errorf("%w: payload digest %q, declared %q", ErrChecksumMismatch, sum, resp.Checksum)
	}
	return nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// do executes a JSON request and decodes the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any, headers map[string]string) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = data
	}
	_, err := c.doRaw(ctx, method, path, payload, result, headers)
	return err
}

// doRaw executes a request with a pre-serialized payload and returns the
// response ETag.
func (c *Client) doRaw(ctx context.Context, method, path string, payload []byte, result any, headers map[string]string) (string, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", classifyError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header.Get("ETag"), nil
}

// classifyError maps an error response onto the sentinel errors, keyed by the
// structured code when present.
func classifyError(status int, body []byte) error {
	var wrapper struct {
		Error apiError `json:"error"`
	}
	if json.Unmarshal(body, &wrapper) != nil || wrapper.Error.Code == "" {
		return fmt.Errorf("HTTP %d", status)
	}
	apiErr := wrapper.Error

	switch apiErr.Code {
	case "checksum_mismatch":
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, apiErr.Message)
	case "device_unknown":
		return fmt.Errorf("%w: %s", ErrDeviceUnknown, apiErr.Message)
	case "forbidden":
		return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
	case "conflict":
		return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
	case "rate_limited":
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	default:
		return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Message)
	}
}

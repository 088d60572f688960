// Package apiclient is a typed HTTP client for the devices REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tphummel/devices/internal/models"
)

// Client is an HTTP client for the devices REST API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client targeting endpoint with Bearer token auth. The
// token may be the static API token or a signed JWT.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{},
	}
}

// APIError is a non-success response decoded from the server's error body.
type APIError struct {
	Status      int
	Code        string
	Message     string
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("devices api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a DEVICE_NOT_FOUND response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 response, whatever its code.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// do sends the request and decodes a response with status want into out. Any
// other status becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.FieldErrors = body.FieldErrors
		return apiErr
	}
	apiErr.Code = http.StatusText(resp.StatusCode)
	apiErr.Message = string(bytes.TrimSpace(raw))
	return apiErr
}

func devicePath(id int64) string {
	return fmt.Sprintf("/api/v1/devices/%d", id)
}

// CreateDevice POSTs a new device and returns the server-assigned record.
func (c *Client) CreateDevice(ctx context.Context, req models.CreateRequest) (*models.Response, error) {
	var out models.Response
	if err := c.do(ctx, http.MethodPost, "/api/v1/devices", req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDevice fetches a single device by id.
func (c *Client) GetDevice(ctx context.Context, id int64) (*models.Response, error) {
	var out models.Response
	if err := c.do(ctx, http.MethodGet, devicePath(id), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDevices returns every device, newest first.
func (c *Client) ListDevices(ctx context.Context) ([]models.Response, error) {
	var out []models.Response
	if err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDevicesByBrand returns devices of brand, matched ignoring case.
func (c *Client) ListDevicesByBrand(ctx context.Context, brand string) ([]models.Response, error) {
	var out []models.Response
	path := "/api/v1/devices/brand/" + url.PathEscape(brand)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDevicesByState returns devices in state.
func (c *Client) ListDevicesByState(ctx context.Context, state models.State) ([]models.Response, error) {
	var out []models.Response
	path := "/api/v1/devices/state/" + url.PathEscape(string(state))
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDevice PUTs a full replacement of name, brand and state.
func (c *Client) UpdateDevice(ctx context.Context, id int64, req models.UpdateRequest) (*models.Response, error) {
	var out models.Response
	if err := c.do(ctx, http.MethodPut, devicePath(id), req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchDevice PATCHes only the fields set in req.
func (c *Client) PatchDevice(ctx context.Context, id int64, req models.PatchRequest) (*models.Response, error) {
	var out models.Response
	if err := c.do(ctx, http.MethodPatch, devicePath(id), req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDevice removes the device with the given id.
func (c *Client) DeleteDevice(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, devicePath(id), nil, http.StatusNoContent, nil)
}

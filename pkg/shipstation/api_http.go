package shipstation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
// Authentication is HTTP basic with the API key as username and the API
// secret as password.
type HTTPAPIClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// DefaultBaseURL is the production ShipStation API endpoint.
const DefaultBaseURL = "https://ssapi.shipstation.com"

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListCarriers fetches all carriers via GET /carriers.
func (c *HTTPAPIClient) ListCarriers(ctx context.Context) ([]Carrier, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/carriers", nil, "list carriers")
	if err != nil {
		return nil, err
	}
	return decodeList[Carrier](body, "list carriers")
}

// ListServices fetches one carrier's services via GET /carriers/listservices.
func (c *HTTPAPIClient) ListServices(ctx context.Context, carrierCode string) ([]Service, error) {
	path := "/carriers/listservices?carrierCode=" + url.QueryEscape(carrierCode)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, "list services")
	if err != nil {
		return nil, err
	}
	return decodeList[Service](body, "list services")
}

// GetRates fetches rate quotes via POST /shipments/getrates.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) ([]Rate, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/shipments/getrates", req, "get rates")
	if err != nil {
		return nil, err
	}
	return decodeList[Rate](body, "get rates")
}

// doRequest performs an HTTP request and returns the response body.
// Non-2xx responses are still returned for decoding when they carry a
// body, so that API-level message payloads surface as *APIError rather
// than a bare status code.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, payload interface{}, op string) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, &TransportError{Op: op, Cause: fmt.Errorf("marshaling request body: %w", err)}
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &TransportError{Op: op, Cause: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if apiErr := parseAPIError(body); apiErr != nil {
			return nil, apiErr
		}
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unexpected status: %s", string(bytes.TrimSpace(body))),
		}
	}

	return body, nil
}

// decodeList decodes a JSON array response. A JSON object with a
// "message" field is an API-level error even under a 2xx status.
func decodeList[T any](body []byte, op string) ([]T, error) {
	if apiErr := parseAPIError(body); apiErr != nil {
		return nil, apiErr
	}

	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{Op: op, Cause: fmt.Errorf("decoding response: %w", err)}
	}
	return out, nil
}

// parseAPIError returns an *APIError when the body is a JSON object
// carrying a message field, nil otherwise.
func parseAPIError(body []byte) *APIError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(trimmed, &apiErr); err != nil || apiErr.Message == "" {
		return nil
	}
	return &apiErr
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)

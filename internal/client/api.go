package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is used when Options.Timeout is zero
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read
const maxBodySize = 32 << 20

// Authorizer attaches credentials to an outgoing request
type Authorizer func(req *http.Request)

// BearerAuth sends "Authorization: Bearer <token>"
func BearerAuth(token string) Authorizer {
	return func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// BasicAuth sends HTTP basic credentials
func BasicAuth(user, password string) Authorizer {
	return func(req *http.Request) {
		if user != "" || password != "" {
			req.SetBasicAuth(user, password)
		}
	}
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Auth       Authorizer
	UserAgent  string
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client is a small JSON-over-HTTP client shared by the tracker, AI and
// test-management adapters
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authorizer
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "VeloxCase-CLI/dev"
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		auth:       opts.Auth,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends payload as JSON (when non-nil) and decodes the response into out
// (when non-nil). Non-2xx responses come back as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, true)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, _, err := c.send(req)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to decode %s %s response: %v", ErrUpstream, method, req.URL.Path, err)
	}
	return nil
}

// Download fetches a binary resource. Relative URLs are resolved against the
// base URL. Credentials are attached only when withAuth is set.
func (c *Client) Download(ctx context.Context, rawURL string, withAuth bool) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(rawURL, nil), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, withAuth)
	req.Header.Set("Accept", "*/*")

	return c.send(req)
}

// Upload posts a single file as multipart/form-data
func (c *Client) Upload(ctx context.Context, path, field, filename, contentType string, data []byte, out any) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path, nil), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, true)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, _, err := c.send(req)
	if err != nil {
		return err
	}
	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: failed to decode upload response: %v", ErrUpstream, err)
		}
	}
	return nil
}

// send performs the request and classifies failures
func (c *Client) send(req *http.Request) ([]byte, string, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		c.logger.Warn("request failed", "method", req.Method, "url", redact(req.URL), "error", err)
		return nil, "", fmt.Errorf("%w: %s %s: %v", ErrNetwork, req.Method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read response: %v", ErrNetwork, err)
	}

	c.logger.Debug("request",
		"method", req.Method,
		"url", redact(req.URL),
		"status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			URL:        redact(req.URL),
			Body:       strings.TrimSpace(string(body)),
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusUnauthorized {
			c.logger.Warn("request rejected", "method", req.Method, "url", apiErr.URL, "status", resp.StatusCode)
		}
		return nil, "", apiErr
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// setHeaders sets common HTTP headers
func (c *Client) setHeaders(req *http.Request, withAuth bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if withAuth && c.auth != nil {
		c.auth(req)
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

// redact drops query parameters so API keys passed as ?key= are never logged
func redact(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	return clean.String()
}

// NormalizeBaseURL adds a scheme when missing and trims trailing slashes
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

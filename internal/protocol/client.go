// Package protocol implements HTTP communication with the DeliHood backend.
// This file provides the authenticated request client: it attaches the bearer
// token, classifies the response and drives the bounded refresh-and-retry loop.
package protocol

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

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
)

// Client executes logical requests against one backend
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     interfaces.TokenStore
	backoff    apperrors.Backoff
	refreshes  singleflight.Group
	stats      statsRecorder
	logger     *logging.Logger
	userAgent  string
	sessionID  string
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBackoff sets the delay before each re-issued attempt
func WithBackoff(backoff apperrors.Backoff) Option {
	return func(c *Client) { c.backoff = backoff }
}

// WithTimeout sets the per-attempt timeout of the default http.Client
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for baseURL reading credentials from tokens
func NewClient(baseURL string, tokens interfaces.TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token store cannot be nil")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	client := &Client{
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		backoff:   apperrors.NoBackoff,
		logger:    logging.GetProtocolLogger(),
		userAgent: fmt.Sprintf("DeliHood-CLI/%s", ClientVersion),
		sessionID: uuid.NewString(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// BaseURL returns the backend root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the token store backing this client
func (c *Client) Tokens() interfaces.TokenStore {
	return c.tokens
}

// Stats returns a snapshot of request statistics
func (c *Client) Stats() Statistics {
	return c.stats.snapshot()
}

// Request describes one logical call. Body is re-sent unchanged on every
// attempt.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Body          []byte
	ContentType   string
	Authenticated bool
}

// Response is a raw backend reply
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes req with the refresh-and-retry protocol and returns the body of
// a 200 reply, or of a 404 reply to a GET.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	op := req.Method + " " + req.Path
	requestID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := apperrors.Wait(ctx, c.backoff(attempt)); err != nil {
				return nil, apperrors.Wrap(apperrors.KindNetwork, op, err)
			}
		}

		resp, err := c.send(ctx, req, requestID, attempt)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if attempt >= MaxRefreshRetries {
				return nil, apperrors.Status(apperrors.KindRefreshExhausted, op, resp.StatusCode)
			}
			if err := c.refresh(ctx); err != nil {
				return nil, err
			}

		case resp.StatusCode == http.StatusForbidden:
			return nil, apperrors.Status(apperrors.KindEmailNotVerified, op, resp.StatusCode)

		case resp.StatusCode == http.StatusNotFound && req.Method == http.MethodGet:
			return resp.Body, nil

		case resp.StatusCode == http.StatusConflict && req.Method == http.MethodPost:
			return nil, apperrors.Status(apperrors.KindDuplicateValue, op, resp.StatusCode)

		default:
			return nil, apperrors.Status(apperrors.KindUnexpectedResponse, op, resp.StatusCode)
		}
	}
}

// Raw sends req once without status classification or retry. Login, register
// and refresh interpret their replies themselves.
func (c *Client) Raw(ctx context.Context, req Request) (*Response, error) {
	return c.send(ctx, req, uuid.NewString(), 0)
}

// send performs exactly one HTTP exchange
func (c *Client) send(ctx context.Context, req Request, requestID string, attempt int) (*Response, error) {
	op := req.Method + " " + req.Path

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	responseTime := time.Since(startTime)
	if err != nil {
		c.stats.request(responseTime, false)
		return nil, apperrors.Wrap(apperrors.KindNetwork, op, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		c.stats.request(responseTime, false)
		return nil, apperrors.Wrap(apperrors.KindNetwork, op, fmt.Errorf("failed to read response body: %w", err))
	}

	c.stats.request(responseTime, httpResp.StatusCode == http.StatusOK)
	c.logger.LogHTTPRequest(req.Method, req.Path, httpResp.StatusCode, attempt, responseTime)

	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// buildRequest creates the http.Request for one attempt
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	op := req.Method + " " + req.Path

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, op, fmt.Errorf("failed to create request: %w", err))
	}

	c.setStandardHeaders(httpReq)
	if req.Body != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}

	if req.Authenticated {
		if err := c.setAuthenticationHeaders(httpReq); err != nil {
			return nil, err
		}
	}

	return httpReq, nil
}

// setStandardHeaders sets headers common to all requests
func (c *Client) setStandardHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-ID", c.sessionID)
}

// setAuthenticationHeaders attaches the bearer token. A POST without a token
// fails; a GET goes out with a blank bearer and lets the server decide.
func (c *Client) setAuthenticationHeaders(req *http.Request) error {
	token, ok := c.tokens.AccessToken()
	if !ok && req.Method != http.MethodGet {
		return apperrors.New(apperrors.KindMissingCredentials, req.Method+" "+req.URL.Path)
	}
	if !ok {
		c.logger.Debug("Access token not available, sending blank bearer", "path", req.URL.Path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Get executes an authenticated GET and checks the error envelope
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.GetWith(ctx, path, query, true)
}

// GetWith executes a GET, optionally unauthenticated, and checks the error
// envelope
func (c *Client) GetWith(ctx context.Context, path string, query url.Values, authenticated bool) ([]byte, error) {
	body, err := c.Do(ctx, Request{
		Method:        http.MethodGet,
		Path:          path,
		Query:         query,
		Authenticated: authenticated,
	})
	if err != nil {
		return nil, err
	}
	return CheckEnvelope("GET "+path, body)
}

// Post executes a POST with a JSON body and checks the error envelope
func (c *Client) Post(ctx context.Context, path string, payload any, authenticated bool) ([]byte, error) {
	op := "POST " + path

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecodeFailure, op, fmt.Errorf("failed to encode request body: %w", err))
	}

	body, err := c.Do(ctx, Request{
		Method:        http.MethodPost,
		Path:          path,
		Body:          encoded,
		ContentType:   "application/json",
		Authenticated: authenticated,
	})
	if err != nil {
		return nil, err
	}
	return CheckEnvelope(op, body)
}

// GetJSON runs Get and decodes the body into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return decode("GET "+path, body, out)
}

// PostJSON runs Post and decodes the body into out when out is not nil
func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any, authenticated bool) error {
	body, err := c.Post(ctx, path, payload, authenticated)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode("POST "+path, body, out)
}

// decode unmarshals body into out, classifying failures as DecodeFailure
func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}
	return nil
}

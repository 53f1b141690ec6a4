package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/google/uuid"
)

const maxBodySize = 4 << 20

// Options configures a Client
type Options struct {
	BaseURL       string
	Timeout       time.Duration // per request, default 30s
	ReadRetries   int           // extra attempts for idempotent reads
	RetryInterval time.Duration // initial backoff, default 300ms
	HTTPClient    *http.Client
	Logger        *logger.Logger
}

// Client talks to the feed backend
type Client struct {
	baseURL       string
	httpClient    *http.Client
	readRetries   int
	retryInterval time.Duration
	log           *logger.Logger

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// New creates a client for the backend at opts.BaseURL
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		httpClient:    hc,
		readRetries:   opts.ReadRetries,
		retryInterval: interval,
		log:           log.Component("api"),
	}
}

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasToken reports whether a bearer token is set
func (c *Client) HasToken() bool {
	return c.Token() != ""
}

// OnUnauthorized registers fn to run whenever an authenticated call gets a 401
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// BaseURL returns the server root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method     string
	path       string
	query      url.Values
	body       any
	authed     bool // requires a session
	idempotent bool // safe to retry
	noHook     bool // skip the 401 hook
}

func (r request) op() string {
	return r.method + " " + r.path
}

// do performs r and decodes the payload into out (if non-nil)
func (c *Client) do(ctx context.Context, r request, out any) error {
	token := c.Token()
	if r.authed && token == "" {
		return &Error{Op: r.op(), Kind: ErrAuthRequired}
	}

	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op(), err)
		}
		payload = b
	}

	var data json.RawMessage
	attempt := func() error {
		d, err := c.send(ctx, r, token, payload)
		if err != nil {
			if r.idempotent && (errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)) {
				return err
			}
			return backoff.Permanent(err)
		}
		data = d
		return nil
	}

	var err error
	if r.idempotent && c.readRetries > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.retryInterval
		b.MaxElapsedTime = 0
		err = backoff.RetryNotify(attempt,
			backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.readRetries)), ctx),
			func(err error, wait time.Duration) {
				c.log.Warn("Retrying read", logger.F("op", r.op()), logger.F("wait", wait.String()), logger.Err(err))
			})
	} else {
		err = attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}
	if err != nil {
		if r.authed && !r.noHook && errors.Is(err, ErrSessionExpired) {
			c.fireUnauthorized()
		}
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Error("Response payload did not decode", logger.F("op", r.op()), logger.Err(err))
		return &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Err: err}
	}
	return nil
}

// send performs one HTTP round trip and returns the unwrapped payload
func (c *Client) send(ctx context.Context, r request, token string, payload []byte) (json.RawMessage, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, &Error{Op: r.op(), Kind: ErrBadRequest, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug("HTTP Request",
		logger.F("method", r.method),
		logger.F("url", u),
		logger.F("bodySize", len(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("HTTP request failed", logger.F("url", u), logger.Err(err))
		return nil, &Error{Op: r.op(), Kind: ErrNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Op: r.op(), Status: resp.StatusCode, Kind: ErrNetwork, Err: err}
	}

	c.log.Debug("HTTP Response",
		logger.F("status", resp.StatusCode),
		logger.F("url", u),
		logger.F("size", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Op:      r.op(),
			Status:  resp.StatusCode,
			Kind:    kindForStatus(resp.StatusCode, r.authed),
			Message: errorMessage(respBody),
		}
		if resp.StatusCode >= 500 {
			c.log.Error("Server error", logger.F("op", r.op()), logger.F("status", resp.StatusCode), logger.F("response", apiErr.Message))
		} else {
			c.log.Debug("Request rejected", logger.F("op", r.op()), logger.F("status", resp.StatusCode), logger.F("response", apiErr.Message))
		}
		return nil, apiErr
	}

	data, err := unwrap(respBody)
	if err != nil {
		c.log.Error("Malformed response", logger.F("op", r.op()), logger.Err(err))
		return nil, &Error{Op: r.op(), Status: resp.StatusCode, Kind: ErrMalformedResponse, Err: err}
	}
	return data, nil
}

func (c *Client) fireUnauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

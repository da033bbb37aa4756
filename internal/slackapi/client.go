package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://slack.com/api"

	maxAttempts = 3
)

// APIError is a non-ok response from the Slack Web API.
type APIError struct {
	Method string
	Code   string
	Status int
}

func (e *APIError) Error() string {
	code := strings.TrimSpace(e.Code)
	if code == "" {
		code = "unknown_error"
	}
	if e.Status != 0 && (e.Status < 200 || e.Status >= 300) {
		return fmt.Sprintf("slack %s failed: %s (http %d)", e.Method, code, e.Status)
	}
	return fmt.Sprintf("slack %s failed: %s", e.Method, code)
}

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string

	// Requests per second against the Web API. Zero uses a conservative default;
	// the scan loop is strictly sequential, the limiter just keeps bursts in check.
	RateLimit float64
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := opts.RateLimit
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// callJSON posts a JSON body to a Web API method and decodes the response into out,
// retrying on rate-limit and server errors.
func (c *Client) callJSON(ctx context.Context, method string, payload any, out any) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = raw
	}
	return c.call(ctx, method, "application/json; charset=utf-8", body, out)
}

// callForm posts url-encoded params, the wire format of the read-side Web API methods.
func (c *Client) callForm(ctx context.Context, method string, params url.Values, out any) error {
	var body []byte
	if params != nil {
		body = []byte(params.Encode())
	}
	return c.call(ctx, method, "application/x-www-form-urlencoded", body, out)
}

func (c *Client) call(ctx context.Context, method, contentType string, body []byte, out any) error {
	if c == nil || c.http == nil {
		return fmt.Errorf("slack client is not initialized")
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return fmt.Errorf("slack api method is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		raw, status, headers, err := c.post(ctx, method, contentType, body)
		if err != nil {
			lastErr = err
			status = 0
		} else {
			var env apiEnvelope
			if parseErr := json.Unmarshal(raw, &env); parseErr != nil {
				lastErr = fmt.Errorf("slack %s: %w", method, parseErr)
			} else if !env.OK {
				lastErr = &APIError{Method: method, Code: env.Error, Status: status}
				if env.Error == "ratelimited" && status != http.StatusTooManyRequests {
					status = http.StatusTooManyRequests
				}
			} else if status < 200 || status >= 300 {
				lastErr = &APIError{Method: method, Code: env.Error, Status: status}
			} else {
				if out != nil {
					if err := json.Unmarshal(raw, out); err != nil {
						return fmt.Errorf("slack %s: %w", method, err)
					}
				}
				return nil
			}
		}

		if attempt >= maxAttempts {
			break
		}
		wait, retryable := retryDelay(status, headers, attempt)
		if !retryable {
			break
		}
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, method, contentType string, body []byte) ([]byte, int, http.Header, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, reader)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, resp.Header, readErr
	}
	return raw, resp.StatusCode, resp.Header, nil
}

func retryDelay(status int, headers http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := ""
		if headers != nil {
			retryAfter = strings.TrimSpace(headers.Get("Retry-After"))
		}
		if retryAfter == "" {
			return 1 * time.Second, true
		}
		secs, err := strconv.Atoi(retryAfter)
		if err != nil || secs <= 0 {
			return 1 * time.Second, true
		}
		return time.Duration(secs) * time.Second, true
	case status >= 500 && status <= 599:
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		case 2:
			return 1 * time.Second, true
		default:
			return 2 * time.Second, true
		}
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 10 * time.Second
	searchTimeout   = 30 * time.Second
	maxResponseBody = 8 * 1024 * 1024
)

// ServiceError is a non-2xx response from a backend media service.
type ServiceError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Body)
}

// ErrUnreachable marks connection and timeout failures. Tool wrappers turn
// it into a friendly "server is down" message for the model.
var ErrUnreachable = errors.New("service unreachable")

// restClient is the shared HTTP core for all backend media services: API
// key injection, JSON decoding, per-service rate limiting, and error
// classification.
type restClient struct {
	service string
	baseURL string
	header  string // header name the API key goes in; empty for query-param auth
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func newRESTClient(service, baseURL, header, apiKey string) *restClient {
	return &restClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  header,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
		// Backend boxes are small; keep the agent from hammering them when
		// the model fires several tool calls in one iteration.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

type requestOptions struct {
	method  string
	path    string
	query   url.Values
	body    any
	timeout time.Duration
}

// do performs a request and decodes the JSON response into out (skipped
// when out is nil, e.g. for DELETE).
func (c *restClient) do(ctx context.Context, opts requestOptions, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	method := opts.method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL + opts.path
	if len(opts.query) > 0 {
		u += "?" + opts.query.Encode()
	}

	var bodyReader io.Reader
	if opts.body != nil {
		raw, err := json.Marshal(opts.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.service, err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.header != "" && c.apiKey != "" {
		req.Header.Set(c.header, c.apiKey)
	}

	client := c.client
	if opts.timeout > 0 && opts.timeout != client.Timeout {
		clone := *client
		clone.Timeout = opts.timeout
		client = &clone
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if isTimeout(err) {
			return fmt.Errorf("%w: %s did not respond within the timeout period", ErrUnreachable, c.service)
		}
		return fmt.Errorf("%w: %s is unreachable, check that the server is running and the URL is correct", ErrUnreachable, c.service)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{Service: c.service, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: unexpected response from %s: %w", c.service, opts.path, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) {
		return timeout.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

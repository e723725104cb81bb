package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vocdoni/encrypted-survey/api"
	"github.com/vocdoni/encrypted-survey/log"
)

const (
	HTTPGET  = http.MethodGet
	HTTPPOST = http.MethodPost

	// DefaultRetries is the number of attempts made when the connection to
	// the node fails.
	DefaultRetries = 3
	DefaultTimeout = 10 * time.Second

	retryInterval  = 500 * time.Millisecond
	maxLoggedBody  = 512
	maxBufferBytes = 1 << 20
)

// HTTPclient is the survey node API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries int
}

// New returns a client for the node at host, failing if it does not answer
// to a ping.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	c := &HTTPclient{
		c: &http.Client{
			Transport: &http.Transport{
				IdleConnTimeout: DefaultTimeout,
				WriteBufferSize: maxBufferBytes,
				ReadBufferSize:  maxBufferBytes,
			},
			Timeout: DefaultTimeout,
		},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	if err := c.Ping(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Ping checks the API server is up.
func (c *HTTPclient) Ping(ctx context.Context) error {
	return c.call(ctx, HTTPGET, nil, nil, nil, api.PingEndpoint)
}

// SetRetries sets how many attempts a request makes before giving up.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = n
}

// Request sends a request to the endpoint built by joining urlPath and
// returns the raw response body and status code. A non nil jsonBody is sent
// as JSON. params holds query parameters as key, value pairs; an unpaired
// trailing key is ignored.
//
// Connection failures are retried with exponential backoff. Responses are
// returned as they are, whatever their status.
func (c *HTTPclient) Request(ctx context.Context, method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}
	endpoint := c.endpoint(params, urlPath...)
	log.Debugw("http client request", "type", method, "url", endpoint, "body", truncate(body))

	resp, err := c.do(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *HTTPclient) endpoint(params []string, urlPath ...string) string {
	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	if len(params) > 1 {
		values := url.Values{}
		for i := 0; i+1 < len(params); i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}
	return u.String()
}

func (c *HTTPclient) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInterval
	retries := max(c.retries, 1)

	attempt := 0
	resp, err := backoff.RetryWithData(func() (*http.Response, error) {
		attempt++
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
		}
		resp, err := c.c.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			log.Warnw("http request failed", "error", err.Error(), "attempt", attempt, "retries", retries)
			return nil, err
		}
		return resp, nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}

// call performs a request and decodes a successful JSON response into out,
// which may be nil. Non 200 responses are returned as API errors.
func (c *HTTPclient) call(ctx context.Context, method string, body, out any, params []string, urlPath ...string) error {
	data, status, err := c.Request(ctx, method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return api.ErrorFromResponse(status, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}
	return nil
}

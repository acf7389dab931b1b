package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-access-console/internal/model"
	"go-access-console/pkg/apierror"
)

const defaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token attached to outgoing requests.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Options tune the client; zero values pick the defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	Logger     *slog.Logger
}

// Client is the typed REST client for the access-control backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		tokens:     opts.Tokens,
		logger:     logger,
	}, nil
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("parse path: %w", err)
	}
	target := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.rejectionError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}

	return nil
}

// rejectionError turns a non-2xx response into a typed error. 401 and 403
// map onto the model sentinels so callers can converge on them with
// errors.Is; everything else surfaces as *apierror.APIError.
func (c *Client) rejectionError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := apierror.Decode(resp.StatusCode, body)

	c.logger.Debug("request rejected",
		"method", resp.Request.Method,
		"url", resp.Request.URL.Path,
		"status", resp.StatusCode,
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", model.ErrUnauthorized, apiErr.Error())
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", model.ErrForbidden, apiErr.Error())
	}

	return apiErr
}

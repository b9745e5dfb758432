// Package upstream is the transport layer for the GitHub REST API. It builds
// and sends one HTTP request per call, injecting the fixed protocol headers.
// It never inspects status codes or bodies; interpreting the response is the
// tool handler's job.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adamcfield/github-mcp-proxy/internal/auth"
)

const (
	apiVersion = "2022-11-28"
	acceptType = "application/vnd.github+json"
	userAgent  = "github-mcp-proxy"
)

type Client struct {
	baseURL    string
	tokens     auth.TokenSource
	httpClient *http.Client
}

// RequestOptions override parts of the outgoing request. Method defaults to
// GET. Headers override individual injected defaults but cannot remove them.
type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
}

func NewClient(baseURL string, tokens auth.TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: http.DefaultClient,
	}
}

// Do performs one HTTP call against the given locator, which is either a
// path relative to the API base URL or an absolute URL.
func (c *Client) Do(ctx context.Context, locator string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	url := locator
	if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
		if !strings.HasPrefix(locator, "/") {
			locator = "/" + locator
		}
		url = c.baseURL + locator
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", acceptType)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

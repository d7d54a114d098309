package dashsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/buildinfo"
)

// Response is the body of every non-2xx API response.
type Response struct {
	// Message is an actionable message that depicts actions the request took.
	Message string `json:"message"`
	// Detail is a debug message that provides further insight into why the
	// action failed.
	Detail string `json:"detail,omitempty"`
	// Validations are form field-specific friendly error messages.
	Validations []ValidationError `json:"validations,omitempty"`
}

// ValidationError represents a scoped error to a user input.
type ValidationError struct {
	Field  string `json:"field" validate:"required"`
	Detail string `json:"detail" validate:"required"`
}

// Error is returned by Client methods for unexpected status codes.
type Error struct {
	Response

	statusCode int
	method     string
	url        string
}

func (e *Error) StatusCode() int {
	return e.statusCode
}

func (e *Error) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s %s: unexpected status code %d", e.method, e.url, e.statusCode)
	if e.Message != "" {
		_, _ = fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Detail != "" {
		_, _ = fmt.Fprintf(&b, "\n\tError: %s", e.Detail)
	}
	for _, v := range e.Validations {
		_, _ = fmt.Fprintf(&b, "\n\t%s: %s", v.Field, v.Detail)
	}
	return b.String()
}

// Client talks to a running dashboard server.
type Client struct {
	URL        *url.URL
	HTTPClient *http.Client

	token string
}

type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client to use for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func New(serverURL *url.URL, opts ...ClientOption) *Client {
	c := &Client{
		URL:        serverURL,
		HTTPClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs an HTTP request with the body marshaled as JSON.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, xerrors.Errorf("marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	endpoint, err := url.Parse(path)
	if err != nil {
		return nil, xerrors.Errorf("parse path %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL.ResolveReference(endpoint).String(), r)
	if err != nil {
		return nil, xerrors.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "dashboard/"+buildinfo.Version())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("do request: %w", err)
	}
	return res, nil
}

// ReadBodyAsError reads the response as a Response and returns it wrapped
// in an *Error.
func ReadBodyAsError(res *http.Response) error {
	if res == nil {
		return xerrors.New("no response")
	}
	apiErr := &Error{statusCode: res.StatusCode}
	if res.Request != nil {
		apiErr.method = res.Request.Method
		apiErr.url = res.Request.URL.String()
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return xerrors.Errorf("read body: %w", err)
	}
	if len(raw) == 0 {
		apiErr.Message = http.StatusText(res.StatusCode)
		return apiErr
	}
	if err := json.Unmarshal(raw, &apiErr.Response); err != nil {
		apiErr.Message = "unexpected non-JSON response"
		apiErr.Detail = string(raw)
	}
	return apiErr
}

type requestArgs struct {
	Method     string
	URL        string
	Body       any
	ExpectCode int
}

type noResponse struct{}

func makeRequest[T any](ctx context.Context, c *Client, args requestArgs) (T, error) {
	var empty T
	res, err := c.Request(ctx, args.Method, args.URL, args.Body)
	if err != nil {
		return empty, err
	}
	defer res.Body.Close()

	if res.StatusCode != args.ExpectCode {
		return empty, ReadBodyAsError(res)
	}
	if _, ok := any(empty).(noResponse); ok {
		return empty, nil
	}
	var result T
	return result, decodeJSON(res, &result)
}

func decodeJSON(res *http.Response, v any) error {
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return xerrors.Errorf("decode response: %w", err)
	}
	return nil
}

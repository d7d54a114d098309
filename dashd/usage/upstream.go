package usage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/buildinfo"
)

// maxBodySize bounds how much of an upstream response is read.
const maxBodySize = 4 << 20

// ErrInvalidResponse is returned when an upstream body is not JSON.
var ErrInvalidResponse = xerrors.New("invalid upstream response")

// StatusError is an upstream response with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Code)
}

// SafeMessage describes err without leaking request details such as URLs
// or credentials.
func SafeMessage(err error) string {
	var (
		statusErr *StatusError
		netErr    net.Error
		opErr     *net.OpError
		dnsErr    *net.DNSError
	)
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP %d", statusErr.Code)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return "request timed out"
	// *url.Error is a net.Error too, so only dial and lookup failures
	// count as the network being unreachable.
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return "network unreachable"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid response"
	default:
		return "request failed"
	}
}

// getJSON performs a GET and parses the body. Non-2xx responses become a
// *StatusError.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, xerrors.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "openclaw-dashboard/"+buildinfo.Version())
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	res, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, xerrors.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		return gjson.Result{}, &StatusError{Code: res.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return gjson.Result{}, xerrors.Errorf("read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrInvalidResponse
	}
	return gjson.ParseBytes(body), nil
}

func bearer(key string) string {
	return "Bearer " + key
}

// Package clients holds thin HTTP clients for the external capabilities this
// service delegates to: text generation, image generation, and media hosting.
// This file provides the shared outbound http.Client construction; each
// capability lives in its own subpackage.
//
// All clients make exactly one attempt per call. Failures are returned to the
// caller with the provider's error body preserved; no retries happen at this
// layer or above.
package clients

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client configured for outbound provider
// calls. It has conservative transport timeouts and does not follow
// redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// StatusError formats a non-2xx provider response into an error, keeping up
// to 4 KiB of the response body. Provider wording is surfaced verbatim so the
// API envelope can carry it to the caller.
func StatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("%s: %s: %s", provider, resp.Status, bytes.TrimSpace(body))
}

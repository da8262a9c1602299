// Package imagegen is a client for the text-to-image API. The endpoint takes
// a multipart form with a prompt field and answers with raw PNG bytes.
package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/quickai/go-quickai-backend/internal/clients"
)

// minImageBytes guards against truncated or error-page responses that arrive
// with a 200 status; anything shorter cannot be a real PNG.
const minImageBytes = 100

// maxImageBytes caps how much of a response is read into memory.
const maxImageBytes = 32 << 20

// Client calls the text-to-image API. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New returns a Client for the image API rooted at baseURL. When httpc is nil
// a client with a 60s timeout is used.
func New(baseURL, apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = clients.NewHTTPClient(60 * time.Second)
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpc: httpc}
}

// Generate renders prompt into an image and returns the PNG bytes. Exactly
// one HTTP call is made; any failure is terminal for this request.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-image/v1", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, clients.StatusError("imagegen", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("imagegen: read: %w", err)
	}
	if len(data) < minImageBytes {
		return nil, errors.New("imagegen: invalid image data from API")
	}
	return data, nil
}

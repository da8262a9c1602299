// Package media is a client for the media hosting/transformation service.
// Uploads are signed multipart posts that answer with a public secure URL;
// transformations are either applied eagerly at upload time (background
// removal) or encoded into a delivery URL (object removal).
package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quickai/go-quickai-backend/internal/clients"
)

// Client uploads media and builds transformation URLs. Safe for concurrent
// use.
type Client struct {
	baseURL   string // API host, e.g. https://api.cloudinary.com/v1_1
	cloudName string
	apiKey    string
	apiSecret string
	httpc     *http.Client
}

// New returns a Client for the media host. When httpc is nil a client with a
// 60s timeout is used.
func New(baseURL, cloudName, apiKey, apiSecret string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = clients.NewHTTPClient(60 * time.Second)
	}
	return &Client{
		baseURL:   baseURL,
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpc:     httpc,
	}
}

// UploadResult is the subset of the upload response this service consumes.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
}

// Upload stores the image bytes and returns the hosted result. A non-empty
// transformation (e.g. the background-removal effect) is applied eagerly, so
// the returned secure URL already points at the processed asset.
func (c *Client) Upload(ctx context.Context, image []byte, filename, transformation string) (*UploadResult, error) {
	fields := map[string]string{
		"api_key":   c.apiKey,
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
	}
	if transformation != "" {
		fields["transformation"] = transformation
	}
	fields["signature"] = c.sign(fields)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, clients.StatusError("media", resp)
	}

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("media: decode: %w", err)
	}
	return &out, nil
}

// BackgroundRemovalTransformation is the eager transformation string for
// stripping the background at upload time.
const BackgroundRemovalTransformation = "e_background_removal"

// ObjectRemovalURL builds a delivery URL that removes the named object from
// the already-uploaded asset identified by publicID. The object name is
// embedded in a generative-removal path segment.
func (c *Client) ObjectRemovalURL(publicID, object string) string {
	// Delivery host differs from the API host: res.<host>/<cloud>/image/upload/<tx>/<id>
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/e_gen_remove:%s/%s",
		c.cloudName, url.PathEscape(object), publicID)
}

// sign computes the request signature: the SHA-1 hex digest of the sorted,
// ampersand-joined non-credential fields followed by the API secret.
func (c *Client) sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "api_key" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

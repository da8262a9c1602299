// Package client is the Go SDK for the QuickAI API. It provides typed calls
// for every endpoint plus an optimistic creation cache (see cache.go) that
// mirrors how the official dashboard consumes the API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quickai/go-quickai-backend/internal/domain"
)

// Client-side validation limits, matching the server's defaults so obviously
// bad requests fail before any network round trip.
const (
	maxResumeBytes = 5 << 20
)

// Client-side validation errors.
var (
	ErrMissingFile   = errors.New("file is required")
	ErrFileTooLarge  = errors.New("file size exceeds 5MB")
	ErrNotPDF        = errors.New("resume must be a PDF file")
	ErrInvalidObject = errors.New("object name must be a single word")
)

// Error is a failure reported by the API.
//
// Business failures travel on HTTP 200 with success=false; for those
// StatusCode is 200 and Code is empty. Transport failures carry the HTTP
// status and the server's machine-readable code.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%s)", e.Message, e.Code)
	}
	return "api: " + e.Message
}

// Client calls the QuickAI API with a fixed bearer token.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New constructs a Client. baseURL includes the API base path, e.g.
// "https://api.example.com/api". A nil httpc falls back to a 60s-timeout
// default sized for generation calls.
func New(baseURL, token string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   httpc,
	}
}

//
// Generation endpoints
//

// GenerateArticle generates a markdown article. length is the max token
// budget; 0 uses the server default.
func (c *Client) GenerateArticle(ctx context.Context, prompt string, length int) (string, error) {
	var out contentEnvelope
	err := c.postJSON(ctx, "/ai/generate-article", map[string]any{
		"prompt": prompt,
		"length": length,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.content()
}

// GenerateBlogTitle generates blog title suggestions.
func (c *Client) GenerateBlogTitle(ctx context.Context, prompt string) (string, error) {
	var out contentEnvelope
	err := c.postJSON(ctx, "/ai/generate-blog-title", map[string]any{
		"prompt": prompt,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.content()
}

// GenerateImage generates an image and returns its hosted URL. Premium only
// server-side.
func (c *Client) GenerateImage(ctx context.Context, prompt, style string, publish bool) (string, error) {
	var out contentEnvelope
	err := c.postJSON(ctx, "/ai/generate-image", map[string]any{
		"prompt":  prompt,
		"style":   style,
		"publish": publish,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.content()
}

// RemoveImageBackground uploads an image and returns the background-free
// URL.
func (c *Client) RemoveImageBackground(ctx context.Context, image []byte, filename string) (string, error) {
	if len(image) == 0 {
		return "", ErrMissingFile
	}
	var out contentEnvelope
	err := c.postMultipart(ctx, "/ai/remove-image-background",
		fileField{name: "image", filename: filename, data: image}, nil, &out)
	if err != nil {
		return "", err
	}
	return out.content()
}

// RemoveImageObject uploads an image and returns a URL with the named object
// removed. The object name must be a single word; multi-word names are
// rejected before any network call.
func (c *Client) RemoveImageObject(ctx context.Context, image []byte, filename, object string) (string, error) {
	if len(image) == 0 {
		return "", ErrMissingFile
	}
	if len(strings.Fields(strings.TrimSpace(object))) != 1 {
		return "", ErrInvalidObject
	}
	var out contentEnvelope
	err := c.postMultipart(ctx, "/ai/remove-image-object",
		fileField{name: "image", filename: filename, data: image},
		map[string]string{"object": object}, &out)
	if err != nil {
		return "", err
	}
	return out.content()
}

// ResumeReview uploads a PDF resume and returns the generated feedback.
// Non-PDF payloads and files over 5MB are rejected locally.
func (c *Client) ResumeReview(ctx context.Context, resume []byte, filename string) (string, error) {
	if len(resume) == 0 {
		return "", ErrMissingFile
	}
	if !bytes.HasPrefix(resume, []byte("%PDF-")) {
		return "", ErrNotPDF
	}
	if len(resume) > maxResumeBytes {
		return "", ErrFileTooLarge
	}
	var out contentEnvelope
	err := c.postMultipart(ctx, "/ai/resume-review",
		fileField{name: "resume", filename: filename, data: resume}, nil, &out)
	if err != nil {
		return "", err
	}
	return out.content()
}

//
// Creation endpoints
//

// GetUserCreations returns the caller's creations, newest first.
func (c *Client) GetUserCreations(ctx context.Context) ([]domain.Creation, error) {
	var out creationsEnvelope
	if err := c.getJSON(ctx, "/user/get-user-creations", &out); err != nil {
		return nil, err
	}
	return out.creations()
}

// GetPublishedCreations returns the community gallery, newest first. A
// limit of 0 returns everything.
func (c *Client) GetPublishedCreations(ctx context.Context, limit int) ([]domain.Creation, error) {
	path := "/user/get-published-creations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out creationsEnvelope
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.creations()
}

// ToggleLikeCreation toggles the caller's like on a creation and returns the
// outcome message ("Like added" or "Like removed").
func (c *Client) ToggleLikeCreation(ctx context.Context, id string) (string, error) {
	var out messageEnvelope
	err := c.postJSON(ctx, "/user/toggle-like-creation", map[string]any{"id": id}, &out)
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", &Error{StatusCode: http.StatusOK, Message: out.Message}
	}
	return out.Message, nil
}

// DeleteCreation permanently deletes a creation owned by the caller.
func (c *Client) DeleteCreation(ctx context.Context, id string) error {
	var out messageEnvelope
	if err := c.postJSON(ctx, "/user/delete-creation", map[string]any{"id": id}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &Error{StatusCode: http.StatusOK, Message: out.Message}
	}
	return nil
}

//
// Envelopes
//

type contentEnvelope struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Message string `json:"message"`
}

func (e *contentEnvelope) content() (string, error) {
	if !e.Success {
		return "", &Error{StatusCode: http.StatusOK, Message: e.Message}
	}
	return e.Content, nil
}

type messageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type creationsEnvelope struct {
	Success   bool              `json:"success"`
	Creations []domain.Creation `json:"creations"`
	Message   string            `json:"message"`
}

func (e *creationsEnvelope) creations() ([]domain.Creation, error) {
	if !e.Success {
		return nil, &Error{StatusCode: http.StatusOK, Message: e.Message}
	}
	return e.Creations, nil
}

//
// Transport plumbing
//

type fileField struct {
	name     string
	filename string
	data     []byte
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) postMultipart(ctx context.Context, path string, file fileField, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(file.name, file.filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(file.data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// do sends the request with the bearer token attached and decodes the
// response. Non-2xx statuses decode the transport error envelope.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return &Error{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
		}
		return &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

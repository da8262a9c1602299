package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUpload_SignedMultipartRoundTrip(t *testing.T) {
	image := bytes.Repeat([]byte{0x42}, 512)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo-cloud/image/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("api_key"); got != "key123" {
			t.Errorf("api_key field = %q", got)
		}
		ts := r.FormValue("timestamp")
		if ts == "" {
			t.Error("timestamp field missing")
		}
		if got := r.FormValue("transformation"); got != BackgroundRemovalTransformation {
			t.Errorf("transformation field = %q", got)
		}

		// Signature covers the sorted non-credential fields plus the secret.
		payload := "timestamp=" + ts + "&transformation=" + BackgroundRemovalTransformation + "secret456"
		sum := sha1.Sum([]byte(payload))
		if got := r.FormValue("signature"); got != hex.EncodeToString(sum[:]) {
			t.Errorf("signature mismatch: %q", got)
		}

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part: %v", err)
		} else {
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(f)
			_ = f.Close()
			if !bytes.Equal(buf.Bytes(), image) {
				t.Errorf("file bytes mismatch: %d bytes", buf.Len())
			}
		}

		_ = json.NewEncoder(w).Encode(UploadResult{
			PublicID:  "quickai/abc123",
			SecureURL: "https://cdn.example/quickai/abc123.png",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "demo-cloud", "key123", "secret456", srv.Client())
	out, err := c.Upload(context.Background(), image, "upload.png", BackgroundRemovalTransformation)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if out.PublicID != "quickai/abc123" || out.SecureURL != "https://cdn.example/quickai/abc123.png" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUpload_NoTransformationOmitsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, ok := r.MultipartForm.Value["transformation"]; ok {
			t.Error("transformation field should be omitted when empty")
		}
		_ = json.NewEncoder(w).Encode(UploadResult{PublicID: "p", SecureURL: "https://cdn.example/p"})
	}))
	defer srv.Close()

	c := New(srv.URL, "demo-cloud", "k", "s", srv.Client())
	if _, err := c.Upload(context.Background(), []byte("img"), "upload.png", ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func TestUpload_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "demo-cloud", "k", "s", srv.Client())
	_, err := c.Upload(context.Background(), []byte("img"), "upload.png", "")
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if !strings.Contains(err.Error(), "media:") || !strings.Contains(err.Error(), "invalid signature") {
		t.Fatalf("error should name the provider and keep the body: %v", err)
	}
}

func TestObjectRemovalURL_EscapesObject(t *testing.T) {
	c := New("https://api.example/v1_1", "demo-cloud", "k", "s", nil)

	got := c.ObjectRemovalURL("quickai/abc123", "coffee cup")
	want := "https://res.cloudinary.com/demo-cloud/image/upload/e_gen_remove:coffee%20cup/quickai/abc123"
	if got != want {
		t.Fatalf("ObjectRemovalURL = %q, want %q", got, want)
	}
}

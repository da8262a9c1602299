package imagegen

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate_SendsPromptAndReturnsBytes(t *testing.T) {
	want := bytes.Repeat([]byte{0x89}, 4096) // big enough to pass the size guard

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-image/v1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("prompt"); got != "a red fox" {
			t.Errorf("prompt field = %q", got)
		}
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", srv.Client())
	got, err := c.Generate(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload mismatch: got %d bytes", len(got))
	}
}

func TestGenerate_TinyResponseIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with an error-page sized body.
		_, _ = w.Write([]byte("oops"))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", srv.Client())
	_, err := c.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "invalid image data") {
		t.Fatalf("expected invalid-image error, got %v", err)
	}
}

func TestGenerate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", srv.Client())
	_, err := c.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if !strings.Contains(err.Error(), "imagegen:") || !strings.Contains(err.Error(), "bad prompt") {
		t.Fatalf("error should name the provider and keep the body: %v", err)
	}
}

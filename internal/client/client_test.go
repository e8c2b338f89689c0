package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filegate/internal/config"
	"filegate/internal/server/file"
	"filegate/pkg/memory"
)

func newGateway(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/file/", http.StripPrefix("/file", file.Handler(file.NewGateway(memory.New()), file.Options{})))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(config.ClientConfig{BaseURL: srv.URL + "/"})
	c.HTTP = srv.Client()
	return c
}

func TestPushPullRemove(t *testing.T) {
	ctx := context.Background()
	c := newGateway(t)

	p := filepath.Join(t.TempDir(), "report.pdf")
	content := []byte("%PDF-1.4 fakepdf\n")
	if err := os.WriteFile(p, content, 0644); err != nil {
		t.Fatal(err)
	}

	up, err := c.Push(ctx, p, "")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if up.Key != "report.pdf" {
		t.Fatalf("key: got %q", up.Key)
	}

	var buf bytes.Buffer
	ct, err := c.Pull(ctx, "report.pdf", &buf)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if ct != "application/pdf" {
		t.Fatalf("content type: got %q", ct)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Fatalf("content mismatch: %q", buf.Bytes())
	}

	if _, err := c.Remove(ctx, "report.pdf"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err = c.Pull(ctx, "report.pdf", &bytes.Buffer{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Message != "File not found" {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestUploadCustomKeyWithSlash(t *testing.T) {
	ctx := context.Background()
	c := newGateway(t)

	if _, err := c.Upload(ctx, "local.txt", "docs/readme.txt", "text/plain", strings.NewReader("hi")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	var buf bytes.Buffer
	if _, err := c.Pull(ctx, "docs/readme.txt", &buf); err != nil {
		t.Fatalf("pull escaped key: %v", err)
	}
	if buf.String() != "hi" {
		t.Fatalf("body: %q", buf.String())
	}
}

func TestRemoveMissingIsServerError(t *testing.T) {
	c := newGateway(t)

	_, err := c.Remove(context.Background(), "missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
}

func TestTokenIsSent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(config.ClientConfig{BaseURL: srv.URL, Token: "abc"})
	_, err := c.Remove(context.Background(), "k")
	if got != "Bearer abc" {
		t.Fatalf("authorization header: %q", got)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "unauthorized" {
		t.Fatalf("expected unauthorized status error, got %v", err)
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filegate/internal/config"
	"filegate/pkg/api"
	"filegate/pkg/memory"

	"golang.org/x/crypto/bcrypt"
)

func uploadRequest(t *testing.T, url, key, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", key)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func send(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func newServer(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	h, err := NewHandler(memory.New(), cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestPing(t *testing.T) {
	srv := newServer(t, config.ServerConfig{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ping", nil)
	resp := send(t, req)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "pong" {
		t.Fatalf("ping: %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newServer(t, config.ServerConfig{})

	const id = "6f1c1f0e-8a4d-4c55-9c39-6c1f2b7f3a10"
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ping", nil)
	req.Header.Set("X-Request-ID", id)
	if got := send(t, req).Header.Get("X-Request-ID"); got != id {
		t.Fatalf("request id: got %q want %q", got, id)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/ping", nil)
	req.Header.Set("X-Request-ID", "not a uuid")
	if got := send(t, req).Header.Get("X-Request-ID"); got == "not a uuid" {
		t.Fatal("malformed request id should be replaced")
	}
}

func TestBasePath(t *testing.T) {
	srv := newServer(t, config.ServerConfig{BasePath: "/api"})

	resp := send(t, uploadRequest(t, srv.URL+"/api/file/upload", "a.txt", "abc"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("prefixed upload: %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/file/a.txt", nil)
	if resp := send(t, req); resp.StatusCode != http.StatusOK {
		t.Fatalf("prefixed download: %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/file/a.txt", nil)
	if resp := send(t, req); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unprefixed route should not exist, got %d", resp.StatusCode)
	}
}

func TestTokenGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, config.ServerConfig{TokenHashes: []string{string(hash)}})

	for _, auth := range []string{"", "Bearer wrong", "s3cret", "Bearer "} {
		req := uploadRequest(t, srv.URL+"/file/upload", "a.txt", "abc")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp := send(t, req)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("auth %q: got %d want 401", auth, resp.StatusCode)
		}
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error != "unauthorized" {
			t.Fatalf("auth %q: body %+v %v", auth, e, err)
		}
	}

	req := uploadRequest(t, srv.URL+"/file/upload", "a.txt", "abc")
	req.Header.Set("Authorization", "Bearer s3cret")
	if resp := send(t, req); resp.StatusCode != http.StatusCreated {
		t.Fatalf("valid token: got %d", resp.StatusCode)
	}

	// /ping is never gated.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/ping", nil)
	if resp := send(t, req); resp.StatusCode != http.StatusOK {
		t.Fatalf("ping behind gate: %d", resp.StatusCode)
	}
}

func TestTokenGateRejectsBadHash(t *testing.T) {
	if _, err := NewHandler(memory.New(), config.ServerConfig{TokenHashes: []string{"plaintext"}}); err == nil {
		t.Fatal("expected invalid hash to be rejected")
	}
}

func TestRecoverer(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), requestLog, recoverer)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"internal server error"`) {
		t.Fatalf("body: %q", rec.Body.String())
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	store, err := openBackend(ctx, config.BackendConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	store.Close(ctx)

	src := "file:" + filepath.Join(t.TempDir(), "objects.db")
	store, err = openBackend(ctx, config.BackendConfig{Driver: "sqlite", Source: src, Table: "objects"})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("v"), 1, "text/plain"); err != nil {
		t.Fatalf("sqlite put: %v", err)
	}
	store.Close(ctx)

	if _, err := openBackend(ctx, config.BackendConfig{Driver: "ftp"}); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := openBackend(ctx, config.BackendConfig{Driver: "r2", Bucket: "b"}); err == nil {
		t.Fatal("expected r2 without account or endpoint to fail")
	}
	if _, err := openBackend(ctx, config.BackendConfig{Driver: "s3"}); err == nil {
		t.Fatal("expected s3 without bucket to fail")
	}
	if _, err := openBackend(ctx, config.BackendConfig{Driver: "minio", Bucket: "b"}); err == nil {
		t.Fatal("expected minio without endpoint to fail")
	}
}

func TestMinioEndpoint(t *testing.T) {
	cases := []struct {
		in      string
		ssl     bool
		wantEP  string
		wantSSL bool
	}{
		{"localhost:9000", false, "localhost:9000", false},
		{"play.min.io", true, "play.min.io", true},
		{"http://minio:9000", true, "minio:9000", false},
		{"https://minio.example.com", false, "minio.example.com", true},
	}
	for _, tc := range cases {
		ep, ssl := minioEndpoint(tc.in, tc.ssl)
		if ep != tc.wantEP || ssl != tc.wantSSL {
			t.Errorf("%q: got (%q, %v) want (%q, %v)", tc.in, ep, ssl, tc.wantEP, tc.wantSSL)
		}
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.ServerConfig{ShutdownTimeout: 5 * time.Second}
	h, err := NewHandler(memory.New(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, lis, h, cfg) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

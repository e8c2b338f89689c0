package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"filegate/pkg/object"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "objects.db")
	src := fmt.Sprintf("file:%s?cache=shared&mode=rwc", dbPath)

	st := &Storage{}
	if err := st.Init(ctx, Config{Source: src}); err != nil {
		t.Fatalf("init storage: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })
	return st
}

func TestSQLiteObjectStorage(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	key := "unit-test-key"
	content := []byte("abcdefghijklmnopqrstuvwxyz")
	contentType := "text/plain"

	putObj, err := st.Put(ctx, key, bytes.NewReader(content), int64(len(content)), contentType)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if putObj.Key != key {
		t.Fatalf("Put: expected key %s got %s", key, putObj.Key)
	}
	if putObj.Size != int64(len(content)) {
		t.Fatalf("Put: expected size %d got %d", len(content), putObj.Size)
	}
	if putObj.ContentType != contentType {
		t.Fatalf("Put: expected content type %s got %s", contentType, putObj.ContentType)
	}

	statObj, err := st.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if statObj.Size != putObj.Size || statObj.ETag != putObj.ETag {
		t.Fatalf("Stat: metadata mismatch, got size %d etag %s", statObj.Size, statObj.ETag)
	}

	gotObj, rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Get read: %v", err)
	}
	if string(body) != string(content) {
		t.Fatalf("Get: content mismatch, got %q want %q", string(body), string(content))
	}
	if gotObj.ContentType != contentType {
		t.Fatalf("Get: expected content type %s got %s", contentType, gotObj.ContentType)
	}

	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Stat(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Stat after delete: expected ErrNotFound got %v", err)
	}
	if err := st.Delete(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Delete missing: expected ErrNotFound got %v", err)
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	key := "overwrite-key"
	if _, err := st.Put(ctx, key, strings.NewReader("first"), -1, "text/plain"); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := st.Put(ctx, key, strings.NewReader("second"), -1, "application/octet-stream"); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	obj, rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "second" {
		t.Fatalf("Get: expected %q got %q", "second", string(body))
	}
	if obj.ContentType != "application/octet-stream" {
		t.Fatalf("Get: expected overwritten content type, got %s", obj.ContentType)
	}
}

func TestSQLiteInitValidation(t *testing.T) {
	ctx := context.Background()

	if err := (&Storage{}).Init(ctx, "nope"); err == nil || !strings.Contains(err.Error(), "unexpected config type") {
		t.Fatalf("expected config type error, got %v", err)
	}
	if err := (&Storage{}).Init(ctx, Config{}); err == nil || !strings.Contains(err.Error(), "Source is required") {
		t.Fatalf("expected missing source error, got %v", err)
	}
	if err := (&Storage{}).Init(ctx, &Config{Source: "file::memory:", Table: "bad;table"}); err == nil || !strings.Contains(err.Error(), "invalid table name") {
		t.Fatalf("expected table name error, got %v", err)
	}
	if _, _, err := (&Storage{}).Get(ctx, "k"); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

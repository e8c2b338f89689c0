package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"filegate/pkg/object"
)

func TestMemoryObjectStorage(t *testing.T) {
	ctx := context.Background()
	st := New()

	key := "unit-test-key"
	content := []byte("abcdefghijklmnopqrstuvwxyz")

	putObj, err := st.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "text/plain")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if putObj.Key != key || putObj.Size != int64(len(content)) {
		t.Fatalf("Put: unexpected metadata %+v", putObj)
	}

	gotObj, rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("Get read: %v", err)
	}
	if !bytes.Equal(body, content) {
		t.Fatalf("Get: content mismatch, got %q want %q", body, content)
	}
	if gotObj.ContentType != "text/plain" {
		t.Fatalf("Get: expected content type text/plain got %s", gotObj.ContentType)
	}

	if _, err := st.Put(ctx, key, bytes.NewReader([]byte("second")), -1, "application/json"); err != nil {
		t.Fatalf("overwrite Put: %v", err)
	}
	statObj, err := st.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if statObj.Size != int64(len("second")) || statObj.ContentType != "application/json" {
		t.Fatalf("Stat after overwrite: got %+v", statObj)
	}
	if st.Len() != 1 {
		t.Fatalf("expected one object, got %d", st.Len())
	}

	if err := st.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := st.Get(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Get after delete: expected ErrNotFound got %v", err)
	}
	if err := st.Delete(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound got %v", err)
	}
}

func TestMemoryPutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := New()
	if _, err := st.Put(ctx, "k", bytes.NewReader([]byte("x")), 1, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put: expected context.Canceled got %v", err)
	}
	if st.Len() != 0 {
		t.Fatal("cancelled Put must not store anything")
	}
}

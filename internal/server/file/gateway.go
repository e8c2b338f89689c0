// Package file is the object gateway: it turns upload, download and delete
// requests into object store calls and store outcomes into client responses.
package file

import (
	"context"
	"errors"
	"io"

	"filegate/pkg/object"
)

const defaultContentType = "application/octet-stream"

// Gateway is stateless apart from the store handle it was built with and is
// safe for concurrent use.
type Gateway struct {
	store object.ObjectStorage
}

// NewGateway wraps an initialized store.
func NewGateway(store object.ObjectStorage) *Gateway {
	return &Gateway{store: store}
}

// Upload is one parsed file part.
type Upload struct {
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64 // -1 when unknown
}

// Upload stores u.Body under u.Key, replacing any existing object.
// It never contacts the store for an invalid request.
func (g *Gateway) Upload(ctx context.Context, u Upload) (string, error) {
	if u.Body == nil {
		return "", clientError(OpUpload, u.Key, msgNoFile)
	}
	if u.Key == "" {
		return "", clientError(OpUpload, u.Key, msgKeyRequired)
	}
	if u.ContentType == "" {
		u.ContentType = defaultContentType
	}

	if _, err := g.store.Put(ctx, u.Key, u.Body, u.Size, u.ContentType); err != nil {
		return "", classify(OpUpload, u.Key, err)
	}
	return u.Key, nil
}

// Download returns the stored metadata and a body the caller must close.
func (g *Gateway) Download(ctx context.Context, key string) (object.Object, io.ReadCloser, error) {
	if key == "" {
		return object.Object{}, nil, classify(OpDownload, key, object.ErrNotFound)
	}
	obj, body, err := g.store.Get(ctx, key)
	if err != nil {
		return object.Object{}, nil, classify(OpDownload, key, err)
	}
	if body == nil {
		return object.Object{}, nil, classify(OpDownload, key, errors.New("store returned no body"))
	}
	if obj.ContentType == "" {
		obj.ContentType = defaultContentType
	}
	return obj, body, nil
}

// Delete removes key from the store.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	if key == "" {
		return clientError(OpDelete, key, msgKeyRequired)
	}
	if err := g.store.Delete(ctx, key); err != nil {
		return classify(OpDelete, key, err)
	}
	return nil
}

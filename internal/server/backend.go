package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"filegate/internal/config"
	"filegate/pkg/logger"
	"filegate/pkg/memory"
	"filegate/pkg/miniostore"
	"filegate/pkg/object"
	"filegate/pkg/s3store"
	"filegate/pkg/sqlite"
)

// openBackend builds and initializes the object store named by cfg.Driver.
func openBackend(ctx context.Context, cfg config.BackendConfig) (object.ObjectStorage, error) {
	var (
		backend object.ObjectStorage
		param   any
	)
	switch cfg.Driver {
	case "", "sqlite", "libsql":
		driver := cfg.Driver
		if driver == "" {
			driver = "sqlite"
		}
		backend = &sqlite.Storage{}
		param = sqlite.Config{Source: cfg.Source, Driver: driver, Table: cfg.Table}
	case "s3", "r2":
		accountID := ""
		if cfg.Driver == "r2" {
			if cfg.AccountID == "" && cfg.Endpoint == "" {
				return nil, fmt.Errorf("r2 backend needs CF_ACCOUNT_ID or S3_ENDPOINT")
			}
			accountID = cfg.AccountID
		}
		backend = &s3store.Storage{}
		param = s3store.Config{
			AccountID:        accountID,
			AccessKey:        cfg.AccessKey,
			SecretAccessKey:  cfg.SecretKey,
			Bucket:           cfg.Bucket,
			Region:           cfg.Region,
			EndpointOverride: cfg.Endpoint,
			PathStyle:        cfg.PathStyle,
		}
	case "minio":
		endpoint, useSSL := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
		backend = &miniostore.Storage{}
		param = miniostore.Config{
			Endpoint:     endpoint,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			UseSSL:       useSSL,
			PathStyle:    cfg.PathStyle,
			CreateBucket: cfg.CreateBucket,
		}
	case "memory":
		backend = memory.New()
	default:
		return nil, fmt.Errorf("unknown backend driver: %s", cfg.Driver)
	}

	if err := backend.Init(ctx, param); err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.Driver, err)
	}
	logger.Log.Info().Str("driver", cfg.Driver).Msg("object storage backend ready")
	return backend, nil
}

// minioEndpoint accepts either host:port or a URL; a URL's scheme decides TLS.
func minioEndpoint(endpoint string, useSSL bool) (string, bool) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, useSSL
	}
	return u.Host, u.Scheme == "https"
}

// Package s3store implements object.ObjectStorage for AWS S3, Cloudflare R2
// and other S3-compatible services.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"filegate/pkg/object"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// DefaultMultipartThreshold is the payload size above which Put hands the
// body to the transfer manager instead of a single PutObject.
const DefaultMultipartThreshold = 100 << 20 // 100 MiB

// Config holds connection details. AccountID selects Cloudflare R2.
type Config struct {
	AccountID        string
	AccessKey        string
	SecretAccessKey  string
	Bucket           string
	Region           string
	EndpointOverride string
	PathStyle        bool
	// MultipartThreshold defaults to DefaultMultipartThreshold.
	MultipartThreshold int64
}

// API is the subset of *s3.Client used by Storage.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type uploader interface {
	UploadObject(ctx context.Context, input *transfermanager.UploadObjectInput, optFns ...func(*transfermanager.Options)) (*transfermanager.UploadObjectOutput, error)
}

// Storage implements object.ObjectStorage on top of the S3 API.
type Storage struct {
	api                API
	uploader           uploader
	bucket             string
	multipartThreshold int64
}

// Init bootstraps the S3 client. Static credentials are used when AccessKey
// is set, otherwise the default AWS credential chain.
func (s *Storage) Init(ctx context.Context, param any) error {
	cfg, ok := param.(Config)
	if !ok {
		if p, ok := param.(*Config); ok && p != nil {
			cfg = *p
		} else {
			return fmt.Errorf("s3: unexpected config type %T", param)
		}
	}

	endpoint, region, err := resolveEndpoint(cfg)
	if err != nil {
		return err
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKey == "" || cfg.SecretAccessKey == "" {
			return errors.New("s3: AccessKey and SecretAccessKey must be set together")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	s.api = client
	s.uploader = transfermanager.New(client)
	s.bucket = cfg.Bucket
	s.multipartThreshold = cfg.MultipartThreshold
	return nil
}

// resolveEndpoint validates cfg and returns the endpoint override (empty for
// AWS itself) and the signing region.
func resolveEndpoint(cfg Config) (string, string, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return "", "", errors.New("s3: bucket is required")
	}

	endpoint := strings.TrimSpace(cfg.EndpointOverride)
	region := strings.TrimSpace(cfg.Region)

	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}
	if region == "" {
		if cfg.AccountID != "" {
			region = "auto"
		} else {
			region = "us-east-1"
		}
	}

	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" {
			return "", "", fmt.Errorf("s3: endpoint %q must be a valid http(s) URL", endpoint)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", "", fmt.Errorf("s3: endpoint %q must use http or https", endpoint)
		}
	}
	return endpoint, region, nil
}

// Close cleans up resources; no-op for S3.
func (s *Storage) Close(_ context.Context) error {
	return nil
}

// Put uploads the full object body, switching to a multipart transfer when
// size exceeds the threshold.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}

	threshold := s.multipartThreshold
	if threshold <= 0 {
		threshold = DefaultMultipartThreshold
	}

	obj := object.Object{Key: key, Size: size, ContentType: contentType}

	if size > threshold && s.uploader != nil {
		input := &transfermanager.UploadObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          r,
			ContentLength: aws.Int64(size),
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}
		if _, err := s.uploader.UploadObject(ctx, input); err != nil {
			return object.Object{}, fmt.Errorf("s3: multipart put %s: %w", key, mapError(err))
		}
		return obj, nil
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	resp, err := s.api.PutObject(ctx, input)
	if err != nil {
		return object.Object{}, fmt.Errorf("s3: put %s: %w", key, mapError(err))
	}
	obj.ETag = aws.ToString(resp.ETag)
	return obj, nil
}

// Get fetches metadata plus a streaming reader.
func (s *Storage) Get(ctx context.Context, key string) (object.Object, io.ReadCloser, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, nil, err
	}

	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return object.Object{}, nil, mapError(err)
	}

	return object.Object{
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         aws.ToString(resp.ETag),
		ContentType:  aws.ToString(resp.ContentType),
		LastModified: aws.ToTime(resp.LastModified),
	}, resp.Body, nil
}

// Stat returns metadata only.
func (s *Storage) Stat(ctx context.Context, key string) (object.Object, error) {
	if err := s.ensureClient(); err != nil {
		return object.Object{}, err
	}

	resp, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return object.Object{}, mapError(err)
	}

	return object.Object{
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         aws.ToString(resp.ETag),
		ContentType:  aws.ToString(resp.ContentType),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

// Delete removes an object. S3 itself reports success for absent keys.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.ensureClient(); err != nil {
		return err
	}

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", key, mapError(err))
	}
	return nil
}

func (s *Storage) ensureClient() error {
	if s.api == nil {
		return errors.New("s3: client not initialized")
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return object.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch strings.ToLower(apiErr.ErrorCode()) {
		case "nosuchkey", "notfound", "404":
			return object.ErrNotFound
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return object.ErrNotFound
	}

	return err
}

var _ object.ObjectStorage = (*Storage)(nil)

// Package gcp reads ingestion sources out of Cloud Storage buckets.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/winegraph/internal/platform/logger"
)

// ErrObjectNotFound is returned by Open for a missing bucket or object.
var ErrObjectNotFound = errors.New("gcp: object not found")

type Config struct {
	// EmulatorHost points the client at a fake-gcs-server style emulator
	// (for example http://localhost:4443). Empty uses real GCS.
	EmulatorHost string `yaml:"emulator_host"`
	Credentials  string `yaml:"credentials"`
}

// ObjectReader opens objects for streaming reads.
type ObjectReader interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Close() error
}

type objectReader struct {
	log    *logger.Logger
	client *storage.Client
}

func NewObjectReader(ctx context.Context, log *logger.Logger, cfg Config) (ObjectReader, error) {
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	serviceLog := log.With("service", "ObjectReader")
	serviceLog.Info("object storage initialized", "emulator_host", cfg.EmulatorHost)
	return &objectReader{log: serviceLog, client: client}, nil
}

func newStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	if host == "" {
		opts := ClientOptions(cfg.Credentials)
		opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
		return storage.NewClient(ctx, opts...)
	}
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid emulator host %q; expected absolute URL like http://localhost:4443", cfg.EmulatorHost)
	}
	// The storage client reads the emulator host from the environment for its
	// XML-API paths.
	_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
	return storage.NewClient(ctx,
		option.WithoutAuthentication(),
		option.WithEndpoint(host+"/storage/v1/"),
	)
}

func (r *objectReader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	rc, err := r.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	r.log.Debug("object opened", "bucket", bucket, "key", key, "size", rc.Attrs.Size)
	return rc, nil
}

func (r *objectReader) Close() error {
	return r.client.Close()
}

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("gs uri needs bucket and object: %q", uri)
	}
	return bucket, key, nil
}

// Package publish uploads exported runtime images to S3-compatible object
// storage.
//
// Objects are keyed by architecture profile and engine version:
//
//	<prefix>/<arch>/<version>/image.tar
//
// Publishing is optional. A [Config] without an endpoint is disabled and
// [New] returns a nil publisher.
package publish

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cruciblehq/fishbowl/internal/fault"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrInvalidConfig = errors.New("invalid publish config")
	ErrPublish       = errors.New("publish failed")
)

// Content type of an OCI image layout archive.
const archiveContentType = "application/x-tar"

// Object storage settings.
type Config struct {
	Endpoint  string `yaml:"endpoint"`   // host:port, without a scheme. Empty disables publishing.
	Bucket    string `yaml:"bucket"`     // Created when missing.
	AccessKey string `yaml:"access_key"` // Static credentials.
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"` // Leading key segment, e.g. "engines".
}

// Reports whether publishing is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Checks an enabled config.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if strings.Contains(c.Endpoint, "://") {
		return fault.Wrapf(ErrInvalidConfig, "endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fault.Wrapf(ErrInvalidConfig, "bucket is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return fault.Wrapf(ErrInvalidConfig, "access key and secret key are required")
	}
	return nil
}

// Subset of the minio client used for publishing.
type store interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploads image archives to a bucket.
type Publisher struct {
	store  store
	config Config
}

// A published archive.
type Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag,omitempty"`
}

// Creates a publisher for cfg.
//
// Returns nil without error when publishing is disabled.
func New(cfg Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fault.Wrap(ErrInvalidConfig, err)
	}

	return &Publisher{store: client, config: cfg}, nil
}

// An exported image to upload.
type Artifact struct {
	Path     string // Local archive.
	Arch     string // Architecture profile the engine was built for.
	Version  string // Engine version; empty uploads as "unversioned".
	Platform string // Target platform; set when a run produced several archives.
}

// Uploads an archive under the key for its arch, version, and platform.
func (p *Publisher) Publish(ctx context.Context, a Artifact) (*Object, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return nil, fault.Wrap(ErrPublish, err)
	}

	key := ObjectKey(p.config.Prefix, a.Arch, a.Version, a.Platform, filepath.Base(a.Path))

	meta := map[string]string{
		"arch":    a.Arch,
		"version": a.Version,
	}
	if a.Platform != "" {
		meta["platform"] = a.Platform
	}

	info, err := p.store.FPutObject(ctx, p.config.Bucket, key, a.Path, minio.PutObjectOptions{
		ContentType:  archiveContentType,
		UserMetadata: meta,
	})
	if err != nil {
		return nil, fault.Wrapf(ErrPublish, "upload %s: %w", key, err)
	}

	slog.Info("image published", "bucket", p.config.Bucket, "key", key, "size", info.Size)
	return &Object{Bucket: p.config.Bucket, Key: key, Size: info.Size, ETag: info.ETag}, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.config.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	slog.Debug("creating bucket", "bucket", p.config.Bucket)
	return p.store.MakeBucket(ctx, p.config.Bucket, minio.MakeBucketOptions{Region: p.config.Region})
}

// Returns the object key for an archive:
// <prefix>/<arch>/<version>/[<os>-<arch>/]<filename>. Empty segments are
// omitted and an empty version becomes "unversioned".
func ObjectKey(prefix, arch, version, platform, filename string) string {
	if version == "" {
		version = "unversioned"
	}
	platform = strings.ReplaceAll(platform, "/", "-")

	segments := []string{strings.Trim(prefix, "/"), arch, version, platform, filename}
	kept := segments[:0]
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return path.Join(kept...)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

package docconv

import (
	"context"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	pkgerrors "github.com/pkg/errors"
)

type S3Opts func(c *s3Config)

type s3Config struct {
	endpoint        string
	accessKey       string
	secretAccessKey string
	useSSL          bool
	maxSize         int64
}

// S3Fetcher reads s3://bucket/key objects from an S3 compatible store.
type S3Fetcher struct {
	cfg    *s3Config
	client *minio.Client
}

func NewS3Fetcher(opts ...S3Opts) (*S3Fetcher, error) {
	cfg := &s3Config{maxSize: defaultMaxSize}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.endpoint == "" {
		return nil, pkgerrors.New("s3 endpoint is required")
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create s3 client")
	}

	return &S3Fetcher{cfg: cfg, client: client}, nil
}

func (s *S3Fetcher) Supports(location string) bool {
	_, _, err := parseS3Location(location)
	return err == nil
}

func (s *S3Fetcher) Fetch(ctx context.Context, location string) (*Source, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get object %s", location)
	}
	defer object.Close()

	objInfo, err := object.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, NewErrSourceNotFound(location)
		}
		return nil, pkgerrors.Wrapf(err, "failed to stat object %s", location)
	}
	if objInfo.Size > s.cfg.maxSize {
		return nil, NewErrSourceTooLarge(location, s.cfg.maxSize)
	}

	data, err := readLimited(object, location, s.cfg.maxSize)
	if err != nil {
		return nil, err
	}

	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}

	return &Source{
		Location:    location,
		Name:        name,
		ContentType: objInfo.ContentType,
		Data:        data,
	}, nil
}

func (s *S3Fetcher) Type() string {
	return "s3"
}

func parseS3Location(location string) (bucket string, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", pkgerrors.Wrap(err, "failed to parse s3 location")
	}
	if strings.ToLower(u.Scheme) != "s3" || u.Host == "" {
		return "", "", pkgerrors.Errorf("%q is not an s3 location", location)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", pkgerrors.Errorf("%q has no object key", location)
	}
	return u.Host, key, nil
}

func WithS3Endpoint(endpoint string) S3Opts {
	return func(c *s3Config) {
		c.endpoint = endpoint
	}
}

func WithS3AccessKey(accessKey string) S3Opts {
	return func(c *s3Config) {
		c.accessKey = accessKey
	}
}

func WithS3SecretKey(secretKey string) S3Opts {
	return func(c *s3Config) {
		c.secretAccessKey = secretKey
	}
}

func WithS3SSL(useSSL bool) S3Opts {
	return func(c *s3Config) {
		c.useSSL = useSSL
	}
}

func WithS3MaxSize(maxSize int64) S3Opts {
	return func(c *s3Config) {
		if maxSize > 0 {
			c.maxSize = maxSize
		}
	}
}

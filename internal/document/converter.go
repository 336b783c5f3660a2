package document

import (
	"net/http"

	"github.com/kubev2v/doc-processor/internal/config"
	"github.com/kubev2v/doc-processor/pkg/docconv"
)

// NewConverter builds the document converter described by cfg. The S3
// fetcher is only registered when an endpoint is configured.
func NewConverter(cfg *config.Config) (*docconv.Converter, error) {
	opts := []docconv.Option{
		docconv.WithMaxFileSize(cfg.Converter.MaxFileSize),
		docconv.WithChunkOptions(docconv.ChunkOptions{
			MaxTokens: cfg.Converter.MaxChunkTokens,
			MinTokens: cfg.Converter.MinChunkTokens,
		}),
	}

	if cfg.Converter.HTTPTimeout > 0 {
		opts = append(opts, docconv.WithHTTPClient(&http.Client{Timeout: cfg.Converter.HTTPTimeout}))
	}

	if cfg.S3.Endpoint != "" {
		s3, err := docconv.NewS3Fetcher(
			docconv.WithS3Endpoint(cfg.S3.Endpoint),
			docconv.WithS3AccessKey(cfg.S3.AccessKey),
			docconv.WithS3SecretKey(cfg.S3.SecretKey),
			docconv.WithS3SSL(cfg.S3.UseSSL),
			docconv.WithS3MaxSize(cfg.Converter.MaxFileSize),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, docconv.WithFetcher(s3))
	}

	return docconv.New(opts...), nil
}

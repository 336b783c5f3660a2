package docconv

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultMaxSize int64 = 100 * 1024 * 1024

// Fetcher loads the raw bytes of a document from some origin.
type Fetcher interface {
	Supports(location string) bool
	Fetch(ctx context.Context, location string) (*Source, error)
	Type() string
}

// IsRemote reports whether location names a URL rather than a local path.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "s3":
		return true
	default:
		return false
	}
}

// FileFetcher reads documents from the local filesystem.
type FileFetcher struct {
	maxSize int64
}

func NewFileFetcher(maxSize int64) *FileFetcher {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &FileFetcher{maxSize: maxSize}
}

func (f *FileFetcher) Supports(location string) bool {
	return !IsRemote(location)
}

func (f *FileFetcher) Fetch(_ context.Context, location string) (*Source, error) {
	p := strings.TrimPrefix(location, "file://")

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewErrSourceNotFound(location)
		}
		return nil, pkgerrors.Wrapf(err, "stat %s", p)
	}
	if info.IsDir() {
		return nil, pkgerrors.Errorf("%s is a directory", p)
	}
	if info.Size() > f.maxSize {
		return nil, NewErrSourceTooLarge(location, f.maxSize)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read %s", p)
	}

	return &Source{
		Location: location,
		Name:     filepath.Base(p),
		Data:     data,
	}, nil
}

func (f *FileFetcher) Type() string {
	return "file"
}

// readLimited reads at most max bytes from r and fails when there is more.
func readLimited(r io.Reader, location string, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, NewErrSourceTooLarge(location, max)
	}
	return data, nil
}

// nameFromURL returns the last path element of a URL, used for detection.
func nameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// fetch walks fetchers in order and uses the first that supports location.
func fetch(ctx context.Context, fetchers []Fetcher, location string) (*Source, error) {
	for _, f := range fetchers {
		if !f.Supports(location) {
			continue
		}
		zap.S().Named("docconv").Debugw("fetching document", "location", location, "fetcher", f.Type())
		return f.Fetch(ctx, location)
	}
	return nil, pkgerrors.Errorf("no fetcher supports %q", location)
}

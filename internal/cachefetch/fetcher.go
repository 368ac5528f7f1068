// Package cachefetch retrieves the prebuilt dependency cache archive into a
// job-private directory before the build stage runs. A single attempt is
// made; failure aborts the owning build job.
package cachefetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"resty.dev/v3"

	"github.com/vk/buildgridgo/internal/config"
	"github.com/vk/buildgridgo/internal/ctxlog"
)

// FetchError reports a failed cache retrieval for one archive URI.
type FetchError struct {
	URI string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch cache archive %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads and unpacks cache archives. It is safe for concurrent
// use by all matrix jobs; each job extracts into its own destination.
type Fetcher struct {
	store *config.CacheStore
	http  *resty.Client

	s3Once sync.Once
	s3     *minio.Client
	s3Err  error
}

// NewFetcher creates a Fetcher. store may be nil when no s3:// URIs are used.
func NewFetcher(store *config.CacheStore) *Fetcher {
	return &Fetcher{
		store: store,
		http:  resty.New(),
	}
}

// Close releases the underlying HTTP client resources.
func (f *Fetcher) Close() error {
	return f.http.Close()
}

// Fetch downloads the archive identified by archiveURI and unpacks it into
// destDir. Supported schemes: s3, http, https, file (or a bare local path).
func (f *Fetcher) Fetch(ctx context.Context, archiveURI, destDir string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Fetching cache archive.", "uri", archiveURI, "dest", destDir)

	body, err := f.open(ctx, archiveURI)
	if err != nil {
		return &FetchError{URI: archiveURI, Err: err}
	}
	defer body.Close()

	if err := extractTarGz(body, destDir); err != nil {
		return &FetchError{URI: archiveURI, Err: err}
	}

	logger.Debug("Cache archive unpacked.", "dest", destDir)
	return nil
}

// open resolves the URI scheme to a readable archive stream.
func (f *Fetcher) open(ctx context.Context, archiveURI string) (io.ReadCloser, error) {
	u, err := url.Parse(archiveURI)
	if err != nil {
		return nil, fmt.Errorf("invalid archive URI: %w", err)
	}

	switch u.Scheme {
	case "s3":
		return f.openS3(ctx, u)
	case "http", "https":
		return f.openHTTP(ctx, archiveURI)
	case "file", "":
		return os.Open(u.Path)
	default:
		return nil, fmt.Errorf("unsupported archive URI scheme %q", u.Scheme)
	}
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	client, err := f.s3Client()
	if err != nil {
		return nil, err
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 URI must have the form s3://bucket/key, got %q", u)
	}

	// GetObject defers the request; Stat forces it so unreachable objects
	// fail here rather than on first read.
	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

func (f *Fetcher) s3Client() (*minio.Client, error) {
	f.s3Once.Do(func() {
		if f.store == nil {
			f.s3Err = fmt.Errorf("s3 archive URI requires a cache block in the pipeline configuration")
			return
		}
		f.s3, f.s3Err = minio.New(f.store.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(f.store.AccessKey, f.store.SecretKey, ""),
			Secure: f.store.UseSSL,
			Region: f.store.Region,
		})
	})
	return f.s3, f.s3Err
}

func (f *Fetcher) openHTTP(ctx context.Context, archiveURI string) (io.ReadCloser, error) {
	res, err := f.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(archiveURI)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		res.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", res.Status())
	}
	return res.Body, nil
}

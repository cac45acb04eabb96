package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ChunkSize is the read size used when streaming a model file.
const ChunkSize = 64 * 1024

// DefaultMaxBytes caps a model file when Options.MaxBytes is zero.
const DefaultMaxBytes = 512 << 20

// maxPrealloc bounds the buffer reserved from a reported size before any
// bytes have arrived.
const maxPrealloc = 64 << 20

var (
	// ErrFileNotFound is returned when the model file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrTooLarge is returned when a model file exceeds the size limit.
	ErrTooLarge = errors.New("model file exceeds size limit")
)

// ProgressFunc receives the bytes read so far and the total size, or -1
// when the size is unknown.
type ProgressFunc func(loaded, total int64)

// Fetcher reads a whole model file of at most limit bytes, reporting byte
// progress. A limit of zero or less means no limit.
type Fetcher interface {
	Fetch(ctx context.Context, location string, limit int64, onProgress ProgressFunc) ([]byte, error)
}

// readAll reads r in ChunkSize pieces, reporting progress after each one.
// total is only a hint: it sizes the initial buffer and is checked against
// limit up front, but the limit is enforced on the bytes actually read.
func readAll(ctx context.Context, r io.Reader, total, limit int64, onProgress ProgressFunc) ([]byte, error) {
	if limit > 0 {
		if total > limit {
			return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, total, limit)
		}
		r = io.LimitReader(r, limit+1)
	}
	reserve := total
	if reserve > maxPrealloc {
		reserve = maxPrealloc
	}
	var buf []byte
	if reserve > 0 {
		buf = make([]byte, 0, reserve)
	}
	chunk := make([]byte, ChunkSize)
	var loaded int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			loaded += int64(n)
			if limit > 0 && loaded > limit {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
			}
			buf = append(buf, chunk[:n]...)
			if onProgress != nil {
				onProgress(loaded, total)
			}
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FileFetcher reads model files from the local filesystem.
type FileFetcher struct{}

// Fetch reads the file at location, which may be a plain path or a file:// URL.
func (FileFetcher) Fetch(ctx context.Context, location string, limit int64, onProgress ProgressFunc) ([]byte, error) {
	path := strings.TrimPrefix(location, "file://")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %q", ErrFileNotFound, location)
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return readAll(ctx, f, info.Size(), limit, onProgress)
}

// HTTPFetcher downloads model files over HTTP(S).
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a client timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch downloads location. Total is taken from Content-Length when present.
func (h *HTTPFetcher) Fetch(ctx context.Context, location string, limit int64, onProgress ProgressFunc) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w at %q (status %d)", ErrFileNotFound, location, resp.StatusCode)
	}
	return readAll(ctx, resp.Body, resp.ContentLength, limit, onProgress)
}

// S3Config configures S3Fetcher.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Fetcher reads model files from S3-compatible storage using
// s3://bucket/key locations.
type S3Fetcher struct {
	client *minio.Client
}

// NewS3Fetcher creates a fetcher for the given endpoint.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Fetcher{client: client}, nil
}

// ParseS3Location splits s3://bucket/key into its parts.
func ParseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 location: %q", location)
	}
	bucket = u.Host
	key = strings.TrimLeft(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location needs a bucket and a key: %q", location)
	}
	return bucket, key, nil
}

// Fetch reads the object at location.
func (s *S3Fetcher) Fetch(ctx context.Context, location string, limit int64, onProgress ProgressFunc) ([]byte, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w at %q", ErrFileNotFound, location)
		}
		return nil, err
	}
	return readAll(ctx, obj, info.Size, limit, onProgress)
}

// Mux dispatches to a fetcher by location scheme. Locations without a
// scheme are local paths.
type Mux struct {
	fetchers map[string]Fetcher
}

// NewMux returns a mux serving local files and HTTP(S).
func NewMux() *Mux {
	httpFetcher := NewHTTPFetcher(5 * time.Minute)
	return &Mux{fetchers: map[string]Fetcher{
		"":      FileFetcher{},
		"file":  FileFetcher{},
		"http":  httpFetcher,
		"https": httpFetcher,
	}}
}

// Handle registers f for scheme.
func (m *Mux) Handle(scheme string, f Fetcher) {
	m.fetchers[strings.ToLower(scheme)] = f
}

// Fetch implements Fetcher.
func (m *Mux) Fetch(ctx context.Context, location string, limit int64, onProgress ProgressFunc) ([]byte, error) {
	scheme := Scheme(location)
	f, ok := m.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported location scheme %q", scheme)
	}
	return f.Fetch(ctx, location, limit, onProgress)
}

// Scheme returns the lower-cased scheme of location, or "" for a plain path.
func Scheme(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return strings.ToLower(location[:i])
	}
	return ""
}

// IsRemote reports whether location is fetched over the network rather
// than from the local filesystem.
func IsRemote(location string) bool {
	switch Scheme(location) {
	case "http", "https", "s3":
		return true
	}
	return false
}

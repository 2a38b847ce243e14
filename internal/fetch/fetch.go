// Package fetch downloads release artifacts over HTTP with cooperative
// cancellation.
//
// Cancellation is checked before every request and after every chunk read
// from the response body. It can come from either the Downloader's own flag
// (see Downloader.Cancel) or the context passed to Fetch. Both surface as an
// error wrapping ErrCancelled so callers can tell a user abort from an I/O
// fault.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// defaultChunkSize is the read granularity at which cancellation is polled.
	defaultChunkSize = 32 << 10

	// maxBytesResponse bounds Bytes() reads (10 MB).
	maxBytesResponse = 10 << 20

	defaultTimeout = 10 * time.Minute
)

var (
	// ErrCancelled is wrapped by every error caused by cancellation.
	ErrCancelled = errors.New("download cancelled")

	// ErrInsecureURL is returned for non-https URLs unless insecure downloads
	// are allowed.
	ErrInsecureURL = errors.New("refusing insecure download url")
)

type (
	// HTTPError reports a non-200 response.
	HTTPError struct {
		URL        string
		StatusCode int
	}

	// Downloader fetches URLs into files or memory.
	Downloader struct {
		client        *http.Client
		logger        *log.Logger
		allowInsecure bool
		userAgent     string
		chunkSize     int
		cancelled     atomic.Bool
	}

	// Option configures a Downloader during construction.
	Option func(*Downloader)
)

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithLogger sets the logger used for download progress messages.
func WithLogger(l *log.Logger) Option {
	return func(d *Downloader) {
		d.logger = l
	}
}

// WithAllowInsecure permits plain http URLs.
func WithAllowInsecure(allow bool) Option {
	return func(d *Downloader) {
		d.allowInsecure = allow
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// WithChunkSize sets how many bytes are read between cancellation checks.
func WithChunkSize(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// New creates a Downloader. Defaults: a client with a 10 minute timeout,
// https only, and a discarding logger.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:    &http.Client{Timeout: defaultTimeout},
		logger:    log.New(io.Discard),
		userAgent: "hoist",
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cancel sets the cancellation flag and returns its previous value.
// While the flag is set every Fetch aborts with ErrCancelled.
func (d *Downloader) Cancel(cancel bool) bool {
	return d.cancelled.Swap(cancel)
}

// Cancelled reports the current cancellation flag.
func (d *Downloader) Cancelled() bool {
	return d.cancelled.Load()
}

// Fetch downloads rawURL into the file dst, creating or truncating it.
// On any failure dst is removed.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dst string) error {
	body, err := d.open(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, copyErr := d.copy(ctx, f, body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dst)
		if copyErr != nil {
			return fmt.Errorf("failed to download %s: %w", rawURL, copyErr)
		}
		return fmt.Errorf("failed to write %s: %w", dst, closeErr)
	}

	d.logger.Debug("downloaded file", "url", rawURL, "bytes", n, "path", dst)
	return nil
}

// Bytes downloads rawURL into memory. Responses above 10 MB are rejected.
func (d *Downloader) Bytes(ctx context.Context, rawURL string) ([]byte, error) {
	return d.BytesWithHeader(ctx, rawURL, nil)
}

// BytesWithHeader is like Bytes but adds header to the request.
func (d *Downloader) BytesWithHeader(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	body, err := d.open(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	w := &limitedBuffer{max: maxBytesResponse}
	if _, err := d.copy(ctx, w, body); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	return w.buf, nil
}

// CheckURL validates rawURL against the downloader's scheme policy.
func (d *Downloader) CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if d.allowInsecure {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInsecureURL, rawURL)
	default:
		return fmt.Errorf("unsupported url scheme %q in %s", u.Scheme, rawURL)
	}
}

func (d *Downloader) open(ctx context.Context, rawURL string, header http.Header) (io.ReadCloser, error) {
	if err := d.checkCancelled(ctx); err != nil {
		return nil, err
	}
	if err := d.CheckURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", d.userAgent)

	d.logger.Debug("requesting", "url", rawURL)
	resp, err := d.client.Do(req)
	if err != nil {
		if cerr := d.checkCancelled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (d *Downloader) copy(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var total int64
	for {
		if err := d.checkCancelled(ctx); err != nil {
			return total, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			written, err := w.Write(buf[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			if err := d.checkCancelled(ctx); err != nil {
				return total, err
			}
			return total, readErr
		}
	}
}

func (d *Downloader) checkCancelled(ctx context.Context) error {
	if d.cancelled.Load() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

type limitedBuffer struct {
	buf []byte
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if len(b.buf)+len(p) > b.max {
		return 0, fmt.Errorf("response exceeds %d bytes", b.max)
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

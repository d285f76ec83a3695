// Package cv fetches candidate CVs and extracts their plain text.
package cv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 20 << 20
	userAgent       = "spigell/ats-scorer"
)

var newlineRuns = regexp.MustCompile(`[\r\n]+`)

// ObjectGetter downloads objects addressed by s3://bucket/key URLs.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type Extractor struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxBytes bounds the downloaded document size.
	MaxBytes int64

	objects ObjectGetter
	logger  *zap.Logger
}

type Option func(*Extractor)

// WithTimeout bounds the whole fetch of one document.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.HTTPClient.Timeout = d
		}
	}
}

// WithObjectGetter enables s3:// CV URLs.
func WithObjectGetter(g ObjectGetter) Option {
	return func(e *Extractor) { e.objects = g }
}

func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.MaxBytes = n
		}
	}
}

func New(logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		UserAgent:  userAgent,
		MaxBytes:   defaultMaxBytes,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract downloads the document at rawURL and returns its text with newline
// runs collapsed to single spaces.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	data, contentType, err := e.fetch(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	e.logger.Debug("cv downloaded",
		zap.String("cv_url", rawURL),
		zap.Int("bytes", len(data)),
		zap.String("content_type", contentType),
	)

	text, err := parseDocument(data, contentType)
	if err != nil {
		return "", err
	}

	return cleanText(text), nil
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing cv url: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return e.fetchHTTP(ctx, parsed.String())
	case "s3":
		if e.objects == nil {
			return nil, "", fmt.Errorf("%w: s3 storage is not configured", ErrUnsupportedScheme)
		}
		body, err := e.objects.GetObject(ctx, parsed.Host, strings.TrimPrefix(parsed.Path, "/"))
		if err != nil {
			return nil, "", fmt.Errorf("fetching cv %s: %w", rawURL, err)
		}
		defer body.Close()

		data, err := e.readAll(body)
		return data, "", err
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

func (e *Extractor) fetchHTTP(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", e.UserAgent)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching cv %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &FetchError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := e.readAll(resp.Body)
	return data, resp.Header.Get("Content-Type"), err
}

func (e *Extractor) readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, e.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading cv body: %w", err)
	}
	if n > e.MaxBytes {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}

func cleanText(text string) string {
	return strings.TrimSpace(newlineRuns.ReplaceAllString(text, " "))
}

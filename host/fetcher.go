// Package host is the other end of the transport channel. It watches the
// request key, downloads the image over HTTP and answers in the result
// key with the base64 payload, an error marker or the too-large
// sentinel.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rekav/img2ascii/channel"
	"github.com/rekav/img2ascii/codec"
	"github.com/rekav/img2ascii/log"
)

var tracer = otel.Tracer("github.com/rekav/img2ascii/host")

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultUserAgent    = "img2ascii/1.0"
)

// Fetcher serves requests written to a channel.Store.
type Fetcher struct {
	store         channel.Store
	client        *http.Client
	userAgent     string
	maxResultText int
	pollInterval  time.Duration
}

// Option is a functional option for configuring a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header of every fetch.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxResultText bounds the base64 text written to the result key.
// Larger images are answered with channel.TooLarge.
func WithMaxResultText(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxResultText = n
		}
	}
}

// WithPollInterval sets how often Run checks the request key.
func WithPollInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// NewFetcher creates a Fetcher for store. The default client gives up
// on a fetch after DefaultTimeout.
func NewFetcher(store channel.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:         store,
		client:        NewHTTPClient(DefaultTimeout),
		userAgent:     DefaultUserAgent,
		maxResultText: channel.DefaultMaxResultText,
		pollInterval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient returns a client with an overall timeout and bounded
// handshake and header waits.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			IdleConnTimeout:       30 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
		},
	}
}

// Run serves requests until ctx is done.
func (f *Fetcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Step(ctx)
		}
	}
}

// Step serves at most one pending request and reports whether it did.
// The fetched URL is echoed in channel.ResultSourceKey before the result
// is written.
func (f *Fetcher) Step(ctx context.Context) bool {
	url, ok := channel.Take(f.store, channel.RequestKey)
	if !ok || url == "" {
		return false
	}
	value := f.Fetch(ctx, url)
	f.store.Set(channel.ResultSourceKey, url)
	f.store.Set(channel.ResultKey, value)
	return true
}

// Fetch downloads url and returns the value for the result key.
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	ctx, span := tracer.Start(ctx, "host.fetch", trace.WithAttributes(attribute.String("http.url", url)))
	defer span.End()

	data, err := f.get(ctx, url)
	switch {
	case errors.Is(err, errTooLarge):
		span.SetAttributes(attribute.Bool("result.too_large", true))
		log.Warn("fetch %s: image exceeds %d bytes of base64", url, f.maxResultText)
		return channel.TooLarge
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("fetch %s: %v", url, err)
		return channel.ErrorValue(err.Error())
	}

	span.SetAttributes(attribute.Int("http.response_size", len(data)))
	log.Debug("fetched %s (%d bytes)", url, len(data))
	return codec.EncodeToString(data)
}

var errTooLarge = errors.New("response too large")

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bad request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}

	// Largest payload whose base64 text still fits the reader's bound.
	maxRaw := int64(f.maxResultText / 4 * 3)
	if resp.ContentLength > maxRaw {
		return nil, errTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRaw+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > maxRaw {
		return nil, errTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("empty response")
	}
	return data, nil
}

// Package transport resolves remote resources by URL scheme and exposes them
// as probeable byte streams. A transport reports what the engine needs to
// plan a download (size, range capability, suggested filename) and opens
// either ranged or whole-resource readers for it.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/yankdl/yank/internal/utils"
)

// Info is the result of probing a remote resource. Size is -1 when the
// server does not report one.
type Info struct {
	Size          int64
	SupportsRange bool
	Filename      string
}

type Transport interface {
	// Probe inspects the resource without downloading it.
	Probe(ctx context.Context, rawURL string) (Info, error)
	// OpenRange starts a transfer of bytes [start, end] inclusive.
	OpenRange(ctx context.Context, rawURL string, start, end int64) (io.ReadCloser, error)
	// OpenStream starts a transfer of the whole resource.
	OpenStream(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// ProbeError wraps any failure to learn about a resource before transfer.
type ProbeError struct {
	URL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("error probing %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// For returns the transport handling the URL's scheme.
func For(rawURL string, clientConfig utils.HTTPClientConfig) (Transport, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	switch parsed.Scheme {
	case "http", "https":
		return NewHTTP(clientConfig), nil
	case "ftp":
		return NewFTP(), nil
	case "s3":
		return NewS3(), nil
	default:
		return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}
}

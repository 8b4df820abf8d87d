package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/yankdl/yank/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

type HTTPTransport struct {
	client *utils.HTTPClient
}

func NewHTTP(cfg utils.HTTPClientConfig) *HTTPTransport {
	return &HTTPTransport{client: utils.NewHTTPClient(cfg)}
}

func (t *HTTPTransport) Probe(ctx context.Context, rawURL string) (Info, error) {
	log := utils.GetLogger("http-probe")
	req, err := http.NewRequestWithContext(ctx, "HEAD", rawURL, nil)
	if err != nil {
		return Info{}, &ProbeError{URL: rawURL, Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return Info{}, &ProbeError{URL: rawURL, Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		// Some servers reject HEAD; fall back to a GET that is closed
		// as soon as the headers arrive.
		log.Debug().Str("url", rawURL).Int("statusCode", resp.StatusCode).Msg("HEAD not supported, probing with GET")
		return t.probeWithGet(ctx, rawURL)
	}
	if resp.StatusCode >= 400 {
		return Info{}, &ProbeError{URL: rawURL, Err: fmt.Errorf("server returned error: %d", resp.StatusCode)}
	}
	info := infoFromHeaders(resp.Header)
	log.Debug().Str("url", rawURL).Int64("size", info.Size).Bool("rangeSupported", info.SupportsRange).Msg("Probe complete")
	return info, nil
}

func (t *HTTPTransport) probeWithGet(ctx context.Context, rawURL string) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return Info{}, &ProbeError{URL: rawURL, Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return Info{}, &ProbeError{URL: rawURL, Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Info{}, &ProbeError{URL: rawURL, Err: fmt.Errorf("server returned error: %d", resp.StatusCode)}
	}
	return infoFromHeaders(resp.Header), nil
}

func (t *HTTPTransport) OpenRange(ctx context.Context, rawURL string, start, end int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %v", err)
	}
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
	req.Header.Set("Range", rangeHeader)
	req.Header.Set("Connection", "keep-alive")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil, utils.ErrRangeRequestsNotSupported
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Range") == "" {
		resp.Body.Close()
		return nil, errors.New("missing Content-Range header")
	}
	return resp.Body, nil
}

func (t *HTTPTransport) OpenStream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %v", err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func infoFromHeaders(header http.Header) Info {
	info := Info{Size: -1}
	if contentLength := header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size >= 0 {
			info.Size = size
		}
	}
	info.SupportsRange = header.Get("Accept-Ranges") == "bytes"
	info.Filename = filenameFromDisposition(header.Get("Content-Disposition"))
	return info
}

func filenameFromDisposition(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameRegex.ReplaceAllString(fn, "_")
	}
	if fn, ok := params["filename*"]; ok && fn != "" {
		if strings.HasPrefix(fn, "UTF-8''") {
			unescaped, _ := url.PathUnescape(strings.TrimPrefix(fn, "UTF-8''"))
			return filenameRegex.ReplaceAllString(unescaped, "_")
		}
	}
	return ""
}

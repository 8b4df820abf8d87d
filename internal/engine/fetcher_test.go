package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yankdl/yank/internal/transport"
	"github.com/yankdl/yank/internal/utils"
)

func newFetchJob(t *testing.T, url string, totalSize int64) *Job {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.MkdirAll(utils.ScratchDir(dest), 0755))
	return &Job{
		ID:        "t",
		Request:   Request{URL: url, OutputPath: dest},
		totalSize: totalSize,
		gate:      NewGate(),
	}
}

func TestFetchSegmentRange(t *testing.T) {
	data := patternData(400000)
	server := rangeServer(t, data)
	defer server.Close()

	job := newFetchJob(t, server.URL, int64(len(data)))
	seg := &Segment{Index: 1, StartByte: 100000, EndByte: 250000}
	tr := transport.NewHTTP(utils.HTTPClientConfig{})

	require.NoError(t, fetchSegment(context.Background(), job, tr, seg, true))
	assert.Equal(t, seg.Size(), seg.Downloaded())

	content, err := os.ReadFile(utils.SegmentPath(job.Request.OutputPath, 1))
	require.NoError(t, err)
	assert.Equal(t, data[100000:250001], content)
}

func TestFetchSegmentStream(t *testing.T) {
	data := patternData(64 * 1024)
	server := rangeServer(t, data)
	defer server.Close()

	job := newFetchJob(t, server.URL, int64(len(data)))
	seg := &Segment{Index: 0, StartByte: 0, EndByte: int64(len(data)) - 1}
	tr := transport.NewHTTP(utils.HTTPClientConfig{})

	require.NoError(t, fetchSegment(context.Background(), job, tr, seg, false))
	assert.Equal(t, int64(len(data)), seg.Downloaded())

	content, err := os.ReadFile(utils.SegmentPath(job.Request.OutputPath, 0))
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestFetchSegmentPauseFreezesCounter(t *testing.T) {
	data := patternData(256 * 1024)
	server := slowStreamServer(t, data, 8*1024, 5*time.Millisecond)
	defer server.Close()

	job := newFetchJob(t, server.URL, int64(len(data)))
	seg := &Segment{Index: 0, StartByte: 0, EndByte: int64(len(data)) - 1}
	tr := transport.NewHTTP(utils.HTTPClientConfig{})

	done := make(chan error, 1)
	go func() { done <- fetchSegment(context.Background(), job, tr, seg, false) }()

	require.Eventually(t, func() bool { return seg.Downloaded() > 0 }, 5*time.Second, time.Millisecond)
	job.gate.Close()

	// The in-flight chunk may still land; wait for the counter to settle
	var settled int64 = -1
	require.Eventually(t, func() bool {
		current := seg.Downloaded()
		if current == settled {
			return true
		}
		settled = current
		return false
	}, 5*time.Second, 50*time.Millisecond)

	frozen := seg.Downloaded()
	require.Less(t, frozen, int64(len(data)))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, frozen, seg.Downloaded())

	job.gate.Open()
	require.NoError(t, <-done)
	assert.Equal(t, int64(len(data)), seg.Downloaded())

	content, err := os.ReadFile(utils.SegmentPath(job.Request.OutputPath, 0))
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestFetchSegmentCancel(t *testing.T) {
	data := patternData(256 * 1024)
	server := slowStreamServer(t, data, 8*1024, 5*time.Millisecond)
	defer server.Close()

	job := newFetchJob(t, server.URL, int64(len(data)))
	seg := &Segment{Index: 0, StartByte: 0, EndByte: int64(len(data)) - 1}
	tr := transport.NewHTTP(utils.HTTPClientConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fetchSegment(ctx, job, tr, seg, false) }()

	require.Eventually(t, func() bool { return seg.Downloaded() > 0 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not stop after cancel")
	}
	assert.Less(t, seg.Downloaded(), int64(len(data)))
}

func TestFetchSegmentServerAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "100000")
			return
		}
		w.Header().Set("Content-Length", "100000")
		w.Write(make([]byte, 10000))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	job := newFetchJob(t, server.URL, 100000)
	seg := &Segment{Index: 0, StartByte: 0, EndByte: 99999}
	tr := transport.NewHTTP(utils.HTTPClientConfig{})

	err := fetchSegment(context.Background(), job, tr, seg, false)
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 0, fetchErr.SegmentIndex)
}

func TestFetchSegmentShortBody(t *testing.T) {
	data := patternData(50000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, end := parseRangeHeader(r.Header.Get("Range"), int64(len(data)))
		// Advertise the full range but send only half of it
		w.Header().Set("Content-Range", "bytes 0-49999/50000")
		w.Header().Set("Content-Length", "25000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : start+(end-start+1)/2])
	}))
	defer server.Close()

	job := newFetchJob(t, server.URL, int64(len(data)))
	seg := &Segment{Index: 0, StartByte: 0, EndByte: int64(len(data)) - 1}
	tr := transport.NewHTTP(utils.HTTPClientConfig{})

	err := fetchSegment(context.Background(), job, tr, seg, true)
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "size mismatch")
}

package engine

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func patternData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func parseRangeHeader(header string, size int64) (int64, int64) {
	header = strings.TrimPrefix(header, "bytes=")
	parts := strings.Split(header, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end, _ := strconv.ParseInt(parts[1], 10, 64)
	if end >= size {
		end = size - 1
	}
	return start, end
}

// rangeServer serves data with full range-request support, the shape a
// well-behaved static file server has.
func rangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Write(data)
			return
		}
		start, end := parseRangeHeader(rangeHeader, int64(len(data)))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

// slowStreamServer trickles data out in fixed chunks with a delay between
// them, leaving a window for pause and cancel to land mid-transfer.
func slowStreamServer(t *testing.T, data []byte, chunk int, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		flusher := w.(http.Flusher)
		for i := 0; i < len(data); i += chunk {
			end := min(i+chunk, len(data))
			if _, err := w.Write(data[i:end]); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
	}))
}

func awaitTerminal(t *testing.T, m *Manager) Event {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.Type == EventTerminal {
				return ev
			}
		case <-deadline:
			t.Fatal("no terminal event before deadline")
		}
	}
}

// collectUntilTerminal drains events until the first terminal one, returning
// it together with all progress snapshots seen on the way.
func collectUntilTerminal(t *testing.T, m *Manager) (Event, []Event) {
	t.Helper()
	var progress []Event
	deadline := time.After(30 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.Type == EventTerminal {
				return ev, progress
			}
			progress = append(progress, ev)
		case <-deadline:
			t.Fatal("no terminal event before deadline")
		}
	}
}

func testConfig() Config {
	return Config{
		MaxRetries:       3,
		RetryBackoff:     10 * time.Millisecond,
		ProbeTimeout:     5 * time.Second,
		ProgressInterval: 20 * time.Millisecond,
	}
}

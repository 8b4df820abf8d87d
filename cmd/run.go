package cmd

import (
	"context"
	"errors"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yankdl/yank/internal/engine"
	"github.com/yankdl/yank/internal/output"
	"github.com/yankdl/yank/internal/transport"
	"github.com/yankdl/yank/internal/utils"
)

// resolveOutputPath picks a destination for a download: the explicit path if
// given, otherwise the server-advertised filename from a quick probe, then
// the URL path basename, then a literal fallback.
func resolveOutputPath(rawURL, explicit string, clientConfig utils.HTTPClientConfig) string {
	if explicit != "" {
		return explicit
	}
	name := ""
	if tr, err := transport.For(rawURL, clientConfig); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if info, err := tr.Probe(ctx, rawURL); err == nil {
			name = info.Filename
		}
		cancel()
	}
	if name == "" {
		if parsed, err := u.Parse(rawURL); err == nil {
			name = path.Base(parsed.Path)
			if name == "." || name == "/" {
				name = ""
			}
		}
	}
	if name == "" {
		name = "download"
	}
	return name
}

func displayStatus(status engine.Status) string {
	switch status {
	case engine.StatusProbing:
		return output.StatusProbing
	case engine.StatusDownloading:
		return output.StatusDownloading
	case engine.StatusPaused:
		return output.StatusPaused
	default:
		return output.StatusQueued
	}
}

// runDownloads drives a set of entries through the engine and renders their
// progress until every one reaches a terminal state. The first interrupt
// cancels all jobs gracefully, a second one force-exits.
func runDownloads(entries []utils.DownloadEntry, clientConfig utils.HTTPClientConfig) error {
	cfg := engine.DefaultConfig()
	cfg.MaxRetries = retries
	cfg.HTTPClient = clientConfig
	mgr := engine.NewManager(cfg)
	display := output.NewDisplay()

	var tracked []string
	for _, entry := range entries {
		dest := resolveOutputPath(entry.URL, entry.OutputPath, clientConfig)
		if _, err := os.Stat(dest); err == nil {
			dest = utils.RenewOutputPath(dest)
		}
		conns := entry.Connections
		if conns <= 0 {
			conns = connections
		}
		job, err := mgr.Add(engine.Request{URL: entry.URL, OutputPath: dest, Connections: conns})
		if err != nil {
			output.PrintError(fmt.Sprintf("Skipping %s: %v", entry.URL, err))
			continue
		}
		display.Track(job.ID, filepath.Base(dest))
		tracked = append(tracked, job.ID)
	}
	total := len(tracked)
	if total == 0 {
		return errors.New("no valid downloads to run")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	display.StartDisplay()
	mgr.StartAll()

	failures := 0
	interrupted := false
	remaining := total
	for remaining > 0 {
		select {
		case ev := <-mgr.Events():
			switch ev.Type {
			case engine.EventProgress:
				display.UpdateProgress(ev.JobID, displayStatus(ev.Status), ev.Downloaded, ev.TotalSize, ev.Speed)
			case engine.EventTerminal:
				remaining--
				switch ev.Status {
				case engine.StatusCompleted:
					display.Complete(ev.JobID, "")
				case engine.StatusCancelled:
					display.Cancel(ev.JobID)
				default:
					failures++
					display.ReportError(ev.JobID, ev.Err)
				}
			}
		case <-sigCh:
			if interrupted {
				os.Exit(130)
			}
			interrupted = true
			for _, id := range tracked {
				display.SetMessage(id, "Cancelling...")
			}
			mgr.CancelAll()
		}
	}
	mgr.Wait()
	display.StopDisplay()
	if failures > 0 {
		return fmt.Errorf("%d download(s) failed", failures)
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/yankdl/yank/internal/transport"
	"github.com/yankdl/yank/internal/utils"
)

type segmentResult struct {
	seg *Segment
	err error
}

// fetchSegment transfers one segment into its sink file. It copies in small
// chunks, bumping the segment counter after every write, and between chunks
// honors cancellation and the job's pause gate. Any partial sink content from
// an earlier attempt is discarded up front.
func fetchSegment(ctx context.Context, job *Job, tr transport.Transport, seg *Segment, ranged bool) error {
	log := utils.GetLogger("fetch").With().Str("jobId", job.ID).Int("segment", seg.Index).Logger()
	sinkPath := utils.SegmentPath(job.Request.OutputPath, seg.Index)
	sink, err := os.OpenFile(sinkPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &IOError{Path: sinkPath, Err: fmt.Errorf("error opening sink file: %v", err)}
	}
	defer sink.Close()

	var body io.ReadCloser
	if ranged {
		log.Debug().Int64("start", seg.StartByte).Int64("end", seg.EndByte).Msg("Sending range request")
		body, err = tr.OpenRange(ctx, job.Request.URL, seg.StartByte, seg.EndByte)
	} else {
		log.Debug().Msg("Starting stream transfer")
		body, err = tr.OpenStream(ctx, job.Request.URL)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &FetchError{SegmentIndex: seg.Index, Err: err}
	}
	defer body.Close()

	buffer := make([]byte, utils.CopyChunkSize)
	for {
		bytesRead, readErr := body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := sink.Write(buffer[:bytesRead]); writeErr != nil {
				return &IOError{Path: sinkPath, Err: writeErr}
			}
			seg.addDownloaded(int64(bytesRead))
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &FetchError{SegmentIndex: seg.Index, Err: readErr}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if job.gate.Paused() {
			seg.State = SegmentPaused
			log.Debug().Int64("downloaded", seg.Downloaded()).Msg("Segment paused")
			if err := job.gate.Wait(ctx); err != nil {
				return err
			}
			seg.State = SegmentActive
			log.Debug().Msg("Segment resumed")
		}
	}

	downloaded := seg.Downloaded()
	if ranged {
		if expected := seg.Size(); downloaded != expected {
			return &FetchError{SegmentIndex: seg.Index, Err: fmt.Errorf("size mismatch: expected %d bytes, got %d", expected, downloaded)}
		}
	} else if total := job.TotalSize(); total >= 0 && downloaded != total {
		return &FetchError{SegmentIndex: seg.Index, Err: fmt.Errorf("size mismatch: expected %d bytes, got %d", total, downloaded)}
	}
	log.Debug().Int64("downloaded", downloaded).Msg("Segment transfer completed")
	return nil
}

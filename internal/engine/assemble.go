package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/yankdl/yank/internal/utils"
)

// assemble merges the segment sinks into the destination in ascending index
// order, verifying sizes along the way, then removes the scratch directory.
// A single-segment job just moves its sink into place. On failure the scratch
// contents are left behind for inspection.
func assemble(job *Job) error {
	log := utils.GetLogger("assemble").With().Str("jobId", job.ID).Logger()
	outputPath := job.Request.OutputPath
	segments := job.Segments()

	if len(segments) == 1 {
		sinkPath := utils.SegmentPath(outputPath, 0)
		if err := os.Rename(sinkPath, outputPath); err != nil {
			return &IOError{Path: outputPath, Err: fmt.Errorf("error finalizing output file: %v", err)}
		}
		if err := os.Remove(utils.ScratchDir(outputPath)); err != nil {
			log.Debug().Err(err).Msg("Could not remove scratch directory")
		}
		return nil
	}

	destFile, err := os.Create(outputPath)
	if err != nil {
		return &IOError{Path: outputPath, Err: fmt.Errorf("error creating output file: %v", err)}
	}
	defer destFile.Close()

	var totalWritten int64 = 0
	for _, seg := range segments {
		sinkPath := utils.SegmentPath(outputPath, seg.Index)
		sink, err := os.Open(sinkPath)
		if err != nil {
			return &IOError{Path: sinkPath, Err: fmt.Errorf("error opening segment file: %v", err)}
		}
		fileInfo, err := sink.Stat()
		if err != nil {
			sink.Close()
			return &IOError{Path: sinkPath, Err: fmt.Errorf("error getting segment file info: %v", err)}
		}
		segSize := fileInfo.Size()
		written, err := io.Copy(destFile, sink)
		sink.Close()
		if err != nil {
			return &IOError{Path: outputPath, Err: fmt.Errorf("error copying segment data: %v", err)}
		}
		if written != segSize {
			return &IOError{Path: sinkPath, Err: fmt.Errorf("wrote %d bytes but segment size is %d", written, segSize)}
		}
		totalWritten += written
	}
	if total := job.TotalSize(); total >= 0 && totalWritten != total {
		return &IOError{Path: outputPath, Err: fmt.Errorf("total written bytes (%d) doesn't match expected file size (%d)", totalWritten, total)}
	}
	log.Debug().Int64("bytes", totalWritten).Int("segments", len(segments)).Msg("Assembly complete")

	if err := os.RemoveAll(utils.ScratchDir(outputPath)); err != nil {
		log.Debug().Err(err).Msg("Could not remove scratch directory")
	}
	return nil
}

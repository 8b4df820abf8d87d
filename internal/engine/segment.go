package engine

import "sync/atomic"

type SegmentState string

const (
	SegmentPending  SegmentState = "pending"
	SegmentActive   SegmentState = "in_flight"
	SegmentPaused   SegmentState = "paused"
	SegmentComplete SegmentState = "complete"
	SegmentFailed   SegmentState = "failed"
)

// Segment is one contiguous byte range of a download. Exactly one fetcher
// owns a segment; only that fetcher writes its counter and state.
type Segment struct {
	Index     int
	StartByte int64
	EndByte   int64 // -1 when the end is unknown (streaming)
	State     SegmentState

	downloaded atomic.Int64
}

func (s *Segment) Downloaded() int64 {
	return s.downloaded.Load()
}

func (s *Segment) addDownloaded(n int64) {
	s.downloaded.Add(n)
}

// Size returns the byte count of the range, or -1 for a streaming segment.
func (s *Segment) Size() int64 {
	if s.EndByte < 0 {
		return -1
	}
	return s.EndByte - s.StartByte + 1
}

const (
	MinConnections = 1
	MaxConnections = 16

	// Resources at or below this size are fetched in one piece; splitting
	// them buys nothing.
	singleSegmentCutoff = 1024 * 1024
)

// planSegments splits totalSize bytes into up to connections contiguous
// ranges covering [0, totalSize-1] with no gaps or overlaps. The remainder of
// the floor division goes to the last segment. Unknown sizes (-1) and small
// resources produce a single whole-resource segment.
func planSegments(totalSize int64, connections int) []*Segment {
	connections = min(max(connections, MinConnections), MaxConnections)
	if totalSize < 0 {
		return []*Segment{{Index: 0, StartByte: 0, EndByte: -1, State: SegmentPending}}
	}
	if totalSize <= singleSegmentCutoff || connections == 1 {
		return []*Segment{{Index: 0, StartByte: 0, EndByte: totalSize - 1, State: SegmentPending}}
	}
	segmentSize := totalSize / int64(connections)
	segments := make([]*Segment, 0, connections)
	var currentPosition int64 = 0
	for i := 0; i < connections; i++ {
		startByte := currentPosition
		endByte := startByte + segmentSize - 1
		if i == connections-1 {
			endByte = totalSize - 1
		}
		if endByte >= totalSize {
			endByte = totalSize - 1
		}
		if endByte >= startByte {
			segments = append(segments, &Segment{
				Index:     len(segments),
				StartByte: startByte,
				EndByte:   endByte,
				State:     SegmentPending,
			})
		}
		currentPosition = endByte + 1
	}
	return segments
}

package segment

import (
	"fmt"
	"path/filepath"
	"time"
)

// SegmentPath returns the deterministic path of a segment:
// <root>/<streamID>/<YYYYMMDD>/<HH>/<seq>.log, where date and hour come from
// the UTC time of the segment's first candle and seq is zero-padded to six
// digits. Per-directory fan-out is bounded to one hour's worth of segments.
func SegmentPath(root, streamID string, firstTsMs int64, seq uint32) string {
	t := time.UnixMilli(firstTsMs).UTC()
	return filepath.Join(root, streamID,
		t.Format("20060102"),
		t.Format("15"),
		fmt.Sprintf("%06d.log", seq))
}

// ManifestPath returns the fixed manifest location for a stream.
func ManifestPath(root, streamID string) string {
	return filepath.Join(root, streamID, "manifest.json")
}

// LatestPath returns the fixed location of the mirror of the most recently
// flushed segment body.
func LatestPath(root, streamID string) string {
	return filepath.Join(root, streamID, "latest.log")
}

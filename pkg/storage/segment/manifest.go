package segment

// Manifest is the small pointer record tracking the latest segment and flush
// sequence for one stream. It is created fresh at process start or restored
// by Hydrate, mutated only by the Writer after a successful flush, and
// outlives process restarts.
type Manifest struct {
	StreamID          string `json:"stream_id"`
	LatestSegmentPath string `json:"latest_segment_path,omitempty"`
	Sequence          uint32 `json:"sequence"`
	IntervalMs        uint32 `json:"interval_ms"`
	UpdatedAtMs       int64  `json:"updated_at_ms"`
}

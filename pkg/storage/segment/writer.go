// Package segment implements the append-only segmented candle log: buffered
// ingestion, size/time-triggered flushes to immutable segment files, and a
// manifest pointer for crash recovery.
package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"candlepipe/internal/model"
)

// Config controls one Writer instance.
type Config struct {
	StreamID   string
	IntervalMs uint32

	// Enabled gates local persistence. When false, Ingest is a no-op and
	// nothing touches the disk.
	Enabled bool
	Root    string

	// FlushInterval and SegmentTargetBytes are the dual flush thresholds;
	// whichever is reached first triggers an automatic flush.
	FlushInterval      time.Duration
	SegmentTargetBytes int

	// MaxPendingBytes caps pending-buffer growth when flushes keep failing.
	// Oldest candles are dropped beyond it. 0 means 8x SegmentTargetBytes.
	MaxPendingBytes int
}

// Archiver mirrors flushed candles into an external store. Failures are
// logged and never affect the local flush outcome.
type Archiver interface {
	ArchiveFlush(ctx context.Context, streamID string, seq uint32, candles []model.Candle) error
}

// Writer owns the pending buffer, the byte-size estimate, the sequence
// counter, the manifest, and the latest-segment cache for one stream. No
// other component mutates these; independent streams get independent
// Writer instances.
type Writer struct {
	cfg     Config
	log     *zap.Logger
	archive Archiver

	// flushMu admits exactly one in-flight flush; overlapping triggers
	// from rapid ingests serialize here and never interleave writes.
	flushMu sync.Mutex

	mu           sync.Mutex
	pending      []model.Candle
	pendingBytes int
	lastFlush    time.Time
	seq          uint32
	manifest     Manifest
	latest       []byte
}

// NewWriter builds a Writer with a fresh manifest. Call Hydrate before the
// first Ingest to restore state from a previous run.
func NewWriter(cfg Config, logger *zap.Logger, archive Archiver) *Writer {
	if cfg.MaxPendingBytes == 0 {
		cfg.MaxPendingBytes = 8 * cfg.SegmentTargetBytes
	}
	return &Writer{
		cfg:       cfg,
		log:       logger,
		archive:   archive,
		lastFlush: time.Now(),
		manifest: Manifest{
			StreamID:    cfg.StreamID,
			IntervalMs:  cfg.IntervalMs,
			UpdatedAtMs: time.Now().UnixMilli(),
		},
	}
}

// Ingest appends candles to the pending buffer and triggers an automatic
// flush once the estimated size reaches the segment target or the flush
// interval has elapsed, whichever happens first. The flush runs in the
// background; its failure is logged here and never reaches the caller.
func (w *Writer) Ingest(candles []model.Candle) {
	if !w.cfg.Enabled || len(candles) == 0 {
		return
	}

	w.mu.Lock()
	w.pending = append(w.pending, candles...)
	for _, c := range candles {
		w.pendingBytes += c.LineSize()
	}

	var droppedCount, droppedBytes int
	for w.pendingBytes > w.cfg.MaxPendingBytes && len(w.pending) > 0 {
		size := w.pending[0].LineSize()
		w.pending = w.pending[1:]
		w.pendingBytes -= size
		droppedBytes += size
		droppedCount++
	}

	trigger := w.pendingBytes >= w.cfg.SegmentTargetBytes ||
		time.Since(w.lastFlush) >= w.cfg.FlushInterval
	w.mu.Unlock()

	if droppedCount > 0 {
		w.log.Warn("pending buffer over cap, dropped oldest candles",
			zap.String("stream", w.cfg.StreamID),
			zap.Int("dropped", droppedCount),
			zap.Int("bytes", droppedBytes))
	}

	if trigger {
		go func() {
			if err := w.Flush(false); err != nil {
				w.log.Warn("automatic flush failed",
					zap.String("stream", w.cfg.StreamID), zap.Error(err))
			}
		}()
	}
}

// Flush drains the pending buffer into a new immutable segment. With force
// false it is a no-op on an empty buffer. Write order is segment body, then
// the latest mirror, then the in-memory manifest, then the manifest file; a
// crash between any two steps never leaves the manifest pointing at a
// segment that was not fully written.
func (w *Writer) Flush(force bool) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	if len(w.pending) == 0 && !force {
		w.mu.Unlock()
		return nil
	}

	batch := w.pending
	w.pending = nil
	w.pendingBytes = 0
	w.lastFlush = time.Now()
	w.seq++
	seq := w.seq

	firstTs := time.Now().UnixMilli()
	if len(batch) > 0 {
		firstTs = batch[0].TimestampMs
	}
	segPath := SegmentPath(w.cfg.Root, w.cfg.StreamID, firstTs, seq)
	w.mu.Unlock()

	body := []byte(model.RenderLines(batch))

	if w.cfg.Enabled {
		if err := os.MkdirAll(filepath.Dir(segPath), 0o755); err != nil {
			return fmt.Errorf("segment: create segment dir: %w", err)
		}
		if err := os.WriteFile(segPath, body, 0o644); err != nil {
			return fmt.Errorf("segment: write segment %s: %w", segPath, err)
		}
		if err := os.WriteFile(LatestPath(w.cfg.Root, w.cfg.StreamID), body, 0o644); err != nil {
			return fmt.Errorf("segment: write latest mirror: %w", err)
		}
	}

	w.mu.Lock()
	w.manifest.LatestSegmentPath = segPath
	w.manifest.Sequence = seq
	w.manifest.UpdatedAtMs = time.Now().UnixMilli()
	snapshot := w.manifest
	w.latest = body
	w.mu.Unlock()

	if w.cfg.Enabled {
		if err := w.persistManifest(snapshot); err != nil {
			return fmt.Errorf("segment: persist manifest: %w", err)
		}
	}

	if w.archive != nil && len(batch) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.archive.ArchiveFlush(ctx, w.cfg.StreamID, seq, batch); err != nil {
			w.log.Warn("archive sink failed",
				zap.String("stream", w.cfg.StreamID),
				zap.Uint32("sequence", seq), zap.Error(err))
		}
	}

	w.log.Debug("flushed segment",
		zap.String("stream", w.cfg.StreamID),
		zap.Uint32("sequence", seq),
		zap.Int("candles", len(batch)),
		zap.Int("bytes", len(body)))

	return nil
}

func (w *Writer) persistManifest(m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(ManifestPath(w.cfg.Root, w.cfg.StreamID), data, 0o644)
}

// Hydrate restores the sequence counter and latest-segment cache from the
// persisted manifest. A missing manifest is a fresh start. Corrupt or
// unreadable state is logged at warning level and also treated as a fresh
// start: the writer must always come up, durability is best-effort.
func (w *Writer) Hydrate() {
	if !w.cfg.Enabled {
		return
	}

	path := ManifestPath(w.cfg.Root, w.cfg.StreamID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			w.log.Info("no persisted manifest, starting fresh",
				zap.String("stream", w.cfg.StreamID))
			return
		}
		w.log.Warn("failed to read manifest, starting fresh",
			zap.String("path", path), zap.Error(err))
		return
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		w.log.Warn("corrupt manifest, starting fresh",
			zap.String("path", path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.seq = m.Sequence
	w.manifest = m
	w.mu.Unlock()

	if m.LatestSegmentPath != "" {
		body, err := os.ReadFile(m.LatestSegmentPath)
		if err != nil {
			w.log.Warn("failed to load latest segment into cache",
				zap.String("path", m.LatestSegmentPath), zap.Error(err))
			return
		}
		w.mu.Lock()
		w.latest = body
		w.mu.Unlock()
	}

	w.log.Info("hydrated from disk",
		zap.String("stream", w.cfg.StreamID),
		zap.Uint32("sequence", m.Sequence),
		zap.String("latest", m.LatestSegmentPath))
}

// ManifestSnapshot returns a copy of the current manifest.
func (w *Writer) ManifestSnapshot() Manifest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.manifest
}

// LatestSegment returns a copy of the most recently flushed segment body.
// ok is false if nothing has flushed yet.
func (w *Writer) LatestSegment() (body []byte, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return nil, false
	}
	cp := make([]byte, len(w.latest))
	copy(cp, w.latest)
	return cp, true
}

// PendingLen reports how many candles are waiting for the next flush.
func (w *Writer) PendingLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"candlepipe/internal/codec"
	"candlepipe/internal/model"
	"candlepipe/internal/source"
	"candlepipe/pkg/storage/segment"
)

// go test -v --run TestBatcherSequencing
func TestBatcherSequencing(t *testing.T) {
	b := NewBatcher(3)

	var batches []Batch
	for i := 0; i < 9; i++ {
		c := model.Candle{TimestampMs: int64(1000 + i*65)}
		batch, ready := b.Add(c)
		if wantReady := (i+1)%3 == 0; ready != wantReady {
			t.Fatalf("candle %d: ready=%v, want %v", i, ready, wantReady)
		}
		if ready {
			batches = append(batches, batch)
		}
	}

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for i, batch := range batches {
		if batch.Sequence != uint32(i+1) {
			t.Errorf("batch %d: sequence %d, want %d (monotonic from 1)", i, batch.Sequence, i+1)
		}
		if len(batch.Candles) != 3 {
			t.Errorf("batch %d: %d candles, want 3", i, len(batch.Candles))
		}
	}

	// Candles stay strictly ordered across batches, no reordering or replay.
	prev := int64(0)
	for _, batch := range batches {
		for _, c := range batch.Candles {
			if c.TimestampMs <= prev {
				t.Errorf("out-of-order candle at ts %d after %d", c.TimestampMs, prev)
			}
			prev = c.TimestampMs
		}
	}
}

// go test -v --run TestBatcherDefaultSize
func TestBatcherDefaultSize(t *testing.T) {
	b := NewBatcher(0)
	for i := 0; i < DefaultBatchSize-1; i++ {
		if _, ready := b.Add(model.Candle{TimestampMs: int64(i)}); ready {
			t.Fatalf("batch ready after %d candles", i+1)
		}
	}
	if _, ready := b.Add(model.Candle{TimestampMs: 99}); !ready {
		t.Fatal("batch not ready at default size")
	}
}

type captureHub struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (h *captureHub) Broadcast(msg []byte) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
}

func (h *captureHub) messages() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.msgs...)
}

// go test -v --run TestPipelineEndToEnd
func TestPipelineEndToEnd(t *testing.T) {
	root := t.TempDir()

	src := source.NewSynthetic(42, 1)
	src.StartTimeMs = 1700000000000

	hub := &captureHub{}
	writer := segment.NewWriter(segment.Config{
		StreamID:           "m1",
		IntervalMs:         1,
		Enabled:            true,
		Root:               root,
		FlushInterval:      time.Hour,
		SegmentTargetBytes: 1 << 20,
	}, zap.NewNop(), nil)

	p := New("m1", 1, 3, src, hub, writer, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Wait for at least two broadcast batches, then stop the stream.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(hub.messages()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	msgs := hub.messages()
	if len(msgs) < 2 {
		t.Fatalf("expected at least 2 broadcast batches, got %d", len(msgs))
	}

	// Broadcast buffers decode back into sequenced 3-candle batches,
	// arriving in strict sequence order.
	for i, msg := range msgs {
		meta, candles, err := codec.Decode(msg)
		if err != nil {
			t.Fatalf("batch %d: decode failed: %v", i, err)
		}
		if len(candles) != 3 {
			t.Errorf("batch %d: %d candles, want 3", i, len(candles))
		}
		if meta.Sequence != uint32(i+1) {
			t.Errorf("batch %d: sequence %d, want %d", i, meta.Sequence, i+1)
		}
	}

	// Shutdown forced a flush of everything ingested so far.
	m := writer.ManifestSnapshot()
	if m.Sequence == 0 {
		t.Error("no segment flushed by shutdown")
	}
	if _, ok := writer.LatestSegment(); !ok {
		t.Error("latest segment cache empty after shutdown flush")
	}
}

// go test -v --run TestDispatchStrictOrdering
func TestDispatchStrictOrdering(t *testing.T) {
	const batches = 5000

	hub := &captureHub{}
	writer := segment.NewWriter(segment.Config{
		StreamID:           "m1",
		IntervalMs:         1,
		Enabled:            true,
		Root:               t.TempDir(),
		FlushInterval:      time.Hour,
		SegmentTargetBytes: 1 << 24,
	}, zap.NewNop(), nil)

	p := New("m1", 1, 1, nil, hub, writer, zap.NewNop())

	for i := 0; i < batches; i++ {
		c := model.Candle{TimestampMs: int64(1700000000000 + i), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
		batch, ready := p.batcher.Add(c)
		if !ready {
			t.Fatalf("batch of one not ready at candle %d", i)
		}
		p.dispatch(batch)
	}

	// Subscribers observe strictly increasing sequences.
	msgs := hub.messages()
	if len(msgs) != batches {
		t.Fatalf("expected %d broadcast batches, got %d", batches, len(msgs))
	}
	for i, msg := range msgs {
		meta, _, err := codec.Decode(msg)
		if err != nil {
			t.Fatalf("batch %d: decode failed: %v", i, err)
		}
		if meta.Sequence != uint32(i+1) {
			t.Fatalf("broadcast batches out of order at index %d: seq %d, want %d", i, meta.Sequence, i+1)
		}
	}

	// The persisted segment body keeps candle order.
	if err := writer.Flush(true); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	body, ok := writer.LatestSegment()
	if !ok {
		t.Fatal("no segment flushed")
	}
	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	if len(lines) != batches {
		t.Fatalf("expected %d persisted candles, got %d", batches, len(lines))
	}
	prev := int64(0)
	for i, line := range lines {
		c, err := model.ParseLine(line)
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if c.TimestampMs <= prev {
			t.Fatalf("persisted candles out of order at index %d: %d after %d", i, c.TimestampMs, prev)
		}
		prev = c.TimestampMs
	}
}

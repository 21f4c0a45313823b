// Package pipeline wires the tick source, batcher, codec, broadcast hub and
// segment writer into the ingestion loop.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"candlepipe/internal/codec"
	"candlepipe/internal/model"
	"candlepipe/internal/source"
	"candlepipe/pkg/storage/segment"
)

// Broadcaster fans an encoded batch out to live subscribers. Satisfied by
// *broadcast.Hub.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Pipeline runs one stream: it pulls candles from the source, groups them
// into sequenced batches, and hands each batch to the broadcast path and the
// persistence path. Neither path blocks the tick loop, and batches reach
// both paths in sequence order.
type Pipeline struct {
	streamID   string
	intervalMs uint32

	src     source.Source
	batcher *Batcher
	hub     Broadcaster
	writer  *segment.Writer
	log     *zap.Logger
}

func New(streamID string, intervalMs uint32, batchSize int,
	src source.Source, hub Broadcaster, writer *segment.Writer, log *zap.Logger) *Pipeline {
	return &Pipeline{
		streamID:   streamID,
		intervalMs: intervalMs,
		src:        src,
		batcher:    NewBatcher(batchSize),
		hub:        hub,
		writer:     writer,
		log:        log,
	}
}

// Run blocks until the source is exhausted or ctx is cancelled, then performs
// one final forced flush of any pending candles. Waiting on the source is the
// loop's only suspension point; broadcast and persistence of completed
// batches never block it.
func (p *Pipeline) Run(ctx context.Context) error {
	ticks := make(chan model.Candle, p.batcher.size)
	srcErr := make(chan error, 1)
	go func() {
		defer close(ticks)
		srcErr <- p.src.Run(ctx, ticks)
	}()

	p.log.Info("pipeline started",
		zap.String("stream", p.streamID),
		zap.String("source", p.src.Name()),
		zap.Uint32("interval_ms", p.intervalMs))

	for c := range ticks {
		batch, ready := p.batcher.Add(c)
		if !ready {
			continue
		}
		p.dispatch(batch)
	}

	// Exhaustion or cancellation: trade shutdown latency for minimal loss.
	if p.writer.PendingLen() > 0 {
		if err := p.writer.Flush(true); err != nil {
			p.log.Warn("shutdown flush failed",
				zap.String("stream", p.streamID), zap.Error(err))
		}
	}

	err := <-srcErr
	if err != nil {
		p.log.Error("tick source failed", zap.String("stream", p.streamID), zap.Error(err))
		return err
	}
	p.log.Info("pipeline stopped", zap.String("stream", p.streamID))
	return nil
}

// dispatch hands one batch to both downstream paths, in batch order. Both
// calls are non-blocking by construction: Broadcast drops rather than waits
// when the hub queue is full, and Ingest only appends to the pending buffer,
// with any flush running in the background. Keeping the calls synchronous
// preserves strict batch ordering on the wire and in segment bodies.
func (p *Pipeline) dispatch(batch Batch) {
	meta := codec.Metadata{
		IntervalMs: p.intervalMs,
		Sequence:   batch.Sequence,
	}
	buf, _, err := codec.Encode(meta, batch.Candles)
	if err != nil {
		p.log.Warn("failed to encode batch",
			zap.String("stream", p.streamID),
			zap.Uint32("sequence", batch.Sequence), zap.Error(err))
	} else {
		p.hub.Broadcast(buf)
	}

	p.writer.Ingest(batch.Candles)
}

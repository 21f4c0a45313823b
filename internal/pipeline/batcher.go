package pipeline

import "candlepipe/internal/model"

// DefaultBatchSize is the number of candles grouped per batch.
const DefaultBatchSize = 3

// Batch is a bounded, sequenced group of candles handed to the codec and
// the segment writer together.
type Batch struct {
	Sequence uint32
	Candles  []model.Candle
}

// Batcher accumulates candles and drains them as fixed-size batches with a
// monotonic sequence number starting at 1. The counter is owned by this
// instance; independent streams use independent Batchers. Not safe for
// concurrent use: Add is called only from the pipeline's tick loop.
type Batcher struct {
	size int
	seq  uint32
	buf  []model.Candle
}

func NewBatcher(size int) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{size: size, buf: make([]model.Candle, 0, size)}
}

// Add appends one candle. When the buffer reaches the batch size it is
// drained atomically into the returned Batch with the next sequence number.
func (b *Batcher) Add(c model.Candle) (Batch, bool) {
	b.buf = append(b.buf, c)
	if len(b.buf) < b.size {
		return Batch{}, false
	}

	b.seq++
	batch := Batch{Sequence: b.seq, Candles: b.buf}
	b.buf = make([]model.Candle, 0, b.size)
	return batch, true
}

// Pending returns the candles accumulated toward the next batch.
func (b *Batcher) Pending() int {
	return len(b.buf)
}

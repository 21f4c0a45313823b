// Package codec implements the fixed-layout binary wire format for candle
// batches sent to live subscribers.
//
// Layout, all fields little-endian:
//
//	header (32 bytes):
//	  version          u16
//	  candleCount      u16
//	  intervalMs       u32
//	  baseTimestampMs  f64
//	  sentAtMs         f64
//	  sequence         u32
//	  reserved         u32
//	records (24 bytes each):
//	  deltaMs          i32   // from previous record's timestamp, 0 for the first
//	  open             f32
//	  high             f32
//	  low              f32
//	  close            f32
//	  volume           f32
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"candlepipe/internal/model"
)

// Version is the current wire format version.
const Version uint16 = 1

const (
	headerSize = 32
	recordSize = 24

	// FallbackIntervalMs is used when the interval cannot be inferred
	// (fewer than two candles in the batch).
	FallbackIntervalMs = 65
)

var (
	ErrEmptyBatch     = errors.New("codec: empty batch")
	ErrLengthMismatch = errors.New("codec: length mismatch")
)

// Metadata describes one encoded batch. Zero-valued fields are resolved by
// Encode: Version to the current version, BaseTimestampMs to the first
// candle's timestamp, SentAtMs to the current wall clock, and IntervalMs to
// the mean timestamp delta of the batch (or FallbackIntervalMs).
type Metadata struct {
	Version         uint16  `json:"version"`
	IntervalMs      uint32  `json:"interval_ms"`
	BaseTimestampMs float64 `json:"base_timestamp_ms"`
	SentAtMs        float64 `json:"sent_at_ms"`
	Sequence        uint32  `json:"sequence"`
}

// Encode serializes the batch into a freshly allocated buffer. The returned
// metadata is the input with defaults applied; it is what Decode will see.
func Encode(meta Metadata, candles []model.Candle) ([]byte, Metadata, error) {
	if len(candles) == 0 {
		return nil, meta, ErrEmptyBatch
	}
	if len(candles) > math.MaxUint16 {
		return nil, meta, fmt.Errorf("codec: batch of %d exceeds max candle count", len(candles))
	}

	if meta.Version == 0 {
		meta.Version = Version
	}
	if meta.BaseTimestampMs == 0 {
		meta.BaseTimestampMs = float64(candles[0].TimestampMs)
	}
	if meta.SentAtMs == 0 {
		meta.SentAtMs = float64(time.Now().UnixMilli())
	}
	if meta.IntervalMs == 0 {
		meta.IntervalMs = inferIntervalMs(candles)
	}

	buf := make([]byte, headerSize+recordSize*len(candles))
	binary.LittleEndian.PutUint16(buf[0:2], meta.Version)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(candles)))
	binary.LittleEndian.PutUint32(buf[4:8], meta.IntervalMs)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(meta.BaseTimestampMs))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(meta.SentAtMs))
	binary.LittleEndian.PutUint32(buf[24:28], meta.Sequence)
	// buf[28:32] reserved, zero

	prev := candles[0].TimestampMs
	for i, c := range candles {
		off := headerSize + i*recordSize
		delta := c.TimestampMs - prev
		prev = c.TimestampMs

		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(int32(delta)))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], math.Float32bits(float32(c.Open)))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], math.Float32bits(float32(c.High)))
		binary.LittleEndian.PutUint32(buf[off+12:off+16], math.Float32bits(float32(c.Low)))
		binary.LittleEndian.PutUint32(buf[off+16:off+20], math.Float32bits(float32(c.Close)))
		binary.LittleEndian.PutUint32(buf[off+20:off+24], math.Float32bits(float32(c.Volume)))
	}

	return buf, meta, nil
}

// Decode parses an encoded batch. The buffer length must equal exactly
// 32 + 24*candleCount as declared by the header.
func Decode(buf []byte) (Metadata, []model.Candle, error) {
	if len(buf) < headerSize {
		return Metadata{}, nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrLengthMismatch, len(buf))
	}

	count := int(binary.LittleEndian.Uint16(buf[2:4]))
	if want := headerSize + recordSize*count; len(buf) != want {
		return Metadata{}, nil, fmt.Errorf("%w: header declares %d candles (%d bytes), got %d bytes",
			ErrLengthMismatch, count, want, len(buf))
	}

	meta := Metadata{
		Version:         binary.LittleEndian.Uint16(buf[0:2]),
		IntervalMs:      binary.LittleEndian.Uint32(buf[4:8]),
		BaseTimestampMs: math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		SentAtMs:        math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24])),
		Sequence:        binary.LittleEndian.Uint32(buf[24:28]),
	}

	candles := make([]model.Candle, count)
	ts := int64(meta.BaseTimestampMs)
	for i := range candles {
		off := headerSize + i*recordSize
		delta := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		ts += int64(delta)

		candles[i] = model.Candle{
			TimestampMs: ts,
			Open:        float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4 : off+8]))),
			High:        float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+8 : off+12]))),
			Low:         float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+12 : off+16]))),
			Close:       float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+16 : off+20]))),
			Volume:      float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off+20 : off+24]))),
		}
	}

	return meta, candles, nil
}

// inferIntervalMs returns the mean timestamp delta across the batch rounded
// to the nearest millisecond, or FallbackIntervalMs for batches of one.
func inferIntervalMs(candles []model.Candle) uint32 {
	if len(candles) < 2 {
		return FallbackIntervalMs
	}
	span := float64(candles[len(candles)-1].TimestampMs - candles[0].TimestampMs)
	mean := span / float64(len(candles)-1)
	if mean <= 0 {
		return FallbackIntervalMs
	}
	return uint32(math.Round(mean))
}

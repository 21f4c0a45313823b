package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Candle represents a single OHLCV sample.
type Candle struct {
	TimestampMs int64   `json:"timestamp_ms"` // Sample time (in milliseconds since epoch)
	Open        float64 `json:"open"`         // Opening price
	High        float64 `json:"high"`         // Highest price during the interval
	Low         float64 `json:"low"`          // Lowest price during the interval
	Close       float64 `json:"close"`        // Closing price
	Volume      float64 `json:"volume"`       // Trade volume (number of units traded)
}

// Line renders the candle as one line of delimited text:
// "timestamp,open,high,low,close,volume". This is the on-disk segment
// format and the format accepted by the replay source.
func (c Candle) Line() string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(strconv.FormatInt(c.TimestampMs, 10))
	for _, f := range [5]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return b.String()
}

// LineSize returns the serialized size of the candle including the
// trailing newline. The segment writer uses it to estimate pending bytes.
func (c Candle) LineSize() int {
	return len(c.Line()) + 1
}

// ParseLine parses one delimited text line back into a Candle.
func ParseLine(line string) (Candle, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 {
		return Candle{}, fmt.Errorf("candle line: expected 6 fields, got %d", len(fields))
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("candle line: bad timestamp %q: %w", fields[0], err)
	}

	var vals [5]float64
	for i, raw := range fields[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("candle line: bad field %q: %w", raw, err)
		}
		vals[i] = v
	}

	return Candle{
		TimestampMs: ts,
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
	}, nil
}

// RenderLines serializes candles as newline-delimited text, one candle per
// line with a trailing newline. An empty slice renders as an empty string.
func RenderLines(candles []Candle) string {
	if len(candles) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range candles {
		b.WriteString(c.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

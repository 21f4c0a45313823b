package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"candlepipe/internal/model"
)

// Replay reads a delimited historical record line-by-line and yields one
// candle per interval to emulate real-time arrival. The record uses the same
// line format segments are written in, so a persisted segment can be fed
// straight back through the pipeline.
type Replay struct {
	Path       string
	IntervalMs int
	Logger     *zap.Logger
}

func NewReplay(path string, intervalMs int, logger *zap.Logger) *Replay {
	return &Replay{Path: path, IntervalMs: intervalMs, Logger: logger}
}

func (r *Replay) Name() string { return "replay" }

// Run streams the record until it is exhausted or ctx is cancelled. Reaching
// the end of the record is a clean termination, not an error. Lines whose
// timestamp is missing or unparsable fall back to the previous timestamp plus
// one interval so progression stays monotonic; lines that are otherwise
// malformed are skipped with a warning.
func (r *Replay) Run(ctx context.Context, out chan<- model.Candle) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return fmt.Errorf("replay: open record: %w", err)
	}
	defer f.Close()

	delay := time.Duration(r.IntervalMs) * time.Millisecond
	var prevTs int64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c, ok := r.parseLine(line, prevTs)
		if !ok {
			continue
		}
		prevTs = c.TimestampMs

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}

		select {
		case out <- c:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay: read record: %w", err)
	}

	return nil
}

func (r *Replay) parseLine(line string, prevTs int64) (model.Candle, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != 6 {
		r.Logger.Warn("skipping malformed replay line",
			zap.Int("fields", len(fields)), zap.String("line", line))
		return model.Candle{}, false
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		// Missing or unparsable timestamp: keep the walk monotonic.
		ts = prevTs + int64(r.IntervalMs)
	}

	var vals [5]float64
	for i, raw := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			r.Logger.Warn("skipping replay line with bad price field",
				zap.String("field", raw), zap.String("line", line))
			return model.Candle{}, false
		}
		vals[i] = v
	}

	return model.Candle{
		TimestampMs: ts,
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
	}, true
}

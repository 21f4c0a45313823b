package source

import (
	"context"
	"math"
	"math/rand"
	"time"

	"candlepipe/internal/model"
)

// Synthetic drives a seeded bounded random walk. Given the same seed and
// start time it produces the same candle sequence, which the tests rely on.
type Synthetic struct {
	Seed         int64
	IntervalMs   int
	StartTimeMs  int64 // 0 means "wall clock at Run"
	StartPrice   float64
	MaxDrift     float64 // bound on |close - open| per tick
	WickScale    float64 // bound on the random high/low extension
	BaseVolume   float64
	VolumeJitter float64
}

// NewSynthetic returns a synthetic source with sensible walk parameters.
func NewSynthetic(seed int64, intervalMs int) *Synthetic {
	return &Synthetic{
		Seed:         seed,
		IntervalMs:   intervalMs,
		StartPrice:   100,
		MaxDrift:     1.5,
		WickScale:    0.75,
		BaseVolume:   1000,
		VolumeJitter: 500,
	}
}

func (s *Synthetic) Name() string { return "synthetic" }

// Run emits one candle per interval until ctx is cancelled. The sequence is
// infinite; cancellation is the only way out.
func (s *Synthetic) Run(ctx context.Context, out chan<- model.Candle) error {
	rng := rand.New(rand.NewSource(s.Seed))

	ts := s.StartTimeMs
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	price := s.StartPrice

	ticker := time.NewTicker(time.Duration(s.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		c := s.next(rng, ts, price)
		price = c.Close
		ts += int64(s.IntervalMs)

		select {
		case out <- c:
		case <-ctx.Done():
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Synthetic) next(rng *rand.Rand, ts int64, open float64) model.Candle {
	close := open + (rng.Float64()*2-1)*s.MaxDrift
	high := math.Max(open, close) + rng.Float64()*s.WickScale
	low := math.Min(open, close) - rng.Float64()*s.WickScale
	volume := s.BaseVolume + rng.Float64()*s.VolumeJitter

	return model.Candle{
		TimestampMs: ts,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       close,
		Volume:      volume,
	}
}

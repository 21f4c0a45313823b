// Package source provides tick sources that feed the pipeline with candles.
package source

import (
	"context"

	"candlepipe/internal/model"
)

// Source produces candles onto out until the context is cancelled or the
// source is exhausted. Run blocks; it returns nil both on cancellation and
// on natural exhaustion (a finite source reaching its end is not an error).
// The caller owns out and closes it after Run returns.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- model.Candle) error
}

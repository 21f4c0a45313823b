package postgres

import "time"

// CandleRecord is one archived candle row. Rows are immutable once written;
// the unique index makes re-archiving a flushed segment idempotent.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	StreamID string    `gorm:"type:text;not null;index:idx_candle_stream;index:idx_stream_bucket,unique"`
	Bucket   time.Time `gorm:"not null;index:idx_stream_bucket,unique"`

	Open  float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`

	Volume float64 `gorm:"type:numeric;not null"`

	// FlushSequence is the segment sequence the row was flushed under.
	FlushSequence uint32 `gorm:"not null"`

	ArchivedAt time.Time `gorm:"autoCreateTime"`
}

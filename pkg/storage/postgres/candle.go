package postgres

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"candlepipe/internal/model"
)

// ArchiveFlush inserts one flushed segment's candles. Duplicate
// (stream_id, bucket) rows are skipped, so retrying a flush is safe.
// Satisfies segment.Archiver.
func (p *PostgresClient) ArchiveFlush(ctx context.Context, streamID string, seq uint32, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	records := ToCandleRecords(streamID, seq, candles)
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stream_id"},
			{Name: "bucket"},
		},
		DoNothing: true,
	}).Create(&records)

	return tx.Error
}

// GetCandles returns archived candles for a stream in a time range, oldest
// first.
func (p *PostgresClient) GetCandles(ctx context.Context, streamID string, from, to time.Time) ([]CandleRecord, error) {
	var rows []CandleRecord
	err := p.DB.WithContext(ctx).
		Where("stream_id = ? AND bucket >= ? AND bucket < ?", streamID, from, to).
		Order("bucket ASC").
		Find(&rows).Error

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteOldCandles removes archive rows older than the cutoff.
func (p *PostgresClient) DeleteOldCandles(ctx context.Context, streamID string, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("stream_id = ? AND bucket < ?", streamID, before).
		Delete(&CandleRecord{}).Error
}

// ToCandleRecords converts flushed candles into archive rows.
func ToCandleRecords(streamID string, seq uint32, candles []model.Candle) []CandleRecord {
	records := make([]CandleRecord, 0, len(candles))
	for _, c := range candles {
		records = append(records, CandleRecord{
			StreamID:      streamID,
			Bucket:        time.UnixMilli(c.TimestampMs),
			Open:          c.Open,
			High:          c.High,
			Low:           c.Low,
			Close:         c.Close,
			Volume:        c.Volume,
			FlushSequence: seq,
		})
	}
	return records
}

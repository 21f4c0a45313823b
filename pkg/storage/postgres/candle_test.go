package postgres

import (
	"testing"
	"time"

	"candlepipe/internal/model"
)

// go test -v --run TestToCandleRecords
func TestToCandleRecords(t *testing.T) {
	candles := []model.Candle{
		{TimestampMs: 1700000000000, Open: 100, High: 105, Low: 99, Close: 104, Volume: 12500},
		{TimestampMs: 1700000000065, Open: 104, High: 106, Low: 101, Close: 103, Volume: 10250},
	}

	records := ToCandleRecords("m1", 7, candles)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	for i, r := range records {
		if r.StreamID != "m1" {
			t.Errorf("record %d: stream %q, want m1", i, r.StreamID)
		}
		if r.FlushSequence != 7 {
			t.Errorf("record %d: flush sequence %d, want 7", i, r.FlushSequence)
		}
		if !r.Bucket.Equal(time.UnixMilli(candles[i].TimestampMs)) {
			t.Errorf("record %d: bucket %v does not match candle timestamp", i, r.Bucket)
		}
		if r.Open != candles[i].Open || r.Close != candles[i].Close ||
			r.High != candles[i].High || r.Low != candles[i].Low ||
			r.Volume != candles[i].Volume {
			t.Errorf("record %d: OHLCV mismatch: %+v", i, r)
		}
	}
}

// go test -v --run TestToCandleRecordsEmpty
func TestToCandleRecordsEmpty(t *testing.T) {
	if got := ToCandleRecords("m1", 1, nil); len(got) != 0 {
		t.Errorf("expected no records for empty flush, got %d", len(got))
	}
}

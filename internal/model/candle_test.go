package model

import (
	"strings"
	"testing"
)

// go test -v --run TestLineRoundTrip
func TestLineRoundTrip(t *testing.T) {
	in := Candle{TimestampMs: 1700000000000, Open: 42000.5, High: 42100.25, Low: 41900.75, Close: 42050, Volume: 123.5}

	out, err := ParseLine(in.Line())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}

	if in.LineSize() != len(in.Line())+1 {
		t.Errorf("line size must include the trailing newline")
	}
}

// go test -v --run TestParseLineRejects
func TestParseLineRejects(t *testing.T) {
	cases := map[string]string{
		"empty line":      "",
		"too few fields":  "1000,100,105,99,104",
		"too many fields": "1000,100,105,99,104,12500,1",
		"bad timestamp":   "abc,100,105,99,104,12500",
		"bad price":       "1000,100,oops,99,104,12500",
	}
	for name, line := range cases {
		if _, err := ParseLine(line); err == nil {
			t.Errorf("%s: expected error for line %q", name, line)
		}
	}
}

// go test -v --run TestRenderLines
func TestRenderLines(t *testing.T) {
	if got := RenderLines(nil); got != "" {
		t.Errorf("empty slice must render empty, got %q", got)
	}

	candles := []Candle{
		{TimestampMs: 1000, Open: 100, High: 105, Low: 99, Close: 104, Volume: 12500},
		{TimestampMs: 1065, Open: 104, High: 106, Low: 101, Close: 103, Volume: 10250},
	}
	body := RenderLines(candles)
	if !strings.HasSuffix(body, "\n") {
		t.Error("body must end with a newline")
	}
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "1000,100,105,99,104,12500" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
}

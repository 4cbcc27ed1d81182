package timestamp

import (
	"testing"
	"time"
)

var (
	testTime   = time.Date(2023, 1, 15, 12, 30, 45, 123000000, time.UTC)
	testTimeMs = int64(1673785845123)
)

func TestNow(t *testing.T) {
	before := time.Now().UnixMilli()
	ts := Now()
	after := time.Now().UnixMilli()

	if ts < before || ts > after {
		t.Errorf("Now() = %d, expected between %d and %d", ts, before, after)
	}
}

func TestToUnixMs(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected int64
	}{
		{name: "normal time", input: testTime, expected: testTimeMs},
		{name: "zero time", input: time.Time{}, expected: 0},
		{name: "unix epoch", input: time.Unix(0, 0), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToUnixMs(tt.input)
			if result != tt.expected {
				t.Errorf("ToUnixMs(%v) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFromUnixMs(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected time.Time
	}{
		{name: "normal timestamp", input: testTimeMs, expected: time.UnixMilli(testTimeMs)},
		{name: "zero timestamp", input: 0, expected: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromUnixMs(tt.input)
			if !result.Equal(tt.expected) {
				t.Errorf("FromUnixMs(%d) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	if got := Format(testTimeMs); got != "2023-01-15T12:30:45Z" {
		t.Errorf("Format(%d) = %q", testTimeMs, got)
	}
	if got := Format(0); got != "" {
		t.Errorf("Format(0) = %q, expected empty", got)
	}
}

func TestWindowMath(t *testing.T) {
	now := testTimeMs
	window := 5 * time.Second

	lower := Sub(now, window)
	if lower != now-5000 {
		t.Errorf("Sub(%d, 5s) = %d, expected %d", now, lower, now-5000)
	}
	if Sub(0, window) != 0 {
		t.Error("Sub on zero timestamp should stay zero")
	}

	if Add(lower, window) != now {
		t.Errorf("Add(Sub(now, w), w) != now")
	}

	if d := Between(lower, now); d != window {
		t.Errorf("Between = %v, expected %v", d, window)
	}
	if Between(0, now) != 0 {
		t.Error("Between with zero start should be 0")
	}
}

func TestMinMaxFold(t *testing.T) {
	// Folding event times across updates: zero means "no value yet".
	stamps := []int64{0, 1500, 900, 0, 2100}

	var first, last int64
	for _, ts := range stamps {
		first = Min(first, ts)
		last = Max(last, ts)
	}

	if first != 900 {
		t.Errorf("Min fold = %d, expected 900", first)
	}
	if last != 2100 {
		t.Errorf("Max fold = %d, expected 2100", last)
	}
}

func TestSince(t *testing.T) {
	past := Now() - 1000
	d := Since(past)
	if d < 900*time.Millisecond || d > 5*time.Second {
		t.Errorf("Since(%d) = %v, expected about 1s", past, d)
	}
	if Since(0) != 0 {
		t.Error("Since(0) should be 0")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   int64
		wantErr bool
	}{
		{name: "valid", input: testTimeMs, wantErr: false},
		{name: "zero is valid", input: 0, wantErr: false},
		{name: "negative", input: -1, wantErr: true},
		{name: "far future", input: 42503680000000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%d) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

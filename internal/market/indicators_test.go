package market

import (
	"math"
	"testing"
)

func TestEMAConstantSeries(t *testing.T) {
	vals := make([]float64, 50)
	for i := range vals {
		vals[i] = 42.0
	}

	out := EMA(vals, 12)
	if len(out) != len(vals) {
		t.Fatalf("len = %d, want %d", len(out), len(vals))
	}
	if math.Abs(out[len(out)-1]-42.0) > 1e-9 {
		t.Errorf("EMA of constant series = %v, want 42", out[len(out)-1])
	}
}

func TestEMAConvergesTowardLevel(t *testing.T) {
	// Step from 0 to 100: EMA must approach 100 monotonically.
	vals := make([]float64, 200)
	for i := 100; i < 200; i++ {
		vals[i] = 100.0
	}

	out := EMA(vals, 10)
	last := out[len(out)-1]
	if last < 99.0 || last > 100.0 {
		t.Errorf("EMA after long step = %v, want near 100", last)
	}
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 200 - float64(i)
	}

	if got := RSI(up, 14); got < 99.0 {
		t.Errorf("RSI of straight-up series = %v, want ~100", got)
	}
	if got := RSI(down, 14); got > 1.0 {
		t.Errorf("RSI of straight-down series = %v, want ~0", got)
	}
}

func TestRSITooShort(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); !math.IsNaN(got) {
		t.Errorf("RSI on short series = %v, want NaN", got)
	}
}

func TestMACDTrendSign(t *testing.T) {
	up := make([]float64, 100)
	for i := range up {
		up[i] = 100 + float64(i)
	}

	line, _, _ := MACD(up, 12, 26, 9)
	if line <= 0 {
		t.Errorf("MACD line in uptrend = %v, want > 0", line)
	}

	down := make([]float64, 100)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	line, _, _ = MACD(down, 12, 26, 9)
	if line >= 0 {
		t.Errorf("MACD line in downtrend = %v, want < 0", line)
	}
}

func TestMACDTooShort(t *testing.T) {
	line, sig, hist := MACD([]float64{1, 2, 3}, 12, 26, 9)
	if !math.IsNaN(line) || !math.IsNaN(sig) || !math.IsNaN(hist) {
		t.Error("Expected NaN for short series")
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 50
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100
		highs[i] = 101
		lows[i] = 99
	}

	got := ATR(highs, lows, closes, 14)
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("ATR of constant 2-unit range = %v, want 2", got)
	}
}

func TestEMASlopeSign(t *testing.T) {
	vals := make([]float64, 300)
	for i := range vals {
		vals[i] = 100 + float64(i)*0.5
	}

	if got := EMASlope(vals, 200, 5); got <= 0 {
		t.Errorf("EMASlope in uptrend = %v, want > 0", got)
	}

	if got := EMASlope(vals[:100], 200, 5); !math.IsNaN(got) {
		t.Errorf("EMASlope on short series = %v, want NaN", got)
	}
}

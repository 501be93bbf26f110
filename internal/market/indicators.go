package market

import "math"

// Technical indicator primitives used by the indicator agent.
// All functions return NaN when the input series is too short.

// EMA computes the exponential moving average series, seeded at the
// first value, with smoothing k = 2/(n+1).
func EMA(vals []float64, n int) []float64 {
	if len(vals) == 0 {
		return nil
	}
	k := 2.0 / (float64(n) + 1.0)
	out := make([]float64, len(vals))
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = out[i-1] + k*(vals[i]-out[i-1])
	}
	return out
}

// RSI computes the relative strength index over the last n periods
// using EMA-smoothed up/down moves.
func RSI(closes []float64, n int) float64 {
	if len(closes) < n+2 {
		return math.NaN()
	}

	ups := make([]float64, len(closes)-1)
	downs := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			ups[i-1] = d
		} else {
			downs[i-1] = -d
		}
	}

	upEMA := EMA(ups, n)
	dnEMA := EMA(downs, n)
	rs := upEMA[len(upEMA)-1] / math.Max(1e-12, dnEMA[len(dnEMA)-1])
	return 100.0 - 100.0/(1.0+rs)
}

// MACD returns (line, signal, histogram) for the given fast/slow/signal
// EMA lengths.
func MACD(closes []float64, fast, slow, sig int) (float64, float64, float64) {
	if len(closes) < slow+sig+2 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	f := EMA(closes, fast)
	s := EMA(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	signal := EMA(line, sig)

	l := line[len(line)-1]
	sg := signal[len(signal)-1]
	return l, sg, l - sg
}

// ATR computes the EMA-smoothed average true range over n periods.
func ATR(highs, lows, closes []float64, n int) float64 {
	if len(closes) < n+2 || len(highs) != len(closes) || len(lows) != len(closes) {
		return math.NaN()
	}

	tr := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	smoothed := EMA(tr, n)
	return smoothed[len(smoothed)-1]
}

// EMASlope returns the change of the n-period EMA over the given
// lookback window.
func EMASlope(vals []float64, n, lookback int) float64 {
	if len(vals) < n+lookback+1 {
		return math.NaN()
	}
	e := EMA(vals, n)
	return e[len(e)-1] - e[len(e)-1-lookback]
}

// Package indicators holds the pure numeric functions the strategies build
// on. Every function returns a full sequence aligned to input order and
// returns an empty slice when the window is shorter than its minimum, so
// callers can treat "not enough data" and "no value" uniformly.
package indicators

import (
	"github.com/shopspring/decimal"

	"trading_assistant/internal/models"
)

// SMA computes the simple moving average over the trailing window of closes.
// The first value covers candles [0, window); output index i corresponds to
// candle index window-1+i.
func SMA(candles []models.Candle, window int) []decimal.Decimal {
	if window <= 0 || len(candles) < window {
		return nil
	}

	out := make([]decimal.Decimal, 0, len(candles)-window+1)
	sum := decimal.Zero
	for i, c := range candles {
		sum = sum.Add(c.Close)
		if i >= window {
			sum = sum.Sub(candles[i-window].Close)
		}
		if i >= window-1 {
			out = append(out, sum.Div(decimal.NewFromInt(int64(window))))
		}
	}
	return out
}

// EMA computes the exponential moving average of the closes. The first value
// is the SMA of the first window candles; later values follow
// ema[i] = close[i]*k + ema[i-1]*(1-k) with k = 2/(window+1).
//
// Because of the recurrence, an EMA sequence is only reproducible when the
// caller supplies the same leading history that seeded the first value.
func EMA(candles []models.Candle, window int) []decimal.Decimal {
	if window <= 0 || len(candles) < window {
		return nil
	}
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return emaSeries(closes, window)
}

// emaSeries runs the EMA recurrence over a raw value series. MACD re-feeds
// its main line through this to build the signal line.
func emaSeries(values []decimal.Decimal, window int) []decimal.Decimal {
	if window <= 0 || len(values) < window {
		return nil
	}

	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(window + 1)))
	oneMinusK := decimal.NewFromInt(1).Sub(k)

	seed := decimal.Zero
	for i := 0; i < window; i++ {
		seed = seed.Add(values[i])
	}
	seed = seed.Div(decimal.NewFromInt(int64(window)))

	out := make([]decimal.Decimal, 0, len(values)-window+1)
	out = append(out, seed)
	prev := seed
	for i := window; i < len(values); i++ {
		prev = values[i].Mul(k).Add(prev.Mul(oneMinusK))
		out = append(out, prev)
	}
	return out
}

// RSI computes Wilder's relative strength index. The first value uses simple
// averages over the first period deltas; later values use the smoothed
// recurrence avg = (avg*(period-1) + new) / period. A zero average loss maps
// to exactly 100.
func RSI(candles []models.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}

	gains := make([]float64, 0, len(candles)-1)
	losses := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		change, _ := candles[i].Close.Sub(candles[i-1].Close).Float64()
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(gains)-period+1)
	out = append(out, rsiValue(avgGain, avgLoss))
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD computes the convergence-divergence oscillator. The main line is
// fast EMA minus slow EMA; the signal line is the EMA of the main line; the
// histogram is main minus signal, aligned to the signal line. All three
// slices are empty when fewer than slow candles are supplied, and the signal
// and histogram stay empty until the main line has signalPeriod values.
func MACD(candles []models.Candle, fast, slow, signalPeriod int) (macdLine, signalLine, histogram []decimal.Decimal) {
	if len(candles) < slow {
		return nil, nil, nil
	}

	fastEMA := EMA(candles, fast)
	slowEMA := EMA(candles, slow)
	if fastEMA == nil || slowEMA == nil {
		return nil, nil, nil
	}

	// The slow EMA starts slow-fast samples later than the fast one.
	offset := slow - fast
	macdLine = make([]decimal.Decimal, len(slowEMA))
	for i := range slowEMA {
		macdLine[i] = fastEMA[i+offset].Sub(slowEMA[i])
	}

	if len(macdLine) < signalPeriod {
		return macdLine, nil, nil
	}

	signalLine = emaSeries(macdLine, signalPeriod)
	histogram = make([]decimal.Decimal, len(signalLine))
	start := len(macdLine) - len(signalLine)
	for i := range signalLine {
		histogram[i] = macdLine[i+start].Sub(signalLine[i])
	}
	return macdLine, signalLine, histogram
}

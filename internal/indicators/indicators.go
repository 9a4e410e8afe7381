// Package indicators provides pure technical-indicator functions over price
// and volume series. Every function tolerates short history by returning a
// neutral default, so callers always receive a usable value.
package indicators

import (
	"math"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// Band is the coarse interpretation attached to an indicator value.
type Band string

const (
	BandOversold   Band = "oversold"
	BandOverbought Band = "overbought"
	BandBullish    Band = "bullish"
	BandBearish    Band = "bearish"
	BandNeutral    Band = "neutral"
)

// RSI computes the relative strength index over the last period changes using
// simple averages of gains and losses. With fewer than period+1 closes it
// returns the neutral 50.
func RSI(closes []float64, period int) (float64, Band) {
	if period <= 0 || len(closes) < period+1 {
		return 50, BandNeutral
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	var value float64
	switch {
	case avgLoss == 0 && avgGain == 0:
		value = 50
	case avgLoss == 0:
		value = 100
	default:
		rs := avgGain / avgLoss
		value = 100 - 100/(1+rs)
	}

	switch {
	case value < 30:
		return value, BandOversold
	case value > 70:
		return value, BandOverbought
	default:
		return value, BandNeutral
	}
}

// SMA returns the simple moving average of the last period closes. Short
// history falls back to the last close (neutral: price sits on its average).
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) == 0 {
		return 0
	}
	if len(closes) < period {
		return closes[len(closes)-1]
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the first price.
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) == 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = c*k + ema*(1-k)
	}
	return ema
}

// emaSeries computes the running EMA for every point of the input.
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACDResult carries the MACD line, its signal line and their difference.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
	Band      Band
}

// MACD computes the moving average convergence divergence: the difference of
// the fast and slow EMAs, with an EMA-smoothed signal line. Short history
// yields the zeroed neutral result.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	if len(closes) < slow || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{Band: BandNeutral}
	}

	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := emaSeries(line, signal)

	last := len(closes) - 1
	res := MACDResult{
		Line:      line[last],
		Signal:    signalSeries[last],
		Histogram: line[last] - signalSeries[last],
	}
	switch {
	case res.Histogram > 0:
		res.Band = BandBullish
	case res.Histogram < 0:
		res.Band = BandBearish
	default:
		res.Band = BandNeutral
	}
	return res
}

// BollingerResult carries the band levels plus the derived %B and bandwidth
// ratios.
type BollingerResult struct {
	Upper     float64
	Middle    float64
	Lower     float64
	PercentB  float64
	Bandwidth float64
	Band      Band
}

// BollingerBands computes period-SMA bands at mult population standard
// deviations. Short history returns flat bands around the last close with a
// neutral %B of 0.5.
func BollingerBands(closes []float64, period int, mult float64) BollingerResult {
	if period <= 0 || len(closes) == 0 {
		return BollingerResult{PercentB: 0.5, Band: BandNeutral}
	}
	if len(closes) < period {
		last := closes[len(closes)-1]
		return BollingerResult{Upper: last, Middle: last, Lower: last, PercentB: 0.5, Band: BandNeutral}
	}

	window := closes[len(closes)-period:]
	mean := 0.0
	for _, c := range window {
		mean += c
	}
	mean /= float64(period)

	variance := 0.0
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(period))

	res := BollingerResult{
		Upper:  mean + mult*stdDev,
		Middle: mean,
		Lower:  mean - mult*stdDev,
	}
	last := closes[len(closes)-1]
	if width := res.Upper - res.Lower; width > 0 {
		res.PercentB = (last - res.Lower) / width
	} else {
		res.PercentB = 0.5
	}
	if res.Middle != 0 {
		res.Bandwidth = (res.Upper - res.Lower) / res.Middle
	}
	switch {
	case res.PercentB < 0:
		res.Band = BandOversold
	case res.PercentB > 1:
		res.Band = BandOverbought
	default:
		res.Band = BandNeutral
	}
	return res
}

// trueRange is the max of the three candidate ranges across consecutive bars.
func trueRange(cur, prev models.PriceBar) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR is the mean of the last period true-range values. Short history returns
// 0.
func ATR(bars []models.PriceBar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += trueRange(bars[i], bars[i-1])
	}
	return sum / float64(period)
}

// StochasticResult carries %K, the %D smoothing, and the band read.
type StochasticResult struct {
	K    float64
	D    float64
	Band Band
}

// Stochastic computes the stochastic oscillator: %K from the kPeriod
// high/low range, %D as the SMA of the last dPeriod %K values. Short history
// returns the 50/50 neutral.
func Stochastic(bars []models.PriceBar, kPeriod, dPeriod int) StochasticResult {
	if kPeriod <= 0 || dPeriod <= 0 || len(bars) < kPeriod+dPeriod-1 {
		return StochasticResult{K: 50, D: 50, Band: BandNeutral}
	}

	kValues := make([]float64, dPeriod)
	for j := 0; j < dPeriod; j++ {
		end := len(bars) - (dPeriod - 1 - j)
		window := bars[end-kPeriod : end]
		low, high := window[0].Low, window[0].High
		for _, b := range window[1:] {
			low = math.Min(low, b.Low)
			high = math.Max(high, b.High)
		}
		if high == low {
			kValues[j] = 50
			continue
		}
		kValues[j] = (window[len(window)-1].Close - low) / (high - low) * 100
	}

	k := kValues[len(kValues)-1]
	d := 0.0
	for _, v := range kValues {
		d += v
	}
	d /= float64(dPeriod)

	res := StochasticResult{K: k, D: d}
	switch {
	case k < 20:
		res.Band = BandOversold
	case k > 80:
		res.Band = BandOverbought
	default:
		res.Band = BandNeutral
	}
	return res
}

// OBV accumulates volume in the direction of each close-to-close move.
func OBV(bars []models.PriceBar) (float64, Band) {
	if len(bars) < 2 {
		return 0, BandNeutral
	}
	obv := 0.0
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Volume
		}
	}
	switch {
	case obv > 0:
		return obv, BandBullish
	case obv < 0:
		return obv, BandBearish
	default:
		return obv, BandNeutral
	}
}

// MFI computes the money flow index over the last period bars from typical
// prices and volume. Short history returns the neutral 50.
func MFI(bars []models.PriceBar, period int) (float64, Band) {
	if period <= 0 || len(bars) < period+1 {
		return 50, BandNeutral
	}

	typical := func(b models.PriceBar) float64 { return (b.High + b.Low + b.Close) / 3 }

	var positive, negative float64
	for i := len(bars) - period; i < len(bars); i++ {
		tp := typical(bars[i])
		prev := typical(bars[i-1])
		flow := tp * bars[i].Volume
		switch {
		case tp > prev:
			positive += flow
		case tp < prev:
			negative += flow
		}
	}

	var value float64
	switch {
	case positive == 0 && negative == 0:
		value = 50
	case negative == 0:
		value = 100
	default:
		value = 100 - 100/(1+positive/negative)
	}

	switch {
	case value < 20:
		return value, BandOversold
	case value > 80:
		return value, BandOverbought
	default:
		return value, BandNeutral
	}
}

// Closes extracts the closing-price series from a bar series.
func Closes(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

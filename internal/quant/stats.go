package quant

import "math"

// tradingDaysPerYear is the annualization factor for daily series.
const tradingDaysPerYear = 252

// MaxDrawdown returns the largest peak-to-trough decline of an equity curve
// as a fraction of the peak. An empty or non-declining curve yields 0.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// SharpeRatio computes the annualized Sharpe ratio of a daily return series
// against an annual risk-free rate, using population variance and a 252-day
// factor. A zero standard deviation yields 0.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := StdDev(returns)
	if std == 0 {
		return 0
	}
	dailyRiskFree := riskFreeRate / tradingDaysPerYear
	excess := Mean(returns) - dailyRiskFree
	return excess / std * math.Sqrt(tradingDaysPerYear)
}

// AnnualizedVolatility scales the standard deviation of daily returns by
// sqrt(252) and expresses it as a percentage.
func AnnualizedVolatility(returns []float64) float64 {
	return StdDev(returns) * math.Sqrt(tradingDaysPerYear) * 100
}

// Package risk provides stateless risk metric calculations: position sizing,
// drawdown, Sharpe ratio, Value-at-Risk, and return-series correlation.
package risk

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"master-agent/internal/errors"
)

const (
	tradingDaysPerYear = 252

	// DefaultPositionSizeCap caps a single position at this percent of
	// account value.
	DefaultPositionSizeCap = 2.0

	// DefaultRiskFreeRate is the annual risk-free rate used for Sharpe.
	DefaultRiskFreeRate = 0.02

	// DefaultVaRConfidence is the confidence level for Value-at-Risk.
	DefaultVaRConfidence = 0.95
)

// Calculator computes risk metrics. All methods are pure with respect to
// Calculator state; the struct only carries configuration and a logger.
type Calculator struct {
	log             zerolog.Logger
	positionSizeCap float64 // percent of account value
}

// NewCalculator creates a Calculator with the default position size cap.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log:             log,
		positionSizeCap: DefaultPositionSizeCap,
	}
}

// NewCalculatorWithCap creates a Calculator with a custom position size cap.
func NewCalculatorWithCap(log zerolog.Logger, capPercent float64) *Calculator {
	return &Calculator{
		log:             log,
		positionSizeCap: capPercent,
	}
}

// PositionSize returns the position size that risks riskPerTradePct of the
// account at the given stop-loss distance, capped at the configured percent
// of account value. A non-positive stop loss is an error: it would otherwise
// produce an unbounded size.
func (c *Calculator) PositionSize(accountValue, riskPerTradePct, stopLossPct float64) (float64, error) {
	if stopLossPct <= 0 {
		return 0, errors.ErrZeroStopLoss
	}

	maxLoss := accountValue * (riskPerTradePct / 100)
	size := maxLoss / (stopLossPct / 100)

	maxPosition := accountValue * (c.positionSizeCap / 100)
	if size > maxPosition {
		size = maxPosition
	}

	return size, nil
}

// DrawdownResult holds maximum and current drawdown percentages.
type DrawdownResult struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
}

// Drawdown computes the maximum and current percentage decline from the
// running peak of an equity curve. An empty curve yields a zero result.
func (c *Calculator) Drawdown(equityCurve []float64) DrawdownResult {
	if len(equityCurve) == 0 {
		return DrawdownResult{}
	}

	var result DrawdownResult
	peak := equityCurve[0]
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		var dd float64
		if peak != 0 {
			dd = (peak - equity) / peak * 100
		}
		if dd > result.MaxDrawdown {
			result.MaxDrawdown = dd
		}
		result.CurrentDrawdown = dd
	}

	return result
}

// SharpeRatio computes the annualized Sharpe ratio of a daily return series.
// Returns 0 for fewer than 2 observations or a zero-variance series.
func (c *Calculator) SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	daily := riskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - daily
	}

	m := mean(excess)
	sd := stddev(excess, m)
	if sd == 0 {
		return 0
	}

	return math.Sqrt(tradingDaysPerYear) * m / sd
}

// ValueAtRisk computes the absolute value of the (1-confidence) percentile of
// the return distribution, using linear interpolation between order
// statistics. An empty series yields 0.
func (c *Calculator) ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return math.Abs(percentile(returns, (1-confidence)*100))
}

// Correlation computes the Pearson correlation coefficient of two return
// series. Mismatched lengths return 0 with a warning; no partial alignment
// is attempted. A zero-variance series also yields 0.
func (c *Calculator) Correlation(a, b []float64) float64 {
	if len(a) != len(b) {
		c.log.Warn().
			Int("len_a", len(a)).
			Int("len_b", len(b)).
			Msg("Return series have different lengths")
		return 0
	}
	if len(a) == 0 {
		return 0
	}

	meanA := mean(a)
	meanB := mean(b)

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	denom := math.Sqrt(varA * varB)
	if denom == 0 {
		return 0
	}
	return cov / denom
}

// PositionReturns pairs a position's symbol with its per-period return series
// for correlation analysis.
type PositionReturns struct {
	Symbol  string    `json:"symbol"`
	Returns []float64 `json:"-"`
}

// Metrics bundles the aggregate risk picture at a point in time.
// MaxCorrelation is only set when at least two positions supplied return
// series.
type Metrics struct {
	Drawdown       DrawdownResult `json:"drawdown"`
	Sharpe         float64        `json:"sharpe"`
	VaR95          float64        `json:"var_95"`
	PositionCount  int            `json:"position_count"`
	MaxCorrelation *float64       `json:"max_correlation,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// AggregateRiskMetrics computes the combined risk metrics for the supplied
// positions, portfolio return series, and equity curve. Every unordered pair
// of positions is evaluated exactly once for the maximum correlation.
func (c *Calculator) AggregateRiskMetrics(positions []PositionReturns, returns, equityCurve []float64) Metrics {
	metrics := Metrics{
		Drawdown:      c.Drawdown(equityCurve),
		Sharpe:        c.SharpeRatio(returns, DefaultRiskFreeRate),
		VaR95:         c.ValueAtRisk(returns, DefaultVaRConfidence),
		PositionCount: len(positions),
		Timestamp:     time.Now(),
	}

	if len(positions) > 1 {
		maxCorr := math.Inf(-1)
		for i := 0; i < len(positions); i++ {
			for j := i + 1; j < len(positions); j++ {
				corr := c.Correlation(positions[i].Returns, positions[j].Returns)
				if corr > maxCorr {
					maxCorr = corr
				}
			}
		}
		metrics.MaxCorrelation = &maxCorr
	}

	return metrics
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation around the given mean.
func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// percentile computes the p-th percentile (0-100) with linear interpolation
// between closest ranks.
func percentile(xs []float64, p float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

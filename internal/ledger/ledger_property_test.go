package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"master-agent/internal/models"
)

// Property: after any sequence of opens and closes, total exposure equals
// the sum of entry notionals over the open positions, the open-position
// count never exceeds the cap, and exposure never exceeds the limit.
func TestProperty_ExposureInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	type op struct {
		Open   bool
		Symbol string
		Size   float64
		Price  float64
	}

	symbols := []string{"A", "B", "C", "D", "E"}

	opGen := gopter.CombineGens(
		gen.Bool(),
		gen.IntRange(0, len(symbols)-1),
		gen.Float64Range(0.1, 10),
		gen.Float64Range(1, 5000),
	).Map(func(values []interface{}) op {
		return op{
			Open:   values[0].(bool),
			Symbol: symbols[values[1].(int)],
			Size:   values[2].(float64),
			Price:  values[3].(float64),
		}
	})

	properties.Property("exposure equals sum of open notionals and caps hold", prop.ForAll(
		func(ops []op) bool {
			const maxPositions = 3
			const maxExposure = 20000.0
			l := New(zerolog.Nop(), WithLimits(maxPositions, maxExposure))

			for _, o := range ops {
				if o.Open {
					l.Open(o.Symbol, o.Size, o.Price, models.Long, 0, 0)
				} else {
					l.Close(o.Symbol, o.Price)
				}

				if l.Count() > maxPositions {
					return false
				}
				if l.Exposure() > maxExposure+1e-6 {
					return false
				}

				var sum float64
				for _, p := range l.Positions() {
					sum += p.Notional()
				}
				if math.Abs(sum-l.Exposure()) > 1e-6 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(opGen),
	))

	properties.TestingRun(t)
}

// Property: under the replace policy a symbol never has more than one open
// position, and realized P&L from replacement closes is always zero.
func TestProperty_ReplaceKeepsOnePositionPerSymbol(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("replace policy keeps one position per symbol", prop.ForAll(
		func(sizes []float64) bool {
			l := New(zerolog.Nop(), WithReopenPolicy(ReopenReplace))

			for _, size := range sizes {
				l.Open("BTC/USDT", size, 100, models.Long, 0, 0)
				if l.Count() > 1 {
					return false
				}
			}
			return l.RealizedPnL() == 0
		},
		gen.SliceOf(gen.Float64Range(0.1, 5)),
	))

	properties.TestingRun(t)
}

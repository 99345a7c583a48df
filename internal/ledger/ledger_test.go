package ledger

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"master-agent/internal/models"
	"master-agent/internal/store"
)

func newTestLedger(opts ...Option) *Ledger {
	return New(zerolog.Nop(), opts...)
}

// journalSpy records only the close reasons.
type journalSpy struct {
	store.NopJournal
	reasons []models.CloseReason
}

func (j *journalSpy) LogTrade(_ context.Context, trade *models.TradeRecord) error {
	j.reasons = append(j.reasons, trade.Reason)
	return nil
}

func TestOpenAndClose(t *testing.T) {
	l := newTestLedger()

	if !l.Open("BTC/USDT", 1, 100, models.Long, 0, 0) {
		t.Fatal("Open returned false")
	}
	if got := l.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	if got := l.Exposure(); got != 100 {
		t.Fatalf("Exposure = %v, want 100", got)
	}

	if !l.Close("BTC/USDT", 110) {
		t.Fatal("Close returned false")
	}
	if got := l.Count(); got != 0 {
		t.Fatalf("Count after close = %d, want 0", got)
	}
	if got := l.Exposure(); got != 0 {
		t.Fatalf("Exposure after close = %v, want 0", got)
	}
	if got := l.RealizedPnL(); got != 10 {
		t.Fatalf("RealizedPnL = %v, want 10", got)
	}
}

func TestCloseUnknownSymbol(t *testing.T) {
	l := newTestLedger()

	if l.Close("ETH/USDT", 100) {
		t.Fatal("Close of unknown symbol returned true")
	}
}

func TestPositionCountLimit(t *testing.T) {
	l := newTestLedger(WithLimits(2, DefaultMaxExposure))

	if !l.Open("A", 1, 10, models.Long, 0, 0) {
		t.Fatal("first Open returned false")
	}
	if !l.Open("B", 1, 10, models.Long, 0, 0) {
		t.Fatal("second Open returned false")
	}
	if l.Open("C", 1, 10, models.Long, 0, 0) {
		t.Fatal("Open beyond count limit returned true")
	}
	if got := l.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
}

func TestExposureLimit(t *testing.T) {
	l := newTestLedger(WithLimits(10, 1000))

	if !l.Open("A", 1, 900, models.Long, 0, 0) {
		t.Fatal("Open within exposure returned false")
	}
	if l.Open("B", 1, 200, models.Long, 0, 0) {
		t.Fatal("Open beyond exposure limit returned true")
	}
	// Exactly at the cap is allowed.
	if !l.Open("B", 1, 100, models.Long, 0, 0) {
		t.Fatal("Open at exact exposure cap returned false")
	}
	if got := l.Exposure(); got != 1000 {
		t.Fatalf("Exposure = %v, want 1000", got)
	}
}

func TestReopenRejected(t *testing.T) {
	l := newTestLedger()

	if !l.Open("BTC/USDT", 1, 100, models.Long, 0, 0) {
		t.Fatal("first Open returned false")
	}
	if l.Open("BTC/USDT", 2, 200, models.Short, 0, 0) {
		t.Fatal("re-open under reject policy returned true")
	}

	positions := l.Positions()
	if len(positions) != 1 || positions[0].Size != 1 || positions[0].Direction != models.Long {
		t.Fatalf("original position was disturbed: %+v", positions)
	}
}

func TestReopenReplace(t *testing.T) {
	l := newTestLedger(WithReopenPolicy(ReopenReplace))

	if !l.Open("BTC/USDT", 1, 100, models.Long, 0, 0) {
		t.Fatal("first Open returned false")
	}
	if !l.Open("BTC/USDT", 2, 50, models.Short, 0, 0) {
		t.Fatal("replace Open returned false")
	}

	positions := l.Positions()
	if len(positions) != 1 {
		t.Fatalf("len(Positions) = %d, want 1", len(positions))
	}
	if positions[0].Direction != models.Short || positions[0].Size != 2 {
		t.Fatalf("replacement not in effect: %+v", positions[0])
	}
	// Old notional released, new one booked.
	if got := l.Exposure(); got != 100 {
		t.Fatalf("Exposure = %v, want 100", got)
	}
	// Replacement close at entry price realizes zero P&L.
	if got := l.RealizedPnL(); got != 0 {
		t.Fatalf("RealizedPnL = %v, want 0", got)
	}
}

func TestReopenReplaceRespectsExposureCap(t *testing.T) {
	l := newTestLedger(WithReopenPolicy(ReopenReplace), WithLimits(10, 1000))

	if !l.Open("A", 1, 600, models.Long, 0, 0) {
		t.Fatal("Open returned false")
	}
	if !l.Open("B", 1, 300, models.Long, 0, 0) {
		t.Fatal("Open returned false")
	}
	// Replacing A frees 600 but books 800: projected 300+800 = 1100 > 1000.
	if l.Open("A", 1, 800, models.Long, 0, 0) {
		t.Fatal("replace that breaches the exposure cap returned true")
	}
	// 300 + 650 = 950 fits.
	if !l.Open("A", 1, 650, models.Long, 0, 0) {
		t.Fatal("replace within the exposure cap returned false")
	}
	if got := l.Exposure(); got != 950 {
		t.Fatalf("Exposure = %v, want 950", got)
	}
}

func TestStopLossLong(t *testing.T) {
	l := newTestLedger()
	l.Open("BTC/USDT", 1, 100, models.Long, 90, 0)

	l.UpdateAll(map[string]float64{"BTC/USDT": 95})
	if got := l.Count(); got != 1 {
		t.Fatalf("position closed above stop loss, Count = %d", got)
	}

	l.UpdateAll(map[string]float64{"BTC/USDT": 90})
	if got := l.Count(); got != 0 {
		t.Fatalf("position not closed at stop loss, Count = %d", got)
	}
	if got := l.RealizedPnL(); got != -10 {
		t.Fatalf("RealizedPnL = %v, want -10", got)
	}
}

func TestStopLossShort(t *testing.T) {
	l := newTestLedger()
	l.Open("BTC/USDT", 1, 100, models.Short, 110, 0)

	l.UpdateAll(map[string]float64{"BTC/USDT": 110})
	if got := l.Count(); got != 0 {
		t.Fatalf("short not closed at stop loss, Count = %d", got)
	}
	if got := l.RealizedPnL(); got != -10 {
		t.Fatalf("RealizedPnL = %v, want -10", got)
	}
}

func TestTakeProfit(t *testing.T) {
	l := newTestLedger()
	l.Open("BTC/USDT", 2, 100, models.Long, 0, 120)
	l.Open("ETH/USDT", 1, 50, models.Short, 0, 40)

	l.UpdateAll(map[string]float64{"BTC/USDT": 125, "ETH/USDT": 38})
	if got := l.Count(); got != 0 {
		t.Fatalf("take profits not triggered, Count = %d", got)
	}
	// Long: (125-100)*2 = 50; short: (38-50)*1*-1 = 12.
	if got := l.RealizedPnL(); got != 62 {
		t.Fatalf("RealizedPnL = %v, want 62", got)
	}
}

func TestStopLossWinsOverTakeProfit(t *testing.T) {
	// Inverted levels so one price satisfies both exits. Stop loss is
	// checked first and must win.
	l := newTestLedger()
	l.Open("BTC/USDT", 1, 100, models.Long, 105, 95)

	j := &journalSpy{}
	l.journal = j
	l.UpdateAll(map[string]float64{"BTC/USDT": 105})

	if len(j.reasons) != 1 || j.reasons[0] != models.CloseStopLoss {
		t.Fatalf("close reasons = %v, want [stop_loss]", j.reasons)
	}
}

func TestZeroLevelsNeverAutoClose(t *testing.T) {
	l := newTestLedger()
	l.Open("BTC/USDT", 1, 100, models.Long, 0, 0)

	l.UpdateAll(map[string]float64{"BTC/USDT": 0.0001})
	l.UpdateAll(map[string]float64{"BTC/USDT": 1e9})
	if got := l.Count(); got != 1 {
		t.Fatalf("position with unset levels was auto-closed, Count = %d", got)
	}
}

func TestUpdateAllMissingPrice(t *testing.T) {
	l := newTestLedger()
	l.Open("BTC/USDT", 1, 100, models.Long, 90, 0)

	l.UpdateAll(map[string]float64{"ETH/USDT": 1})

	positions := l.Positions()
	if len(positions) != 1 || positions[0].PnL != 0 {
		t.Fatalf("position without a price was touched: %+v", positions)
	}
}

func TestUnrealizedPnL(t *testing.T) {
	l := newTestLedger()
	l.Open("BTC/USDT", 1, 100, models.Long, 0, 0)
	l.Open("ETH/USDT", 2, 50, models.Short, 0, 0)

	l.UpdateAll(map[string]float64{"BTC/USDT": 110, "ETH/USDT": 55})

	// Long +10, short (55-50)*2*-1 = -10.
	if got := l.UnrealizedPnL(); math.Abs(got) > 1e-9 {
		t.Fatalf("UnrealizedPnL = %v, want 0", got)
	}
}

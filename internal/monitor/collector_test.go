package monitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"master-agent/internal/config"
	"master-agent/internal/models"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		SampleInterval: time.Minute,
		MaxHistory:     1000,
		CPUPercent:     80,
		MemoryPercent:  80,
		DiskPercent:    80,
		NetworkErrors:  100,
		LatencyMS:      1000,
	}
}

func newTestCollector(cfg config.MonitorConfig, sample SampleFunc) *Collector {
	return NewCollector(cfg, zerolog.Nop(), WithSampleFunc(sample))
}

func snapshotWith(cpu, memPct, diskPct float64, netErrs uint64) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		Timestamp:  time.Now(),
		CPUPercent: cpu,
		Memory:     models.MemoryStats{Percent: memPct},
		Disk:       models.DiskStats{Percent: diskPct},
		Network:    models.NetworkStats{ErrIn: netErrs},
	}
}

func TestHistoryCapacityEviction(t *testing.T) {
	cfg := testMonitorConfig()
	cfg.MaxHistory = 3

	var counter float64
	c := newTestCollector(cfg, func() models.MetricsSnapshot {
		counter++
		return snapshotWith(counter, 0, 0, 0)
	})

	for i := 0; i < 5; i++ {
		c.sampleOnce()
	}

	history := c.History(60)
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	// Oldest two evicted, newest retained in order.
	if history[0].CPUPercent != 3 || history[2].CPUPercent != 5 {
		t.Fatalf("unexpected history contents: %v, %v", history[0].CPUPercent, history[2].CPUPercent)
	}

	current, ok := c.CurrentMetrics()
	if !ok || current.CPUPercent != 5 {
		t.Fatalf("CurrentMetrics = %v, %v; want newest snapshot", current.CPUPercent, ok)
	}
}

func TestCurrentMetricsEmpty(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return models.MetricsSnapshot{}
	})

	if _, ok := c.CurrentMetrics(); ok {
		t.Fatal("CurrentMetrics reported data before any sample")
	}
}

func TestAlertOrderAndValues(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return snapshotWith(90, 85, 95, 150)
	})

	var fired []models.Alert
	c.AddAlertCallback("capture", func(alert models.Alert) {
		fired = append(fired, alert)
	})

	c.sampleOnce()

	wantMetrics := []string{"cpu_percent", "memory_percent", "disk_percent", "network_errors"}
	if len(fired) != len(wantMetrics) {
		t.Fatalf("fired %d alerts, want %d", len(fired), len(wantMetrics))
	}
	for i, want := range wantMetrics {
		if fired[i].Metric != want {
			t.Errorf("alert[%d].Metric = %q, want %q", i, fired[i].Metric, want)
		}
	}
	if fired[0].Value != 90 || fired[0].Threshold != 80 {
		t.Errorf("cpu alert = %v/%v, want 90/80", fired[0].Value, fired[0].Threshold)
	}
}

func TestNoAlertsAtThreshold(t *testing.T) {
	// Thresholds are strict: equal readings do not fire.
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return snapshotWith(80, 80, 80, 100)
	})

	c.AddAlertCallback("capture", func(models.Alert) {
		t.Error("alert fired at exact threshold")
	})
	c.sampleOnce()
}

func TestCallbackPanicIsolated(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return snapshotWith(90, 0, 0, 0)
	})

	var secondRan bool
	c.AddAlertCallback("bad", func(models.Alert) {
		panic("callback failure")
	})
	c.AddAlertCallback("good", func(models.Alert) {
		secondRan = true
	})

	c.sampleOnce()

	if !secondRan {
		t.Fatal("callback after panicking one did not run")
	}
}

func TestRemoveAlertCallback(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return snapshotWith(90, 0, 0, 0)
	})

	var count int
	c.AddAlertCallback("counter", func(models.Alert) { count++ })
	c.sampleOnce()
	c.RemoveAlertCallback("counter")
	c.RemoveAlertCallback("never-registered")
	c.sampleOnce()

	if count != 1 {
		t.Fatalf("callback ran %d times, want 1", count)
	}
}

func TestSetAlertThreshold(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return snapshotWith(50, 0, 0, 0)
	})

	var fired int
	c.AddAlertCallback("counter", func(models.Alert) { fired++ })

	c.sampleOnce()
	if fired != 0 {
		t.Fatalf("alert fired below default threshold")
	}

	c.SetAlertThreshold("cpu_percent", 40)
	c.sampleOnce()
	if fired != 1 {
		t.Fatalf("alert did not fire after lowering threshold, fired = %d", fired)
	}

	// Unknown names must not create new threshold entries.
	c.SetAlertThreshold("bogus_metric", 1)
	c.mu.RLock()
	_, exists := c.thresholds["bogus_metric"]
	c.mu.RUnlock()
	if exists {
		t.Fatal("unknown threshold name was created")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), func() models.MetricsSnapshot {
		return snapshotWith(0, 0, 0, 0)
	})

	c.Start()
	c.Start()
	c.Stop()
	c.Stop()

	if _, ok := c.CurrentMetrics(); !ok {
		t.Fatal("no initial sample after Start")
	}
}

func TestHistoryWindow(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), nil)

	old := snapshotWith(1, 0, 0, 0)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	recent := snapshotWith(2, 0, 0, 0)

	c.history = []models.MetricsSnapshot{old, recent}

	got := c.History(60)
	if len(got) != 1 || got[0].CPUPercent != 2 {
		t.Fatalf("History(60) = %+v, want only the recent snapshot", got)
	}
}

func TestHistoryNoWindowReturnsAll(t *testing.T) {
	c := newTestCollector(testMonitorConfig(), nil)

	old := snapshotWith(1, 0, 0, 0)
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	recent := snapshotWith(2, 0, 0, 0)

	c.history = []models.MetricsSnapshot{old, recent}

	got := c.History(0)
	if len(got) != 2 {
		t.Fatalf("History(0) = %+v, want both snapshots", got)
	}
	if got[0].CPUPercent != 1 || got[1].CPUPercent != 2 {
		t.Fatalf("History(0) out of order: %v, %v", got[0].CPUPercent, got[1].CPUPercent)
	}
}

// Package monitor samples system resource usage on a fixed interval, keeps a
// bounded history of snapshots, and fires alert callbacks when readings cross
// configured thresholds.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"master-agent/internal/config"
	"master-agent/internal/logging"
	"master-agent/internal/models"
	"master-agent/internal/store"
)

// Threshold metric names accepted by SetAlertThreshold.
const (
	MetricCPUPercent    = "cpu_percent"
	MetricMemoryPercent = "memory_percent"
	MetricDiskPercent   = "disk_percent"
	MetricNetworkErrors = "network_errors"
	MetricLatencyMS     = "latency_ms"
)

// AlertCallback receives a fired alert. Callbacks run on the sampling
// goroutine; panics are recovered and logged so one bad callback cannot
// take the loop down.
type AlertCallback func(alert models.Alert)

// Collector samples metrics on an interval and evaluates alert thresholds.
type Collector struct {
	log zerolog.Logger

	mu         sync.RWMutex
	history    []models.MetricsSnapshot
	thresholds map[string]float64

	callbackOrder []string
	callbacks     map[string]AlertCallback

	interval   time.Duration
	maxHistory int
	sample     SampleFunc
	journal    store.Journal

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithSampleFunc replaces the gopsutil sampler, used by tests to inject
// synthetic readings.
func WithSampleFunc(sample SampleFunc) CollectorOption {
	return func(c *Collector) {
		c.sample = sample
	}
}

// WithJournal persists fired alerts to the given journal.
func WithJournal(journal store.Journal) CollectorOption {
	return func(c *Collector) {
		c.journal = journal
	}
}

// NewCollector creates a Collector from config.
func NewCollector(cfg config.MonitorConfig, log zerolog.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{
		log:        log,
		interval:   cfg.SampleInterval,
		maxHistory: cfg.MaxHistory,
		thresholds: map[string]float64{
			MetricCPUPercent:    cfg.CPUPercent,
			MetricMemoryPercent: cfg.MemoryPercent,
			MetricDiskPercent:   cfg.DiskPercent,
			MetricNetworkErrors: cfg.NetworkErrors,
			MetricLatencyMS:     cfg.LatencyMS,
		},
		callbacks: make(map[string]AlertCallback),
		journal:   store.NopJournal{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sample == nil {
		c.sample = systemSampler(log)
	}
	return c
}

// Start launches the sampling loop. Calling Start on a running collector is
// a no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.log.Warn().Msg("Metrics collector already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.log.Info().Dur("interval", c.interval).Msg("Starting metrics collector")
	go c.loop(ctx)
}

// Stop halts the sampling loop and waits for it to exit. Stopping a stopped
// collector is a no-op.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done
	c.log.Info().Msg("Metrics collector stopped")
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Initial sample so callers have data before the first tick.
	c.sampleOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleOnce()
		}
	}
}

// sampleOnce takes one snapshot, appends it to history, exports it, and
// evaluates the alert thresholds.
func (c *Collector) sampleOnce() {
	snapshot := c.sample()

	c.mu.Lock()
	c.history = append(c.history, snapshot)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}
	c.mu.Unlock()

	exportSnapshot(snapshot)
	c.evaluateAlerts(snapshot)
}

// evaluateAlerts checks the snapshot against the thresholds in a fixed
// order and dispatches any breaches. Latency has a configured threshold but
// no sampled reading, so it is never evaluated here.
func (c *Collector) evaluateAlerts(snapshot models.MetricsSnapshot) {
	c.mu.RLock()
	thresholds := make(map[string]float64, len(c.thresholds))
	for k, v := range c.thresholds {
		thresholds[k] = v
	}
	c.mu.RUnlock()

	var alerts []models.Alert

	if threshold := thresholds[MetricCPUPercent]; snapshot.CPUPercent > threshold {
		alerts = append(alerts, newAlert(MetricCPUPercent, snapshot.CPUPercent, threshold,
			fmt.Sprintf("High CPU usage: %.1f%%", snapshot.CPUPercent)))
	}
	if threshold := thresholds[MetricMemoryPercent]; snapshot.Memory.Percent > threshold {
		alerts = append(alerts, newAlert(MetricMemoryPercent, snapshot.Memory.Percent, threshold,
			fmt.Sprintf("High memory usage: %.1f%%", snapshot.Memory.Percent)))
	}
	if threshold := thresholds[MetricDiskPercent]; snapshot.Disk.Percent > threshold {
		alerts = append(alerts, newAlert(MetricDiskPercent, snapshot.Disk.Percent, threshold,
			fmt.Sprintf("High disk usage: %.1f%%", snapshot.Disk.Percent)))
	}
	if threshold := thresholds[MetricNetworkErrors]; float64(snapshot.Network.TotalErrors()) > threshold {
		errs := float64(snapshot.Network.TotalErrors())
		alerts = append(alerts, newAlert(MetricNetworkErrors, errs, threshold,
			fmt.Sprintf("High network errors: %.0f", errs)))
	}

	if len(alerts) > 0 {
		c.dispatchAlerts(alerts)
	}
}

func newAlert(metric string, value, threshold float64, message string) models.Alert {
	return models.Alert{
		ID:        uuid.New().String(),
		Metric:    metric,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		Timestamp: time.Now(),
	}
}

// dispatchAlerts logs, journals, and fans each alert out to the registered
// callbacks in registration order.
func (c *Collector) dispatchAlerts(alerts []models.Alert) {
	c.mu.RLock()
	order := make([]string, len(c.callbackOrder))
	copy(order, c.callbackOrder)
	callbacks := make(map[string]AlertCallback, len(c.callbacks))
	for k, v := range c.callbacks {
		callbacks[k] = v
	}
	c.mu.RUnlock()

	for _, alert := range alerts {
		logging.LogAlert(c.log, alert.Metric, alert.Message, alert.Value, alert.Threshold)
		alertsFired.WithLabelValues(alert.Metric).Inc()

		if err := c.journal.LogAlert(context.Background(), &alert); err != nil {
			c.log.Error().Err(err).Msg("Failed to journal alert")
		}

		for _, name := range order {
			c.invokeCallback(name, callbacks[name], alert)
		}
	}
}

func (c *Collector) invokeCallback(name string, callback AlertCallback, alert models.Alert) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("callback", name).
				Interface("panic", r).
				Msg("Alert callback panicked")
		}
	}()
	callback(alert)
}

// AddAlertCallback registers a named callback. Re-registering a name
// replaces the callback but keeps its original position.
func (c *Collector) AddAlertCallback(name string, callback AlertCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.callbacks[name]; !exists {
		c.callbackOrder = append(c.callbackOrder, name)
	}
	c.callbacks[name] = callback
}

// RemoveAlertCallback unregisters a callback. Unknown names are ignored.
func (c *Collector) RemoveAlertCallback(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.callbacks[name]; !exists {
		return
	}
	delete(c.callbacks, name)
	for i, n := range c.callbackOrder {
		if n == name {
			c.callbackOrder = append(c.callbackOrder[:i], c.callbackOrder[i+1:]...)
			break
		}
	}
}

// SetAlertThreshold updates the threshold for a known metric name. Unknown
// names are logged and ignored.
func (c *Collector) SetAlertThreshold(metric string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, known := c.thresholds[metric]; !known {
		c.log.Warn().Str("metric", metric).Msg("Unknown alert threshold")
		return
	}
	c.thresholds[metric] = value
	c.log.Info().Str("metric", metric).Float64("value", value).Msg("Updated alert threshold")
}

// CurrentMetrics returns the most recent snapshot, or false when nothing
// has been sampled yet.
func (c *Collector) CurrentMetrics() (models.MetricsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.history) == 0 {
		return models.MetricsSnapshot{}, false
	}
	return c.history[len(c.history)-1], true
}

// History returns the snapshots taken within the last given number of
// minutes, oldest first. A non-positive window returns the full history.
func (c *Collector) History(minutes int) []models.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if minutes <= 0 {
		out := make([]models.MetricsSnapshot, len(c.history))
		copy(out, c.history)
		return out
	}

	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	var out []models.MetricsSnapshot
	for _, snapshot := range c.history {
		if snapshot.Timestamp.After(cutoff) {
			out = append(out, snapshot)
		}
	}
	return out
}

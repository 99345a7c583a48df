package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"master-agent/internal/models"
)

// Prometheus export of the sampled system metrics. Gauges mirror the latest
// snapshot; the alert counter increments once per fired alert.

var cpuPercent = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "masteragent",
	Subsystem: "system",
	Name:      "cpu_percent",
	Help:      "System-wide CPU utilization percentage",
})

var memoryPercent = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "masteragent",
	Subsystem: "system",
	Name:      "memory_percent",
	Help:      "Virtual memory utilization percentage",
})

var diskPercent = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "masteragent",
	Subsystem: "system",
	Name:      "disk_percent",
	Help:      "Root filesystem utilization percentage",
})

var networkErrors = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "masteragent",
	Subsystem: "system",
	Name:      "network_errors_total",
	Help:      "Cumulative network interface receive and transmit errors",
})

var alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "masteragent",
	Subsystem: "monitor",
	Name:      "alerts_fired_total",
	Help:      "Number of threshold alerts fired, by metric",
}, []string{"metric"})

func exportSnapshot(snapshot models.MetricsSnapshot) {
	cpuPercent.Set(snapshot.CPUPercent)
	memoryPercent.Set(snapshot.Memory.Percent)
	diskPercent.Set(snapshot.Disk.Percent)
	networkErrors.Set(float64(snapshot.Network.TotalErrors()))
}

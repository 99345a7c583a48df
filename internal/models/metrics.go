package models

import "time"

// MetricsSnapshot captures process and host resource usage at a point in time.
// A snapshot is immutable once captured; sections that failed to sample are
// left zero-valued.
type MetricsSnapshot struct {
	Timestamp  time.Time    `json:"timestamp"`
	CPUPercent float64      `json:"cpu_percent"`
	Memory     MemoryStats  `json:"memory"`
	Disk       DiskStats    `json:"disk"`
	Network    NetworkStats `json:"network"`
	Process    ProcessStats `json:"process"`
}

// MemoryStats holds virtual memory usage.
type MemoryStats struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
}

// DiskStats holds root filesystem usage.
type DiskStats struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Percent float64 `json:"percent"`
}

// NetworkStats holds cumulative network interface counters.
type NetworkStats struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	ErrIn       uint64 `json:"errin"`
	ErrOut      uint64 `json:"errout"`
	DropIn      uint64 `json:"dropin"`
	DropOut     uint64 `json:"dropout"`
}

// TotalErrors returns the summed in/out error count.
func (n NetworkStats) TotalErrors() uint64 {
	return n.ErrIn + n.ErrOut
}

// ProcessStats holds statistics for the current process.
type ProcessStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Threads       int32   `json:"threads"`
	FDs           int32   `json:"fds"`
	Connections   int     `json:"connections"`
}

// Alert represents a threshold breach raised by the metrics collector.
type Alert struct {
	ID        string    `json:"id"`
	Metric    string    `json:"metric"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

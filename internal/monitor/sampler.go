package monitor

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"master-agent/internal/models"
)

// SampleFunc produces one metrics snapshot. The collector accepts any
// implementation so tests can feed synthetic readings.
type SampleFunc func() models.MetricsSnapshot

// systemSampler reads host and process statistics via gopsutil. Sections
// that fail to sample are logged and left zero-valued so one misbehaving
// subsystem does not blank the whole snapshot.
func systemSampler(log zerolog.Logger) SampleFunc {
	proc, procErr := process.NewProcess(int32(os.Getpid()))
	if procErr != nil {
		log.Warn().Err(procErr).Msg("Process self-inspection unavailable")
	}

	return func() models.MetricsSnapshot {
		snapshot := models.MetricsSnapshot{Timestamp: time.Now()}

		if percents, err := cpu.Percent(0, false); err != nil {
			log.Error().Err(err).Msg("Failed to sample CPU")
		} else if len(percents) > 0 {
			snapshot.CPUPercent = percents[0]
		}

		if vm, err := mem.VirtualMemory(); err != nil {
			log.Error().Err(err).Msg("Failed to sample memory")
		} else {
			snapshot.Memory = models.MemoryStats{
				Total:     vm.Total,
				Available: vm.Available,
				Percent:   vm.UsedPercent,
			}
		}

		if usage, err := disk.Usage("/"); err != nil {
			log.Error().Err(err).Msg("Failed to sample disk")
		} else {
			snapshot.Disk = models.DiskStats{
				Total:   usage.Total,
				Used:    usage.Used,
				Percent: usage.UsedPercent,
			}
		}

		if counters, err := net.IOCounters(false); err != nil {
			log.Error().Err(err).Msg("Failed to sample network")
		} else if len(counters) > 0 {
			c := counters[0]
			snapshot.Network = models.NetworkStats{
				BytesSent:   c.BytesSent,
				BytesRecv:   c.BytesRecv,
				PacketsSent: c.PacketsSent,
				PacketsRecv: c.PacketsRecv,
				ErrIn:       c.Errin,
				ErrOut:      c.Errout,
				DropIn:      c.Dropin,
				DropOut:     c.Dropout,
			}
		}

		if proc != nil {
			if pct, err := proc.CPUPercent(); err == nil {
				snapshot.Process.CPUPercent = pct
			}
			if pct, err := proc.MemoryPercent(); err == nil {
				snapshot.Process.MemoryPercent = float64(pct)
			}
			if threads, err := proc.NumThreads(); err == nil {
				snapshot.Process.Threads = threads
			}
			if fds, err := proc.NumFDs(); err == nil {
				snapshot.Process.FDs = fds
			}
			if conns, err := proc.Connections(); err == nil {
				snapshot.Process.Connections = len(conns)
			}
		}

		return snapshot
	}
}

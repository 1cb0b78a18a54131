package runner

import (
	"github.com/shirou/gopsutil/v4/process"
)

// Measurement is the max-value merge of a case's process metrics over
// its lifetime (§4.4 step 4): peak RSS, peak CPU percent, peak open
// file count. Sampled via gopsutil the way the rest of the pack's
// process-metrics consumers do (adopted from the teacher's go.mod,
// which carries gopsutil indirectly but never exercises it directly —
// this is the home SPEC_FULL.md gives it).
type Measurement struct {
	MaxRSSBytes  uint64
	MaxCPU       float64
	MaxOpenFiles int32
}

func (m *Measurement) mergeMax(rss uint64, cpu float64, fds int32) {
	if rss > m.MaxRSSBytes {
		m.MaxRSSBytes = rss
	}

	if cpu > m.MaxCPU {
		m.MaxCPU = cpu
	}

	if fds > m.MaxOpenFiles {
		m.MaxOpenFiles = fds
	}
}

// sample takes one reading of pid's metrics and merges it into m.
// Sampling failures (the process having already exited between the
// poll and the sample, most commonly) are ignored: best-effort
// measurement, never a reason to fail the case.
func (m *Measurement) sample(pid int32) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return
	}

	var rss uint64
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}

	cpu, _ := proc.CPUPercent()

	var fds int32
	if n, err := proc.NumFDs(); err == nil {
		fds = n
	}

	m.mergeMax(rss, cpu, fds)
}

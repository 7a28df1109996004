package media

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceLimits are the minimum free resources required before a heavy
// media stage is allowed to start.
type ResourceLimits struct {
	IdleCPU  float64 // percent of CPU that must be idle
	FreeMem  int64   // bytes
	FreeDisk int64   // bytes
}

// checkResources verifies the host has headroom for a transcription or
// render run. Probe failures are logged and skipped rather than fatal.
func checkResources(log *logrus.Logger, limits ResourceLimits, dir string) error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Warnf("could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-limits.IdleCPU) {
		return fmt.Errorf("not enough idle CPU: current usage %.2f%%, idle threshold %.2f%%", p[0], limits.IdleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnf("could not get memory usage: %v", err)
	} else if vm.Available < uint64(limits.FreeMem) {
		return fmt.Errorf("not enough free memory: available %d, required %d", vm.Available, limits.FreeMem)
	}

	d, err := disk.Usage(dir)
	if err != nil {
		log.Warnf("could not get disk usage for %s: %v", dir, err)
	} else if d.Free < uint64(limits.FreeDisk) {
		return fmt.Errorf("not enough free disk space: available %d, required %d", d.Free, limits.FreeDisk)
	}
	return nil
}

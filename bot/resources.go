package bot

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceChecker gates the work stage: cutting is deferred while the host
// is starved.
type ResourceChecker interface {
	Check() error
}

// Throttle verifies that the system has enough free resources to start a
// cut. Thresholds of zero disable the corresponding check.
type Throttle struct {
	IdleCPU  float64 // required idle CPU percentage
	FreeMem  int64   // required available memory in bytes
	FreeDisk int64   // required free disk in bytes
	Path     string  // mount point checked for free disk
	Log      zerolog.Logger
}

func (t *Throttle) Check() error {
	if t.IdleCPU > 0 {
		p, err := cpu.Percent(time.Second, false)
		if err != nil {
			t.Log.Warn().Err(err).Msg("could not read CPU usage")
		} else if len(p) > 0 && p[0] > 100.0-t.IdleCPU {
			return fmt.Errorf("not enough idle CPU: usage %.2f%%, idle threshold %.2f%%", p[0], t.IdleCPU)
		}
	}

	if t.FreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			t.Log.Warn().Err(err).Msg("could not read memory usage")
		} else if vm.Available < uint64(t.FreeMem) {
			return fmt.Errorf("not enough free memory: available %d, required %d", vm.Available, t.FreeMem)
		}
	}

	if t.FreeDisk > 0 {
		path := t.Path
		if path == "" {
			path = os.TempDir()
		}
		d, err := disk.Usage(path)
		if err != nil {
			t.Log.Warn().Err(err).Str("path", path).Msg("could not read disk usage")
		} else if d.Free < uint64(t.FreeDisk) {
			return fmt.Errorf("not enough free disk: available %d, required %d", d.Free, t.FreeDisk)
		}
	}
	return nil
}

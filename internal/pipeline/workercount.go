package pipeline

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// DefaultWorkerCount sizes the worker pool (spec.md §4.4 "Worker pool")
// from the host's physical core count rather than its logical count,
// avoiding oversubscription on SMT/hyperthreaded hosts where two logical
// threads share one core's execution units — adapted from the teacher's
// internal/cpuspec package, which queries the same github.com/klauspost/
// cpuid/v2 CPU singleton to size its analysis thread pool.
func DefaultWorkerCount() int {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = cpuid.CPU.LogicalCores
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if avail := runtime.NumCPU(); n > avail {
		n = avail
	}
	if n < 1 {
		n = 1
	}
	return n
}

/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

When running in a container, the number of available CPUs may be limited by
cgroup constraints. While Go 1.19+ automatically sets GOMAXPROCS based on the
container CPU limit, runtime.NumCPU() still returns the host machine's CPU
count. The helpers here size pools from GOMAXPROCS instead.

Usage:

	import "dataset-manager/internal/workers"

	// CPU-intensive work (local inference)
	n := workers.ForCPU(8)

	// I/O-bound work (label writes, trash moves)
	n := workers.ForIO(16)

All functions respect the ANNOTATION_WORKERS environment variable, allowing
operators to override the automatic calculation.
*/
package workers

/*
Package metrics registers hutch's Prometheus collectors and a small
Timer helper for observing durations into them.

# Metric families

Storage: cache hits/misses, load/flush duration, per-file corruption
counts.

Driver: per-driver index-fetch and file-fetch duration.

Transaction: apply outcome counts (ok vs rolled_back) and apply-pass
duration.

Package files: downloads and digest-mismatch rejections.

Index: current installed-package count, raised and lowered by the
package orchestrator's file actions as pool entries are added and
removed. The repository-count gauge is registered, but nothing sets it.

# Usage

	timer := metrics.NewTimer()
	idx, err := driver.FetchIndex(id)
	timer.ObserveDurationVec(metrics.DriverFetchDuration, driverName)

	if err != nil {
		metrics.FilesDigestMismatchTotal.Inc()
	}

Handler returns the standard promhttp handler; `hutch index build
--metrics-addr :9090` serves it for the duration of that one command
rather than running a long-lived daemon.
*/
package metrics

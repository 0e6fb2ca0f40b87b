package main

import (
	"encoding/csv"
	"runtime"
	"strconv"
)

type BenchResult struct {
	Backend   string
	Order     int
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
	DiskBytes int64
}

var header = []string{"Backend", "Order", "Operation", "LatencyNs", "MemMB", "HeapObjects", "DiskBytes"}

type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

// GetDetailedMem measures live heap after a forced collection.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

func Record(w *csv.Writer, res BenchResult) {
	w.Write([]string{
		res.Backend,
		strconv.Itoa(res.Order),
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
		strconv.FormatInt(res.DiskBytes, 10),
	})
}

package memory

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"
)

const statmPath = "/proc/self/statm"

// ResidentBytes returns the resident set size of the current process. Where
// procfs is unavailable it falls back to the memory the Go runtime has
// obtained from the operating system.
func ResidentBytes() (uint64, error) {
	if rss, err := readStatm(statmPath); err == nil {
		return rss, nil
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys - stats.HeapReleased, nil
}

func readStatm(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parseStatm(data, uint64(unix.Getpagesize()))
}

// parseStatm reads the resident page count, the second field of statm.
func parseStatm(data []byte, pageSize uint64) (uint64, error) {
	fields := bytes.Fields(data)
	if len(fields) < 2 {
		return 0, fmt.Errorf("statm: expected at least 2 fields, got %d", len(fields))
	}
	pages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("statm: resident pages: %w", err)
	}
	return pages * pageSize, nil
}

package disk

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// Usage describes the filesystem holding a path
type Usage struct {
	TotalBytes  int64
	FreeBytes   int64
	UsedPercent float64
}

// GetUsage returns the size and free space of the filesystem holding path
func GetUsage(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}

	u := Usage{
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
	}
	if u.TotalBytes > 0 {
		u.UsedPercent = float64(u.TotalBytes-u.FreeBytes) / float64(u.TotalBytes) * 100.0
	}
	return u, nil
}

// IsNFSStale checks if a path is on a stale NFS mount by attempting a quick stat
// with timeout. Returns true if the stat times out or fails with an NFS-specific error.
func IsNFSStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)
	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		// Common NFS errors: EIO, ESTALE, ENXIO
		return err != nil && (os.IsTimeout(err) ||
			errors.Is(err, syscall.EIO) ||
			errors.Is(err, syscall.ESTALE) ||
			errors.Is(err, syscall.ENXIO))
	case <-time.After(timeout):
		return true
	}
}

//go:build darwin

package downloads

import (
	"os"
	"syscall"
	"time"
)

// creationTime returns the file's birth time, which is what the age filter is
// specified against. Falls back to the modification time when the stat data
// is not in the expected shape.
func creationTime(info os.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		sec, nsec := stat.Birthtimespec.Unix()
		return time.Unix(sec, nsec)
	}
	return info.ModTime()
}

//go:build !darwin

package downloads

import (
	"os"
	"time"
)

// creationTime approximates the file's creation time on platforms without a
// birth-time stat field.
func creationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}

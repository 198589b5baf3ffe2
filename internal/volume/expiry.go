package volume

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// MarkerName is the file written into every managed volume that records its
// expiry as integer epoch seconds. A mounted volume without this marker is not
// managed by this tool.
const MarkerName = ".encrypted-volume-good-until"

// ComputeExpiry returns the instant at which a volume created now with the
// given lifetime stops being good. The result is truncated to whole seconds
// since the marker only stores second precision.
func ComputeExpiry(now time.Time, lifetimeDays int) time.Time {
	return now.Add(time.Duration(lifetimeDays) * 24 * time.Hour).Truncate(time.Second)
}

// IsExpired reports whether the expiry instant has passed. An instant exactly
// equal to now is not expired.
func IsExpired(expiry, now time.Time) bool {
	return expiry.Before(now)
}

// WriteMarker persists the expiry marker inside the mounted volume.
func WriteMarker(mountPoint string, expiry time.Time) error {
	value := strconv.FormatInt(expiry.Unix(), 10)
	return os.WriteFile(filepath.Join(mountPoint, MarkerName), []byte(value), 0o644)
}

// ReadMarker reads the expiry marker of a mounted volume. The second return
// value is false when the marker is missing or does not parse; both simply
// mean the mount is not one of ours and the caller is expected to skip it.
func ReadMarker(mountPoint string) (time.Time, bool) {
	data, err := os.ReadFile(filepath.Join(mountPoint, MarkerName))
	if err != nil {
		return time.Time{}, false
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(seconds, 0), true
}

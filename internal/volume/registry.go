package volume

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Volume is a currently mounted, managed container.
type Volume struct {
	MountPoint string
	Expiry     time.Time
}

// Registry is the read side of volume management: it narrows the full set of
// attached images down to the mounts carrying a valid expiry marker.
type Registry struct {
	Disk DiskBackend
}

// Managed returns every mounted volume that carries a readable expiry marker,
// in backend order. Mounts without a marker are skipped, not errors.
func (r Registry) Managed() ([]Volume, error) {
	mountPoints, err := r.Disk.MountPoints()
	if err != nil {
		return nil, fmt.Errorf("query mounted images: %w", err)
	}

	volumes := lo.FilterMap(mountPoints, func(mountPoint string, _ int) (Volume, bool) {
		expiry, ok := ReadMarker(mountPoint)
		return Volume{MountPoint: mountPoint, Expiry: expiry}, ok
	})
	return volumes, nil
}

package volume

import (
	"errors"

	"github.com/c2h5oh/datasize"
)

// DiskBackend drives the platform disk-image tooling. The production
// implementation shells out to hdiutil; orchestration code and tests only
// depend on this contract.
type DiskBackend interface {
	// Create writes a new encrypted container of the given size at path.
	Create(path, volumeName string, size datasize.ByteSize, password string) error
	// Attach mounts the container and returns its mount point.
	Attach(path, password string) (string, error)
	// Eject unmounts the volume at the given mount point.
	Eject(mountPoint string) error
	// MountPoints lists the mount points of every currently attached image.
	MountPoints() ([]string, error)
	// Secure applies the platform attributes that mark a mount as a managed
	// scratch volume (content indexing off, distinguishing volume icon).
	Secure(mountPoint string) error
}

// ArchiveBackend drives the archive tool used to seed imported volumes.
type ArchiveBackend interface {
	// UncompressedSize reports the total size of the archive contents.
	UncompressedSize(path string) (datasize.ByteSize, error)
	// CheckPassword reports whether the password unlocks the archive. A false
	// result with a nil error means the password is wrong, not that the
	// archive is unreadable.
	CheckPassword(path, password string) (bool, error)
	// Extract unpacks the archive contents into dst.
	Extract(src, dst, password string) error
}

var (
	// ErrNotMounted is returned when an explicitly requested eject target does
	// not correspond to any managed volume.
	ErrNotMounted = errors.New("volume was not mounted")
	// ErrWrongPassword is returned when the archive password fails verification.
	ErrWrongPassword = errors.New("invalid password")
	// ErrSourceNotFile is returned when the import source is not a regular file.
	ErrSourceNotFile = errors.New("source archive is not a file")
)

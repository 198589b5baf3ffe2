package volume

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
)

// DefaultVolumeName labels scratch volumes created without an explicit name
// and without an import source.
const DefaultVolumeName = "EncryptedScratchpad"

// CreateOptions describes a request to create and mount a new volume.
type CreateOptions struct {
	LifetimeDays int
	Name         string
	Keep         bool
	Password     string
	Size         datasize.ByteSize
}

// PendingImage tracks an in-progress creation. It only lives for the duration
// of one New or Import call.
type PendingImage struct {
	Password      string
	ContainerPath string
	MountPoint    string
}

// Service orchestrates the volume lifecycle against the injected backends.
// All external commands run synchronously; a failing step aborts the whole
// operation and leftover container files are accepted rather than rolled back.
type Service struct {
	Disk    DiskBackend
	Archive ArchiveBackend

	// PromptPassword is consulted when no password was supplied and the
	// volume is not a pure scratch volume.
	PromptPassword func() (string, error)

	Logger *slog.Logger
	Out    io.Writer

	// Now and TempDir exist so tests can pin time and container placement.
	Now     func() time.Time
	TempDir string
}

// New creates, mounts and secures a fresh scratch volume.
func (s *Service) New(opts CreateOptions) error {
	pending, err := s.prepare(opts, opts.Size, "")
	if err != nil {
		return err
	}
	return s.finalize(opts, pending)
}

// Import creates a volume sized to hold the archive contents plus the given
// margin, verifies the password against the archive before touching it, and
// extracts the contents into the mounted volume.
func (s *Service) Import(opts CreateOptions, extraSize datasize.ByteSize, sourcePath string) error {
	source, err := canonicalPath(sourcePath)
	if err != nil {
		return fmt.Errorf("resolve source archive %q: %w", sourcePath, err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat source archive: %w", err)
	}
	if !info.Mode().IsRegular() {
		return ErrSourceNotFile
	}

	contentSize, err := s.Archive.UncompressedSize(source)
	if err != nil {
		return fmt.Errorf("determine archive size: %w", err)
	}
	size := requiredSize(contentSize, extraSize)
	s.logger().Debug("computed container size",
		"content", contentSize.HumanReadable(),
		"extra", extraSize.HumanReadable(),
		"total", size.HumanReadable(),
	)

	pending, err := s.prepare(opts, size, source)
	if err != nil {
		return err
	}

	ok, err := s.Archive.CheckPassword(source, pending.Password)
	if err != nil {
		return fmt.Errorf("verify archive password: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	fmt.Fprintln(s.out(), "[4] Extracting archive contents")
	if err := s.Archive.Extract(source, pending.MountPoint, pending.Password); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	return s.finalize(opts, pending)
}

// List returns all managed volumes currently mounted.
func (s *Service) List() ([]Volume, error) {
	return Registry{Disk: s.Disk}.Managed()
}

// Eject unmounts managed volumes. The three selectors combine with OR
// semantics: a volume is ejected when it equals the canonicalized explicit
// path, when all is set, or when expired is set and its expiry has passed.
// An explicit path that matches no managed volume is an error; the all and
// expired selectors are satisfied by matching nothing.
func (s *Service) Eject(path string, all, expired bool) error {
	volumes, err := s.List()
	if err != nil {
		return err
	}

	reference := ""
	if path != "" {
		// A path that cannot be canonicalized matches nothing and falls
		// through to the not-mounted error below.
		reference, _ = canonicalPath(path)
	}

	now := s.now()
	found := false
	for _, vol := range volumes {
		isExpired := IsExpired(vol.Expiry, now)
		isMatch := reference != "" && sameVolume(vol.MountPoint, reference)
		if isMatch {
			found = true
		}
		if !isMatch && !all && !(expired && isExpired) {
			continue
		}

		qualifier := ""
		if isExpired {
			qualifier = "expired "
		}
		fmt.Fprintf(s.out(), "Ejecting %svolume %s\n", qualifier, vol.MountPoint)
		if err := s.Disk.Eject(vol.MountPoint); err != nil {
			return fmt.Errorf("eject %s: %w", vol.MountPoint, err)
		}
	}

	if path != "" && !found {
		return ErrNotMounted
	}
	return nil
}

// prepare runs the create, mount and secure steps shared by New and Import.
func (s *Service) prepare(opts CreateOptions, size datasize.ByteSize, sourcePath string) (PendingImage, error) {
	password, err := s.resolvePassword(opts, sourcePath)
	if err != nil {
		return PendingImage{}, err
	}
	name := resolveVolumeName(opts.Name, sourcePath)
	containerPath := filepath.Join(s.tempDir(), fmt.Sprintf("encrypted-%s-%s.dmg", uuid.New(), name))

	logger := s.logger().With("volume", name, "container", containerPath)

	fmt.Fprintln(s.out(), "[1] Creating encrypted disk image")
	if err := s.Disk.Create(containerPath, name, size, password); err != nil {
		return PendingImage{}, fmt.Errorf("create container: %w", err)
	}

	fmt.Fprintln(s.out(), "[2] Mounting disk image")
	mountPoint, err := s.Disk.Attach(containerPath, password)
	if err != nil {
		return PendingImage{}, fmt.Errorf("mount container: %w", err)
	}
	logger.Debug("container mounted", "mount_point", mountPoint)

	fmt.Fprintln(s.out(), "[3] Securing mounted volume")
	expiry := ComputeExpiry(s.now(), opts.LifetimeDays)
	if err := WriteMarker(mountPoint, expiry); err != nil {
		return PendingImage{}, fmt.Errorf("write expiry marker: %w", err)
	}
	if err := s.Disk.Secure(mountPoint); err != nil {
		return PendingImage{}, fmt.Errorf("secure volume: %w", err)
	}
	logger.Debug("volume secured", "expires", expiry.UTC().Format(time.RFC3339))

	return PendingImage{
		Password:      password,
		ContainerPath: containerPath,
		MountPoint:    mountPoint,
	}, nil
}

// finalize either retains or deletes the backing container. On the reference
// platform the container file can be removed while the volume stays mounted,
// so a non-kept scratch volume leaves nothing behind after eject.
func (s *Service) finalize(opts CreateOptions, pending PendingImage) error {
	if opts.Keep {
		fmt.Fprintf(s.out(), "Placed encrypted image at: %s\n", pending.ContainerPath)
	} else if err := os.Remove(pending.ContainerPath); err != nil {
		return fmt.Errorf("remove container file: %w", err)
	}
	fmt.Fprintf(s.out(), "Mounted encrypted volume at: %s\n", pending.MountPoint)
	fmt.Fprintf(s.out(), "Unmount with: umount %q\n", pending.MountPoint)
	return nil
}

// resolvePassword implements the password policy: an explicit password always
// wins; a pure scratch volume (not kept, no import source) gets a generated
// opaque token; anything surviving the session must come from the user.
func (s *Service) resolvePassword(opts CreateOptions, sourcePath string) (string, error) {
	if opts.Password != "" {
		return opts.Password, nil
	}
	if !opts.Keep && sourcePath == "" {
		return strings.ReplaceAll(uuid.New().String(), "-", ""), nil
	}
	if s.PromptPassword == nil {
		return "", fmt.Errorf("a password is required but no prompt is available")
	}
	password, err := s.PromptPassword()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

func resolveVolumeName(explicit, sourcePath string) string {
	if explicit != "" {
		return explicit
	}
	if sourcePath != "" {
		base := filepath.Base(sourcePath)
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
			return stem
		}
	}
	return DefaultVolumeName
}

// requiredSize rounds the archive content size up to the next whole megabyte
// and adds the caller-supplied safety margin.
func requiredSize(content, extra datasize.ByteSize) datasize.ByteSize {
	rounded := (content + datasize.MB - 1) / datasize.MB * datasize.MB
	return rounded + extra
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func sameVolume(mountPoint, reference string) bool {
	canonical, err := canonicalPath(mountPoint)
	if err != nil {
		return false
	}
	return canonical == reference
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stdout
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) tempDir() string {
	if s.TempDir != "" {
		return s.TempDir
	}
	return os.TempDir()
}

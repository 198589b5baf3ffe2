package diskimage

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	noIndexMarker = ".metadata_never_index"
	volumeIcon    = ".VolumeIcon.icns"

	// One of the custom icons shipped with macOS, applied so managed scratch
	// volumes stand out from ordinary mounts in the Finder.
	systemIconPath = "/System/Library/CoreServices/CoreTypes.bundle/Contents/Resources/iDiskUserIcon.icns"
)

// Secure disables Spotlight indexing for the mounted volume and applies the
// distinguishing volume icon. The icon is cosmetic and skipped silently when
// the system icon cannot be copied; the indexing toggle is not.
func (h *Hdiutil) Secure(mountPoint string) error {
	if err := os.WriteFile(filepath.Join(mountPoint, noIndexMarker), nil, 0o644); err != nil {
		return fmt.Errorf("write no-index marker: %w", err)
	}

	if err := copyFile(systemIconPath, filepath.Join(mountPoint, volumeIcon)); err == nil {
		cmd := exec.Command("SetFile", "-a", "C", mountPoint)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("set custom icon attribute: %w (output: %s)", err, strings.TrimSpace(string(output)))
		}
	} else {
		h.logger().Debug("volume icon not applied", "error", err)
	}

	cmd := exec.Command("mdutil", "-E", "-i", "off", mountPoint)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("disable indexing: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

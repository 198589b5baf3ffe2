package diskimage

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"howett.net/plist"

	"github.com/crypdisk/scratchdmg/internal/volume"
)

// Tool is the disk-image manager binary this backend shells out to.
const Tool = "hdiutil"

var _ volume.DiskBackend = (*Hdiutil)(nil)

// Hdiutil implements volume.DiskBackend on top of the macOS hdiutil binary.
// Passwords are always fed over stdin so they never appear in the process
// table.
type Hdiutil struct {
	Logger *slog.Logger
}

func (h *Hdiutil) Create(path, volumeName string, size datasize.ByteSize, password string) error {
	megabytes := (size + datasize.MB - 1) / datasize.MB
	cmd := exec.Command(Tool, "create",
		"-megabytes", strconv.FormatUint(uint64(megabytes), 10),
		"-ov",
		"-volname", volumeName,
		"-fs", "HFS+",
		"-encryption", "AES-256",
		"-stdinpass",
		path,
	)
	cmd.Stdin = strings.NewReader(password)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("hdiutil create: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	h.logger().Debug("created encrypted image", "path", path, "megabytes", uint64(megabytes))
	return nil
}

func (h *Hdiutil) Attach(path, password string) (string, error) {
	cmd := exec.Command(Tool, "attach", "-plist", "-stdinpass", path)
	cmd.Stdin = strings.NewReader(password)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("hdiutil attach: %w", err)
	}

	mountPoint, err := parseAttachOutput(output)
	if err != nil {
		return "", err
	}
	h.logger().Debug("attached image", "path", path, "mount_point", mountPoint)
	return mountPoint, nil
}

func (h *Hdiutil) Eject(mountPoint string) error {
	cmd := exec.Command(Tool, "eject", mountPoint)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("hdiutil eject: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (h *Hdiutil) MountPoints() ([]string, error) {
	output, err := exec.Command(Tool, "info", "-plist").Output()
	if err != nil {
		return nil, fmt.Errorf("hdiutil info: %w", err)
	}
	return parseInfoOutput(output)
}

// systemEntity mirrors one entry of hdiutil's system-entities array. Entities
// without a mount point (partition maps, unmounted slices) are present but
// carry an empty value.
type systemEntity struct {
	MountPoint string `plist:"mount-point"`
}

type imageInfo struct {
	SystemEntities []systemEntity `plist:"system-entities"`
}

type hdiutilInfo struct {
	Images []imageInfo `plist:"images"`
}

func parseInfoOutput(data []byte) ([]string, error) {
	var info hdiutilInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse hdiutil info output: %w", err)
	}

	var mountPoints []string
	for _, image := range info.Images {
		for _, entity := range image.SystemEntities {
			if entity.MountPoint != "" {
				mountPoints = append(mountPoints, entity.MountPoint)
			}
		}
	}
	return mountPoints, nil
}

func parseAttachOutput(data []byte) (string, error) {
	var attached imageInfo
	if _, err := plist.Unmarshal(data, &attached); err != nil {
		return "", fmt.Errorf("parse hdiutil attach output: %w", err)
	}
	for _, entity := range attached.SystemEntities {
		if entity.MountPoint != "" {
			return entity.MountPoint, nil
		}
	}
	return "", fmt.Errorf("no mounted filesystem in hdiutil attach output")
}

func (h *Hdiutil) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

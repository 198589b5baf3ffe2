package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/crypdisk/scratchdmg/internal/volume"
)

// Tool is the archive binary this backend shells out to.
const Tool = "7z"

var _ volume.ArchiveBackend = (*SevenZip)(nil)

// SevenZip implements volume.ArchiveBackend on top of the 7z binary.
type SevenZip struct {
	Logger *slog.Logger
}

// UncompressedSize sums the entry sizes from the technical listing. The
// listing works without the archive password even for encrypted archives, so
// sizing happens before the password is verified.
func (z *SevenZip) UncompressedSize(path string) (datasize.ByteSize, error) {
	output, err := exec.Command(Tool, "l", "-slt", path).Output()
	if err != nil {
		return 0, fmt.Errorf("7z list: %w", err)
	}
	size, err := parseListingSize(output)
	if err != nil {
		return 0, err
	}
	z.logger().Debug("archive listed", "path", path, "uncompressed", size.HumanReadable())
	return size, nil
}

// CheckPassword tests the archive with the given password. A wrong password
// yields (false, nil); anything else wrong with the archive is an error.
func (z *SevenZip) CheckPassword(path, password string) (bool, error) {
	cmd := exec.Command(Tool, "t", "-p"+password, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if strings.Contains(stderr.String(), "Wrong password") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("7z test: %w (output: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return strings.Contains(stdout.String(), "Everything is Ok"), nil
}

// Extract unpacks the archive into dst, overwriting without prompting.
// Progress goes to stderr so the step output stays readable.
func (z *SevenZip) Extract(src, dst, password string) error {
	cmd := exec.Command(Tool, "x", "-bsp2", "-p"+password, "-y", src)
	cmd.Dir = dst
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("7z extract: %w", err)
	}
	return nil
}

// parseListingSize reads the per-entry blocks of `7z l -slt` output. Entry
// blocks follow the dashed separator; the header block before it also has
// Size lines (for the archive file itself) which must not be counted.
func parseListingSize(output []byte) (datasize.ByteSize, error) {
	var total datasize.ByteSize
	inEntries := false

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "----------") {
			inEntries = true
			continue
		}
		if !inEntries {
			continue
		}
		value, ok := strings.CutPrefix(line, "Size =")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			// directory entries may carry no size
			continue
		}
		size, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse entry size %q: %w", value, err)
		}
		total += datasize.ByteSize(size)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan 7z listing: %w", err)
	}
	if !inEntries {
		return 0, fmt.Errorf("no entry listing in 7z output")
	}
	return total, nil
}

func (z *SevenZip) logger() *slog.Logger {
	if z != nil && z.Logger != nil {
		return z.Logger
	}
	return slog.Default()
}

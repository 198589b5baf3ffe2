package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/samber/lo"
	"golang.org/x/term"

	"github.com/crypdisk/scratchdmg/internal/archive"
	"github.com/crypdisk/scratchdmg/internal/diskimage"
	"github.com/crypdisk/scratchdmg/internal/downloads"
	"github.com/crypdisk/scratchdmg/internal/logging"
	"github.com/crypdisk/scratchdmg/internal/schedule"
	"github.com/crypdisk/scratchdmg/internal/volume"
)

// RequireTools verifies the named executables are reachable before any other
// work begins. A missing tool is an environment error and fatal.
func RequireTools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s is not available: %w", name, err)
		}
	}
	return nil
}

// NewVolume creates and mounts a fresh scratch volume.
func NewVolume(opts volume.CreateOptions, logger *slog.Logger, out io.Writer) error {
	if err := RequireTools(diskimage.Tool); err != nil {
		return err
	}
	return newService(logger, out).New(opts)
}

// ImportArchive creates a volume seeded from a password-protected archive.
func ImportArchive(opts volume.CreateOptions, extraSize datasize.ByteSize, sourcePath string, logger *slog.Logger, out io.Writer) error {
	if err := RequireTools(diskimage.Tool, archive.Tool); err != nil {
		return err
	}
	return newService(logger, out).Import(opts, extraSize, sourcePath)
}

// ListVolumes returns the currently mounted managed volumes.
func ListVolumes(logger *slog.Logger) ([]volume.Volume, error) {
	if err := RequireTools(diskimage.Tool); err != nil {
		return nil, err
	}
	return newService(logger, io.Discard).List()
}

// EjectVolumes unmounts managed volumes by path, wholesale, or by expiry.
func EjectVolumes(path string, all, expired bool, logger *slog.Logger, out io.Writer) error {
	if err := RequireTools(diskimage.Tool); err != nil {
		return err
	}
	return newService(logger, out).Eject(path, all, expired)
}

// ScanDownloads audits the downloads directory against the given domain
// patterns and optional minimum age in days.
func ScanDownloads(dir string, patterns []string, minAgeDays *int, logger *slog.Logger) ([]downloads.Record, error) {
	filter := downloads.Filter{
		Patterns: lo.Map(patterns, func(pattern string, _ int) downloads.DomainPattern {
			return downloads.DomainPattern(pattern)
		}),
	}
	if minAgeDays != nil {
		minAge := time.Duration(*minAgeDays) * 24 * time.Hour
		filter.MinAge = &minAge
	}
	return newAuditor(logger).Scan(dir, filter)
}

// RemoveDownloads deletes the audited files best effort and returns how many
// were actually removed.
func RemoveDownloads(records []downloads.Record, logger *slog.Logger) int {
	return newAuditor(logger).Remove(records)
}

// InstallCron registers the hourly prune job in the user's crontab.
func InstallCron(logger *slog.Logger) error {
	if err := RequireTools("crontab"); err != nil {
		return err
	}
	return schedule.Apply(schedule.ModeInstall, logger)
}

// UninstallCron removes the prune job from the user's crontab.
func UninstallCron(logger *slog.Logger) error {
	if err := RequireTools("crontab"); err != nil {
		return err
	}
	return schedule.Apply(schedule.ModeUninstall, logger)
}

// PromptPassword reads a password from the terminal without echo.
func PromptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func newService(logger *slog.Logger, out io.Writer) *volume.Service {
	logger = logging.Ensure(logger)
	return &volume.Service{
		Disk:           &diskimage.Hdiutil{Logger: logger.With("backend", "hdiutil")},
		Archive:        &archive.SevenZip{Logger: logger.With("backend", "7z")},
		PromptPassword: PromptPassword,
		Logger:         logger,
		Out:            out,
	}
}

func newAuditor(logger *slog.Logger) *downloads.Auditor {
	return &downloads.Auditor{
		Store:  downloads.XattrStore{},
		Logger: logging.Ensure(logger),
	}
}

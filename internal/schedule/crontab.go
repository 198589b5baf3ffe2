package schedule

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Mode selects the crontab transformation to perform.
type Mode int

const (
	// ModeInstall adds the hourly maintenance line if it is not present.
	ModeInstall Mode = iota + 1
	// ModeUninstall removes the maintenance line wherever it appears.
	ModeUninstall
)

const (
	// EnvMode carries the requested transformation into the re-invocation of
	// this binary as the crontab editor. It is only consulted at the process
	// entry point; everything below takes the mode as an explicit parameter.
	EnvMode = "SCRATCHDMG_CRONTAB_MODE"

	// Managed entries fire hourly, on the hour.
	cronTrigger = "0 * * * *"
)

func (m Mode) String() string {
	switch m {
	case ModeInstall:
		return "install"
	case ModeUninstall:
		return "uninstall"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFromEnv decodes the editor-invocation mode from an environment lookup.
// The second return value is false when this process was not invoked as the
// crontab editor.
func ModeFromEnv(lookup func(string) (string, bool)) (Mode, bool) {
	value, ok := lookup(EnvMode)
	if !ok {
		return 0, false
	}
	switch value {
	case "install":
		return ModeInstall, true
	case "uninstall":
		return ModeUninstall, true
	default:
		return 0, false
	}
}

// MaintenanceCommand returns the command line the managed crontab entry runs:
// this executable pruning expired volumes.
func MaintenanceCommand() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return executable + " eject --expired", nil
}

// Rewrite transforms a crontab so the managed line is present exactly once
// (install) or absent (uninstall). Every unrelated line passes through
// verbatim and in order; the managed line is recognized by its trailing
// command string regardless of trigger.
func Rewrite(content, command string, mode Mode) string {
	var out strings.Builder
	found := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasSuffix(strings.TrimSpace(line), command) {
			found = true
			if mode == ModeUninstall {
				continue
			}
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	if mode == ModeInstall && !found {
		out.WriteString(cronTrigger + " " + command + "\n")
	}
	return out.String()
}

// EditFile applies Rewrite to the crontab file in place. This is the whole
// editor contract: transform the file, exit successfully, never open anything
// interactive.
func EditFile(path string, mode Mode, command string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read crontab file: %w", err)
	}
	rewritten := Rewrite(string(data), command, mode)
	if err := os.WriteFile(path, []byte(rewritten), 0o600); err != nil {
		return fmt.Errorf("write crontab file: %w", err)
	}
	return nil
}

// Apply delegates the rewrite to the system crontab: it runs `crontab -e`
// with this binary registered as the editor and the mode smuggled through the
// environment, so the scheduler itself stays the owner of the file.
func Apply(mode Mode, logger *slog.Logger) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	if logger != nil {
		logger.Debug("invoking crontab editor", "mode", mode.String())
	}

	cmd := exec.Command("crontab", "-e")
	// crontab consults VISUAL before EDITOR, so override both.
	cmd.Env = append(os.Environ(),
		EnvMode+"="+mode.String(),
		"EDITOR="+executable,
		"VISUAL="+executable,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab -e: %w", err)
	}
	return nil
}

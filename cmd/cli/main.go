package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/crypdisk/scratchdmg/config"
	"github.com/crypdisk/scratchdmg/internal/logging"
	"github.com/crypdisk/scratchdmg/internal/schedule"
	"github.com/crypdisk/scratchdmg/internal/volume"
)

const defaultLogLevel = "warning"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	// When the scheduler re-invokes this binary as its editor, rewrite the
	// crontab file it hands us and exit without touching anything else.
	if mode, ok := schedule.ModeFromEnv(os.LookupEnv); ok {
		if err := runCronEdit(mode); err != nil {
			logger.Error("crontab edit failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func runCronEdit(mode schedule.Mode) error {
	if len(os.Args) < 2 {
		return fmt.Errorf("crontab editor invoked without a file argument")
	}
	command, err := schedule.MaintenanceCommand()
	if err != nil {
		return err
	}
	return schedule.EditFile(os.Args[1], mode, command)
}

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	settings, err := config.Load()
	if err != nil {
		logger.Warn("settings file ignored", "error", err)
	}

	logLevel := defaultLogLevel

	root := &cobra.Command{
		Use:           "scratchdmg",
		Short:         "Manage disposable encrypted scratch volumes",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}
		return nil
	}

	root.AddCommand(
		newNewCommand(logger, settings),
		newImportCommand(logger, settings),
		newListCommand(logger),
		newEjectCommand(logger),
		newCronCommand(logger),
		newDownloadsCommand(logger, settings),
	)
	return root
}

// imageFlags are the creation options shared by the new and import commands.
type imageFlags struct {
	days     int
	name     string
	keep     bool
	password string
}

func (f *imageFlags) register(cmd *cobra.Command, settings config.Settings) {
	cmd.Flags().IntVar(&f.days, "days", settings.LifetimeDays, "Number of days the volume is good to keep")
	cmd.Flags().StringVarP(&f.name, "name", "n", settings.VolumeName, "Volume name of the encrypted image")
	cmd.Flags().BoolVarP(&f.keep, "keep", "k", false, "Keep the backing image file instead of deleting it")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Passphrase for the encrypted image")
}

func (f *imageFlags) options() volume.CreateOptions {
	return volume.CreateOptions{
		LifetimeDays: f.days,
		Name:         f.name,
		Keep:         f.keep,
		Password:     f.password,
	}
}

func newNewCommand(logger *slog.Logger, settings config.Settings) *cobra.Command {
	var (
		flags  imageFlags
		sizeMB int
	)

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create and mount a new encrypted scratch volume",
		Long: "Creates an encrypted disk image, mounts it, and normally deletes the\n" +
			"backing file so that everything disappears once the volume is unmounted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "new")
			opts := flags.options()
			opts.Size = datasize.ByteSize(sizeMB) * datasize.MB
			return config.NewVolume(opts, cmdLogger, cmd.OutOrStdout())
		},
	}

	flags.register(cmd, settings)
	cmd.Flags().IntVarP(&sizeMB, "size", "s", settings.SizeMB, "Size of the encrypted volume in megabytes")

	return cmd
}

func newImportCommand(logger *slog.Logger, settings config.Settings) *cobra.Command {
	var (
		flags       imageFlags
		extraSizeMB int
	)

	cmd := &cobra.Command{
		Use:   "import <archive-path>",
		Args:  cobra.ExactArgs(1),
		Short: "Import a password-protected archive as an encrypted volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath := strings.TrimSpace(args[0])
			if sourcePath == "" {
				return fmt.Errorf("archive path is required")
			}
			cmdLogger := logger.With("command", "import")
			extra := datasize.ByteSize(extraSizeMB) * datasize.MB
			return config.ImportArchive(flags.options(), extra, sourcePath, cmdLogger, cmd.OutOrStdout())
		},
	}

	flags.register(cmd, settings)
	cmd.Flags().IntVar(&extraSizeMB, "extra-size", settings.ExtraSizeMB, "Extra megabytes added on top of the archive contents")

	return cmd
}

func newListCommand(logger *slog.Logger) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all mounted encrypted scratch volumes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "list")
			volumes, err := config.ListVolumes(cmdLogger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, vol := range volumes {
				fmt.Fprintln(out, vol.MountPoint)
				if verbose {
					fmt.Fprintf(out, "  expires: %s\n", vol.Expiry.UTC().Format(time.RFC3339))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also show the expiry of every volume")

	return cmd
}

func newEjectCommand(logger *slog.Logger) *cobra.Command {
	var (
		all     bool
		expired bool
	)

	cmd := &cobra.Command{
		Use:   "eject [path]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Eject encrypted scratch volumes",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" && !all && !expired {
				return fmt.Errorf("specify a volume path, --all, or --expired")
			}
			cmdLogger := logger.With("command", "eject")
			return config.EjectVolumes(path, all, expired, cmdLogger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Eject every mounted encrypted volume")
	cmd.Flags().BoolVarP(&expired, "expired", "e", false, "Eject only volumes whose expiry has passed")

	return cmd
}

func newCronCommand(logger *slog.Logger) *cobra.Command {
	var (
		install   bool
		uninstall bool
	)

	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Install or uninstall the hourly expired-volume cleanup job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "cron")
			if install {
				return config.InstallCron(cmdLogger)
			}
			return config.UninstallCron(cmdLogger)
		},
	}

	cmd.Flags().BoolVar(&install, "install", false, "Install the cleanup job")
	cmd.Flags().BoolVar(&uninstall, "uninstall", false, "Uninstall the cleanup job")
	cmd.MarkFlagsOneRequired("install", "uninstall")
	cmd.MarkFlagsMutuallyExclusive("install", "uninstall")

	return cmd
}

func newDownloadsCommand(logger *slog.Logger, settings config.Settings) *cobra.Command {
	var (
		domains   []string
		verbose   bool
		deleteAll bool
		days      int
	)

	cmd := &cobra.Command{
		Use:   "downloads [path]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Audit the downloads folder for files from untrusted origins",
		Long: "Lists files in the downloads folder whose recorded origin URL matches\n" +
			"the given domains. Use *.domain.tld to match the domain and any of its\n" +
			"subdomains.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := settings.DownloadDir
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}

			var minAgeDays *int
			if cmd.Flags().Changed("days") {
				minAgeDays = &days
			}

			cmdLogger := logger.With("command", "downloads")
			records, err := config.ScanDownloads(dir, domains, minAgeDays, cmdLogger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, record := range records {
				fmt.Fprintln(out, record.Path)
				if verbose {
					fmt.Fprintf(out, "  source: %s\n", record.Source)
				}
			}

			if deleteAll {
				deleted := config.RemoveDownloads(records, cmdLogger)
				fmt.Fprintf(out, "Deleted %d file(s)\n", deleted)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&domains, "domain", "d", nil, "Domain to look out for; repeat flag to add more")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also show the matched source URL")
	cmd.Flags().BoolVar(&deleteAll, "delete", false, "Delete all matched files")
	cmd.Flags().IntVar(&days, "days", 0, "Only consider files older than this many days")

	return cmd
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

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

	"github.com/spf13/cobra"

	"github.com/draftlab/anvil/internal/configurations"
	"github.com/draftlab/anvil/internal/logging"
	"github.com/draftlab/anvil/internal/paths"
)

const defaultLogLevel = "info"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

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

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	logLevel := defaultLogLevel

	root := &cobra.Command{
		Use:           "anvil",
		Short:         "CLI for 'anvil': build customized OS deployment images",
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
		newImageCommand(logger),
		newBuildCommand(logger),
	)
	return root
}

func newImageCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Attach, detach, and inspect deployment images",
	}

	cmd.AddCommand(
		newImageAttachCommand(logger),
		newImageDetachCommand(logger),
		newImageInfoCommand(logger),
		newImageListCommand(logger),
	)
	return cmd
}

func newImageAttachCommand(logger *slog.Logger) *cobra.Command {
	var (
		index      int
		workingDir string
		driverName string
	)

	cmd := &cobra.Command{
		Use:   "attach <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Attach an image edition to a working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := strings.TrimSpace(args[0])
			if imagePath == "" {
				return fmt.Errorf("image path is required")
			}

			cmdLogger := logger.With("command", "image.attach", "image", imagePath)
			session, err := configurations.Attach(cmd.Context(), imagePath, index, workingDir, driverName, cmdLogger)
			if err != nil {
				cmdLogger.Error("attach failed", "error", err)
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), session.WorkingDir)
			return nil
		},
	}

	cmd.Flags().IntVar(&index, "index", 1, "Edition index inside a multi-edition container")
	cmd.Flags().StringVar(&workingDir, "dir", "", "Working directory to attach at (default: a fresh directory under the mount root)")
	cmd.Flags().StringVar(&driverName, "driver", "", "Image driver (wim, iso; default: by file extension)")

	return cmd
}

func newImageDetachCommand(logger *slog.Logger) *cobra.Command {
	var (
		save       bool
		driverName string
	)

	cmd := &cobra.Command{
		Use:   "detach <dir>",
		Args:  cobra.ExactArgs(1),
		Short: "Detach a working directory, discarding changes unless --save is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			workingDir := strings.TrimSpace(args[0])
			cmdLogger := logger.With("command", "image.detach", "working_dir", workingDir)

			if err := configurations.Detach(cmd.Context(), workingDir, save, driverName, cmdLogger); err != nil {
				cmdLogger.Error("detach failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Commit accumulated modifications into the image")
	cmd.Flags().StringVar(&driverName, "driver", "wim", "Image driver (wim, iso)")

	return cmd
}

func newImageInfoCommand(logger *slog.Logger) *cobra.Command {
	var driverName string

	cmd := &cobra.Command{
		Use:   "info <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Show the editions contained in an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := strings.TrimSpace(args[0])
			cmdLogger := logger.With("command", "image.info", "image", imagePath)

			metadata, err := configurations.Info(cmd.Context(), imagePath, driverName, cmdLogger)
			if err != nil {
				cmdLogger.Error("info failed", "error", err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%d bytes\n", metadata.Path, metadata.TotalBytes)
			for _, edition := range metadata.Editions {
				fmt.Fprintf(out, "  %d\t%s\t%s\n", edition.Index, edition.Name, edition.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driverName, "driver", "", "Image driver (wim, iso; default: by file extension)")

	return cmd
}

func newImageListCommand(logger *slog.Logger) *cobra.Command {
	var mountRoot string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List working directories left under the mount root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "image.list")

			dirs, err := configurations.ListMounts(mountRoot)
			if err != nil {
				cmdLogger.Error("listing mounts failed", "error", err)
				return err
			}
			if len(dirs) == 0 {
				cmdLogger.Info("no working directories under the mount root")
				return nil
			}
			for _, dir := range dirs {
				fmt.Fprintln(cmd.OutOrStdout(), dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mountRoot, "mount-root", "", "Mount root to inspect (default: the state directory)")

	return cmd
}

func newBuildCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run customization builds against deployment images",
	}

	cmd.AddCommand(newBuildApplyCommand(logger))
	return cmd
}

func newBuildApplyCommand(logger *slog.Logger) *cobra.Command {
	var (
		configPath string
		index      int
		driverName string
		mountRoot  string
	)

	cmd := &cobra.Command{
		Use:   "apply <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Attach an image, apply the configured stages, and commit the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := strings.TrimSpace(args[0])
			if imagePath == "" {
				return fmt.Errorf("image path is required")
			}
			if configPath == "" {
				configPath = paths.DefaultBuildConfig()
			}

			cmdLogger := logger.With("command", "build.apply", "image", imagePath)
			cmdLogger.Info("starting build", "config", configPath, "index", index)

			run, err := configurations.Apply(cmd.Context(), imagePath, index, configPath, driverName, mountRoot, cmdLogger, cmd.OutOrStdout())
			if err != nil {
				cmdLogger.Error("build failed", "error", err)
				return err
			}

			cmdLogger.Info("build completed", "run", run.ID, "status", run.Status, "stages", len(run.CompletedStages))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Build configuration file (default: the config directory's build.yaml)")
	cmd.Flags().IntVar(&index, "index", 1, "Edition index inside a multi-edition container")
	cmd.Flags().StringVar(&driverName, "driver", "", "Image driver (wim, iso; default: by file extension)")
	cmd.Flags().StringVar(&mountRoot, "mount-root", "", "Directory for working directories (default: the state directory)")

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

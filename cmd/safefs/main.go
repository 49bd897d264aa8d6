package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"safefs/internal/config"
	"safefs/internal/fs"
	"safefs/internal/logging"
	"safefs/internal/mount"
	"safefs/internal/state"

	"github.com/spf13/pflag"
)

var (
	logger = logging.GetLogger()
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	var mountPoint, sourcePath, stateFile, configPath string
	var verbose bool

	flagSet := pflag.NewFlagSet("safefs", pflag.ContinueOnError)
	flagSet.StringVarP(&mountPoint, "mount", "m", "", "mount point for the filesystem")
	flagSet.StringVarP(&sourcePath, "source", "s", "", "source directory to expose")
	flagSet.StringVar(&stateFile, "state", "", "session state file path (required)")
	flagSet.StringVarP(&configPath, "config", "c", "", "optional YAML config file")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logging.LevelDebug
	}
	logger.SetLevel(level)
	if cfg.LogFile != "" {
		w, err := logging.NewFileWriter(logging.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		})
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer w.Close()
		logger.SetOutput(w, cfg.LogLongFile)
	} else {
		logger.SetOutput(os.Stderr, cfg.LogLongFile)
	}

	logger.Info("Starting safefs...")
	logger.Debug("Mount point: %s", mountPoint)
	logger.Debug("Source path: %s", sourcePath)
	logger.Debug("State file: %s", stateFile)

	if mountPoint == "" || sourcePath == "" || stateFile == "" {
		printHelp(flagSet)
		return errors.New("mount point, source path, and state file path are required")
	}

	source, err := fs.NewPath(filepath.Clean(sourcePath)).Realpath()
	if err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}
	cleanMount := filepath.Clean(mountPoint)

	logger.Info("Initializing state manager...")
	stateManager, err := state.NewManager(stateFile, cfg.BackupCount)
	if err != nil {
		return fmt.Errorf("failed to initialize state manager: %w", err)
	}
	if err := stateManager.Acquire(); err != nil {
		if errors.Is(err, state.ErrSourceBusy) {
			return fmt.Errorf("state file %s is in use by another safefs process", stateManager.Path())
		}
		return err
	}
	defer func() {
		if err := stateManager.Release(); err != nil {
			logger.Warn("Failed to release state lock: %v", err)
		}
	}()

	previous, err := stateManager.LoadState()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if previous.Interrupted() {
		logger.Warn("Previous mount of %s at %s (pid %d) did not shut down cleanly",
			previous.Source, previous.MountPoint, previous.PID)
	}

	logger.Info("Creating passthrough filesystem...")
	mfs, err := mount.New(source, mount.Options{
		UID:        cfg.UID,
		GID:        cfg.GID,
		AllowOther: cfg.AllowOther,
	})
	if err != nil {
		return fmt.Errorf("failed to create filesystem: %w", err)
	}

	session := &state.Session{
		Version:    state.CurrentVersion,
		Source:     source.String(),
		MountPoint: cleanMount,
		PID:        os.Getpid(),
		Started:    time.Now().UTC(),
	}
	if err := stateManager.SaveState(session); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}

	logger.Debug("Setting up signal handlers...")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Mounting filesystem...")
	if err := mfs.Mount(ctx, cleanMount); err != nil {
		return err
	}
	logger.Info("Filesystem mounted and ready")

	mfs.Wait()

	session.Clean = true
	if err := stateManager.SaveState(session); err != nil {
		logger.Warn("Failed to record clean shutdown: %v", err)
	}
	logger.Info("Clean shutdown complete")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `safefs exposes a source directory through FUSE.

Usage:
  safefs --source DIR --mount DIR --state FILE [flags]

Flags:
%s
Environment:
%s
`, flagSet.FlagUsages(), config.Usage())
}

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hepunion/hepfs"
)

var rootCmd = &cobra.Command{
	Use:   "hepfs BRANCH:BRANCH",
	Short: "mounts a two-branch union filesystem",
	Long: "hepfs mounts a union of two branches, one RO and one RW, at a " +
		"mountpoint. The branch argument is BRANCH:BRANCH where each " +
		"BRANCH is PATH[=RO|RW]; if neither branch is typed, the first " +
		"is RO and the second is RW.",
	RunE: rootCmdRunE,
	Args: cobra.ExactArgs(1),
}

type rootCmdFlags struct {
	MountPoint string
	Debug      bool
	AllowOther bool
}

var rootFlags = &rootCmdFlags{}

func main() {
	initLogging()

	rootCmd.Flags().StringVarP(&rootFlags.MountPoint, "mountpoint", "m", "", "directory to mount the union at (required)")
	rootCmd.Flags().BoolVar(&rootFlags.Debug, "debug", false, "trace FUSE protocol messages")
	rootCmd.Flags().BoolVar(&rootFlags.AllowOther, "allow-other", false, "allow other users to access the mount")
	rootCmd.MarkFlagRequired("mountpoint")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to execute", "error", err)
		os.Exit(1)
	}
}

func rootCmdRunE(cmd *cobra.Command, args []string) error {
	ro, rw, err := hepfs.ParseBranches(args[0])
	if err != nil {
		return err
	}

	opts := []hepfs.Option{
		hepfs.WithDebug(rootFlags.Debug),
		hepfs.WithAllowOther(rootFlags.AllowOther),
	}

	m, err := hepfs.New(ro, rw, rootFlags.MountPoint, opts...)
	if err != nil {
		return err
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		if err := m.Unmount(); err != nil {
			slog.Error("unmount failed", "error", err)
		}
	}()

	slog.Info("mounted", "ro", ro, "rw", rw, "mountpoint", m.MountPoint())
	m.Wait()
	return nil
}

// initLogging configures the global slog logger based on an environment variable.
func initLogging() {
	logLevel := slog.LevelError

	switch strings.ToLower(os.Getenv("HEPFS_LOG_LEVEL")) {
	case "info":
		logLevel = slog.LevelInfo
	case "debug":
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

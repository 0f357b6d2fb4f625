package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cypher-asi/zero-os-sub006/internal/hal"
	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
	"github.com/cypher-asi/zero-os-sub006/internal/manifest"
	"github.com/cypher-asi/zero-os-sub006/internal/store"
)

// BootOptions holds flags for the boot command.
type BootOptions struct {
	*RootOptions
	Database string
	Config   string
}

// NewBootCommand creates the boot command.
func NewBootCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BootOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "boot <manifest-dir>",
		Short: "Boot a kernel from a manifest and run the gateway",
		Long: `Boot a kernel from a CUE boot manifest and run the syscall gateway.

The manifest names the processes to start and the capabilities each one
is granted. Programs run as goroutines on the host platform; the
built-in programs "idle" and "echo" are always available. With --db,
every commit and audit event is persisted as it is sealed, so the store
can later be replayed, verified, and inspected offline.

Exit codes:
  0 - Gateway shut down cleanly
  1 - Boot or gateway failure
  2 - Command error (bad manifest, bad config, database error)

Examples:
  zeroos boot ./manifests/dev
  zeroos boot ./manifests/dev --db ./zeroos.db
  zeroos boot ./manifests/dev --db ./zeroos.db --config daemon.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (omit to run without persistence)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML daemon config")

	return cmd
}

func runBoot(opts *BootOptions, manifestDir string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	slog.Info("loading boot manifest", "dir", manifestDir)
	spec, err := manifest.Load(manifestDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load boot manifest", err)
	}
	slog.Info("manifest loaded", "name", spec.Name, "processes", len(spec.Processes))

	var cfg DaemonConfig
	if opts.Config != "" {
		cfg, err = LoadDaemonConfig(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load daemon config", err)
		}
	}
	kernelOpts := cfg.KernelOptions()

	if opts.Database != "" {
		slog.Info("opening store", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open store", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing store", "error", closeErr)
			}
		}()
		kernelOpts = append(kernelOpts, kernel.WithSink(st))
	}

	platform := hal.NewHostPlatform(hal.WithConsole(cmd.OutOrStdout()))
	RegisterBuiltins(platform)

	k := kernel.New(platform, kernelOpts...)
	if err := k.Boot(spec); err != nil {
		return WrapExitError(ExitFailure, "boot failed", err)
	}
	defer k.Shutdown()

	// Use command's context if available (for testing), otherwise
	// create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Gateway running: boot %s, %d process(es).\n", k.BootID(), len(spec.Processes))
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "gateway error", err)
	}

	slog.Info("gateway stopped cleanly", "seq", k.Seq(), "head", k.Head())
	return nil
}

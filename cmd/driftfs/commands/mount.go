package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/protocol/fuse"
	"github.com/driftfs/driftfs/internal/telemetry"
	"github.com/driftfs/driftfs/pkg/api"
	"github.com/driftfs/driftfs/pkg/config"
	"github.com/driftfs/driftfs/pkg/dbfs"
	"github.com/driftfs/driftfs/pkg/hooks"
	"github.com/driftfs/driftfs/pkg/metrics"
	promfs "github.com/driftfs/driftfs/pkg/metrics/prometheus"
)

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Mount the filesystem",
	Long: `Mount the DriftFS filesystem at the given directory.

The process stays in the foreground and serves kernel requests until it
receives SIGINT or SIGTERM, then unmounts and shuts down gracefully.

Examples:
  # Mount with default config
  driftfs mount /mnt/drift

  # Mount with custom config file
  driftfs mount --config /etc/driftfs/config.yaml /mnt/drift

  # Override settings with environment variables
  DRIFTFS_LOGGING_LEVEL=DEBUG DRIFTFS_MOUNT_ENGINE=parallel driftfs mount /mnt/drift`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func runMount(cmd *cobra.Command, args []string) error {
	mountpoint := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "driftfs",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "driftfs",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err.Error())
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	var fuseMetrics metrics.FUSEMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		fuseMetrics = promfs.NewFUSEMetrics()
		startMetricsServer(ctx, cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	logger.Info("metadata store ready", logger.KeyMetadataStore, cfg.Database.Type)

	engine, err := buildHookEngine(ctx, cfg)
	if err != nil {
		return err
	}

	backend := dbfs.New(store, engine)
	backend.SetTransferLimits(uint32(cfg.Mount.MaxWrite.Uint64()), uint32(cfg.Mount.MaxReadahead.Uint64()))

	acl, err := parseACL(cfg.Mount.ACL)
	if err != nil {
		return err
	}

	ch, err := fuse.Mount(mountpoint, fuse.MountOptions{
		FSName:             "driftfs",
		Subtype:            "driftfs",
		AllowOther:         cfg.Mount.AllowOther,
		DefaultPermissions: cfg.Mount.DefaultPermissions,
		ReadOnly:           cfg.Mount.ReadOnly,
		DirectMount:        cfg.Mount.DirectMount,
	})
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", mountpoint, err)
	}
	logger.Info("filesystem mounted",
		logger.KeyMount, mountpoint,
		"acl", acl.String(),
		"engine", cfg.Mount.Engine)

	owner := uint32(os.Getuid())
	serveDone := make(chan error, 1)
	go func() {
		switch cfg.Mount.Engine {
		case "parallel":
			session := fuse.NewSharedSession(backend, ch, acl, owner, fuseMetrics)
			serveDone <- fuse.ServeParallel(ctx, session, ch)
		default:
			session := fuse.NewSession(backend, ch, acl, owner, fuseMetrics)
			serveDone <- fuse.Serve(ctx, session, ch)
		}
	}()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(api.Config{Port: cfg.API.Port}, store)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("control API error", logger.KeyError, err.Error())
			}
		}()
		logger.Info("control API enabled", "port", cfg.API.Port)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("serving. Press Ctrl+C to unmount.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, unmounting")
	case err := <-serveDone:
		signal.Stop(sigChan)
		return shutdown(cfg, mountpoint, apiServer, err)
	}

	// Unmounting makes the device read loop return, which ends the serve
	// goroutine.
	if err := fuse.Unmount(mountpoint); err != nil {
		logger.Warn("unmount failed, cancelling serve loop", logger.KeyError, err.Error())
		cancel()
	}

	select {
	case err := <-serveDone:
		return shutdown(cfg, mountpoint, apiServer, err)
	case <-time.After(cfg.ShutdownTimeout):
		return fmt.Errorf("serve loop did not stop within %s", cfg.ShutdownTimeout)
	}
}

func shutdown(cfg *config.Config, mountpoint string, apiServer *api.Server, serveErr error) error {
	// Best-effort: the mount may already be gone.
	_ = fuse.Unmount(mountpoint)

	if apiServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := apiServer.Stop(stopCtx); err != nil {
			logger.Warn("control API shutdown error", logger.KeyError, err.Error())
		}
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logger.Error("serve loop error", logger.KeyError, serveErr.Error())
		return serveErr
	}
	logger.Info("unmounted cleanly")
	return nil
}

// buildHookEngine assembles the configured write hooks, or returns nil when
// hooks are disabled.
func buildHookEngine(ctx context.Context, cfg *config.Config) (*hooks.Engine, error) {
	if !cfg.Hooks.Enabled {
		return nil, nil
	}

	engine := hooks.NewEngine()

	validator, err := hooks.NewValidator(cfg.Hooks.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load hook schemas: %w", err)
	}
	if cfg.Hooks.MaxFileSize > 0 {
		validator = validator.WithMaxSize(cfg.Hooks.MaxFileSize.Uint64())
	}
	if cfg.Hooks.WatchSchemas && cfg.Hooks.SchemaDir != "" {
		if err := validator.Watch(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch schema directory: %w", err)
		}
	}
	engine.Register(validator)

	if cfg.Hooks.WorkflowCommand != "" {
		engine.Register(hooks.NewWorkflowHook(cfg.Hooks.WorkflowCommand, cfg.Hooks.WorkflowArgs...))
	}

	logger.Info("hook engine enabled",
		"hooks", len(engine.Hooks()),
		"schema_dir", cfg.Hooks.SchemaDir)
	return engine, nil
}

func parseACL(s string) (fuse.ACL, error) {
	switch s {
	case "unrestricted":
		return fuse.ACLUnrestricted, nil
	case "owner":
		return fuse.ACLOwnerOnly, nil
	case "root-and-owner":
		return fuse.ACLRootAndOwner, nil
	default:
		return 0, fmt.Errorf("unknown acl mode %q", s)
	}
}

// startMetricsServer exposes the Prometheus registry on its own loopback
// port, independent of the control API.
func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", logger.KeyError, err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = server.Shutdown(stopCtx)
	}()
}

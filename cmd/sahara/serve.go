package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/sahara/pkg/config"
	"github.com/cuemby/sahara/pkg/events"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/manager"
	"github.com/cuemby/sahara/pkg/metrics"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/templates"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provisioning engine",
	Long: `Run the reconciler that provisions, scales and deletes clusters, and
serve metrics and health endpoints.

With --replicated the state is kept in a Raft group. The first node
bootstraps the group and adds the nodes listed in --peers; the other nodes
start with --join.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("replicated", false, "Replicate state with Raft")
	serveCmd.Flags().String("node-id", "sahara-1", "Unique node ID")
	serveCmd.Flags().String("raft-bind-addr", "127.0.0.1:7946", "Address for Raft communication")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for metrics and health endpoints")
	serveCmd.Flags().Bool("join", false, "Wait to be added to an existing Raft group instead of bootstrapping")
	serveCmd.Flags().StringSlice("peers", nil, "Raft peers to add once leader, as id=address")
	serveCmd.Flags().Bool("load-templates", false, "Apply the default templates directory on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)
	metrics.RegisterComponent("store", false, "opening")
	metrics.RegisterComponent("reconciler", false, "starting")

	store, mgr, err := openServeStore(cmd, cfg)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, store)
	if err != nil {
		store.Close()
		return err
	}
	defer rt.Close()
	metrics.UpdateComponent("store", true, "open")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if load, _ := cmd.Flags().GetBool("load-templates"); load {
		if err := applyDefaultTemplates(ctx, rt); err != nil {
			logger.Warn().Err(err).Msg("Default templates not applied")
		}
	}

	var raftStats metrics.RaftStats
	if mgr != nil {
		raftStats = mgr
	}
	collector := metrics.NewCollector(store, raftStats)
	collector.Start()
	defer collector.Stop()

	failures := rt.broker.Subscribe(events.OfType(events.EventProvisionStepFailed, events.EventProvisionInstanceFailed))
	defer rt.broker.Unsubscribe(failures)
	go func() {
		for ev := range failures {
			entry := logger.Warn().Str("cluster_id", ev.ClusterID).Str("event", string(ev.Type))
			for k, v := range ev.Metadata {
				entry = entry.Str(k, v)
			}
			entry.Msg(ev.Message)
		}
	}()

	rt.reconciler.Start(ctx)
	defer rt.reconciler.Stop()
	metrics.UpdateComponent("reconciler", true, "running")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("metrics_addr", cfg.MetricsAddr).
		Bool("replicated", cfg.Replicated).
		Msg("Sahara is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("Shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("Shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// openServeStore returns the local bolt store, or a Raft-replicated manager
// when replication is enabled
func openServeStore(cmd *cobra.Command, cfg *config.Config) (storage.Store, *manager.Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if !cfg.Replicated {
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open store: %w", err)
		}
		return store, nil, nil
	}

	mgr, err := manager.NewManager(&manager.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.RaftBindAddr,
		DataDir:  cfg.DataDir,
	})
	if err != nil {
		return nil, nil, err
	}

	join, _ := cmd.Flags().GetBool("join")
	if join {
		err = mgr.Join()
	} else {
		err = mgr.Bootstrap()
	}
	if err != nil {
		mgr.Close()
		return nil, nil, err
	}
	if join {
		return mgr, mgr, nil
	}

	if err := mgr.WaitForLeader(30 * time.Second); err != nil {
		mgr.Close()
		return nil, nil, err
	}
	peers, _ := cmd.Flags().GetStringSlice("peers")
	for _, peer := range peers {
		id, addr, ok := strings.Cut(peer, "=")
		if !ok {
			mgr.Close()
			return nil, nil, fmt.Errorf("malformed peer %q, expected id=address", peer)
		}
		if err := mgr.AddVoter(id, addr); err != nil {
			mgr.Close()
			return nil, nil, fmt.Errorf("failed to add peer %s: %w", id, err)
		}
	}
	return mgr, mgr, nil
}

func applyDefaultTemplates(ctx context.Context, rt *runtime) error {
	filter := templates.Filter{
		PluginName:     rt.cfg.Templates.PluginName,
		PluginVersions: rt.cfg.Templates.PluginVersions,
	}
	loaded, err := templates.LoadDir(rt.cfg.Templates.Directory, filter)
	if err != nil {
		return err
	}
	tool := templates.New(rt.conductor, rt.cfg.Templates.Tenant)
	result := tool.Update(ctx, loaded)
	if result.Error {
		return result.Err
	}
	if rt.cfg.Templates.Prune {
		if result := tool.Prune(ctx, filter, loaded); result.Error {
			return result.Err
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/config"
	"github.com/cuemby/sahara/pkg/events"
	"github.com/cuemby/sahara/pkg/images"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/mapr/lifecycle"
	"github.com/cuemby/sahara/pkg/reconciler"
	"github.com/cuemby/sahara/pkg/remote"
	"github.com/cuemby/sahara/pkg/security"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sahara",
	Short: "Sahara - MapR cluster provisioning",
	Long: `Sahara provisions MapR clusters from cluster and node group templates.

It resolves templates into clusters, validates their service topology and
drives installation, configuration, scaling and decommissioning over SSH.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Sahara version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("data-dir", "./sahara-data", "Data directory for provisioning state")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log in JSON format")
	flags.String("plugin-version", "6.0.0.mrv2", "Default MapR plugin version")
	flags.String("ssh-user", "cloud-user", "Fallback SSH login user")
	flags.Int("fan-out", 16, "Maximum concurrent remote operations per step")
	flags.String("tenant", "", "Tenant the command acts for")
	flags.Bool("async", false, "Record requests without reconciling them")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(flavorCmd)
}

// loadConfig builds the configuration for cmd and initialises logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})
	return cfg, nil
}

// runtime wires the components commands operate on
type runtime struct {
	cfg        *config.Config
	store      storage.Store
	conductor  *conductor.Conductor
	lookup     images.Lookup
	reconciler *reconciler.Reconciler
	broker     *events.Broker
	async      bool
}

func newRuntime(cfg *config.Config, store storage.Store) (*runtime, error) {
	opts := []conductor.Option{}
	if cfg.SecretKey != "" {
		secrets, err := security.NewSecretsManagerFromPassword(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets manager: %w", err)
		}
		opts = append(opts, conductor.WithSecrets(secrets))
	}
	broker := events.NewBroker()
	broker.Start()
	opts = append(opts, conductor.WithBroker(broker))

	cond := conductor.New(store, opts...)
	lookup := images.NewCachedLookup(images.NewStoreLookup(store), time.Minute)
	connector := &remote.SSHConnector{
		User:    cfg.SSH.User,
		Port:    cfg.SSH.Port,
		Timeout: cfg.SSH.Timeout,
		Images:  lookup,
	}
	orchestrator := lifecycle.New(cond, connector, cfg.Provisioning)

	return &runtime{
		cfg:        cfg,
		store:      store,
		conductor:  cond,
		lookup:     lookup,
		reconciler: reconciler.NewReconciler(cond, orchestrator, lookup, cfg.Provisioning.ReconcileInterval),
		broker:     broker,
	}, nil
}

func (r *runtime) requestContext() *types.RequestContext {
	return &types.RequestContext{TenantID: r.cfg.Templates.Tenant, IsAdmin: true}
}

// reconcile runs one reconciliation cycle so that recorded requests are
// carried out before the command returns
func (r *runtime) reconcile(ctx context.Context) error {
	if r.async {
		return nil
	}
	sub := r.broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub {
			fmt.Printf("  %s  %s\n", ev.Type, ev.Message)
		}
	}()
	err := r.reconciler.Reconcile(ctx)
	r.broker.Flush()
	r.broker.Unsubscribe(sub)
	<-done
	return err
}

func (r *runtime) Close() error {
	r.broker.Stop()
	return r.store.Close()
}

// openRuntime opens the local store for one-shot commands. The store is
// locked while a server runs on the same data directory.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	rt, err := newRuntime(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	rt.async, _ = cmd.Flags().GetBool("async")
	return rt, nil
}

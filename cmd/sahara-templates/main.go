package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/config"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/storage"
	"github.com/cuemby/sahara/pkg/templates"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sahara-templates",
	Short: "Maintain the default templates of the MapR plugin",
	Long: `Create, update, list and delete the default node group and cluster
templates shipped with the plugin.

Templates are read from JSON or YAML files below --templates-dir. Cluster
templates refer to node group templates of the same directory with
"{name}" placeholders in node_group_template_id.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Create or update default templates from the templates directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tool, store, err := open(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		filter := filterOf(cfg)
		loaded, err := templates.LoadDir(cfg.Templates.Directory, filter)
		if err != nil {
			return err
		}
		result := tool.Update(cmd.Context(), loaded)
		if err := report(result); err != nil {
			return err
		}
		if !cfg.Templates.Prune {
			return nil
		}
		return report(tool.Prune(cmd.Context(), filter, loaded))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME|ID",
	Short: "Delete a default template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tool, store, err := open(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return report(tool.Delete(cmd.Context(), filterOf(cfg), args[0]))
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete default templates that are no longer in the templates directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tool, store, err := open(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		filter := filterOf(cfg)
		loaded, err := templates.LoadDir(cfg.Templates.Directory, filter)
		if err != nil {
			return err
		}
		return report(tool.Prune(cmd.Context(), filter, loaded))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List default templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, tool, store, err := open(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := tool.List(cmd.Context(), filterOf(cfg))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tID\tNAME\tVERSION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Kind, e.ID, e.Name, e.HadoopVersion)
		}
		return w.Flush()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("data-dir", "./sahara-data", "Data directory for provisioning state")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log in JSON format")
	flags.String("templates-dir", "./default-templates", "Directory holding the default templates")
	flags.String("tenant", "", "Tenant owning the default templates")
	flags.String("plugin-name", "mapr", "Only handle templates of this plugin")
	flags.StringSlice("plugin-versions", nil, "Only handle templates of these plugin versions")

	updateCmd.Flags().Bool("prune", false, "Delete default templates missing from the directory")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(listCmd)
}

func open(cmd *cobra.Command) (*config.Config, *templates.Tool, storage.Store, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return cfg, templates.New(conductor.New(store), cfg.Templates.Tenant), store, nil
}

func filterOf(cfg *config.Config) templates.Filter {
	return templates.Filter{
		PluginName:     cfg.Templates.PluginName,
		PluginVersions: cfg.Templates.PluginVersions,
	}
}

// report prints every outcome and returns the combined failure
func report(result *templates.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, o := range result.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Status, o.Kind, o.Name, o.ID, detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if result.Error {
		return result.Err
	}
	return nil
}

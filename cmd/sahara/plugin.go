package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/sahara/pkg/config"
	"github.com/cuemby/sahara/pkg/mapr/services"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect the MapR plugin",
}

var pluginVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List supported plugin versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, v := range services.Versions() {
			mode, err := services.ClusterMode(v)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", v, mode)
		}
		return nil
	},
}

var pluginServicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List services and their node processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := pluginVersion(cmd)
		if err != nil {
			return err
		}
		registry, err := services.Registry(version)
		if err != nil {
			return err
		}

		byService := registry.ProcessesByService()
		names := make([]string, 0, len(byService))
		for name := range byService {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tVERSIONS\tPROCESSES")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\t%s\n", name,
				strings.Join(registry.Versions(name), ","),
				strings.Join(byService[name], ","))
		}
		return w.Flush()
	},
}

var pluginConfigsCmd = &cobra.Command{
	Use:   "configs",
	Short: "List plugin configuration options",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := pluginVersion(cmd)
		if err != nil {
			return err
		}
		registry, err := services.Registry(version)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tNAME\tSCOPE\tTYPE\tDEFAULT")
		for _, opt := range registry.Configs() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", opt.Target, opt.Name, opt.Scope, opt.Type, opt.Default)
		}
		return w.Flush()
	},
}

func init() {
	pluginCmd.AddCommand(pluginVersionsCmd)
	pluginCmd.AddCommand(pluginServicesCmd)
	pluginCmd.AddCommand(pluginConfigsCmd)
}

// pluginVersion resolves --plugin-version without opening the store
func pluginVersion(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return "", err
	}
	return cfg.PluginVersion, nil
}

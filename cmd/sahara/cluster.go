package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/health"
	"github.com/cuemby/sahara/pkg/mapr/cluster"
	"github.com/cuemby/sahara/pkg/mapr/services"
	"github.com/cuemby/sahara/pkg/mapr/validation"
	"github.com/cuemby/sahara/pkg/types"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage clusters",
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		filters := types.Values{}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			filters["status"] = status
		}
		clusters, err := rt.conductor.ClusterGetAll(cmd.Context(), rt.requestContext(), filters)
		if err != nil {
			return err
		}
		sort.Slice(clusters, func(i, j int) bool { return clusters[i].Name < clusters[j].Name })

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tINSTANCES")
		for _, c := range clusters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", c.ID, c.Name, c.HadoopVersion, c.Status, len(c.Instances()))
		}
		return w.Flush()
	},
}

var clusterShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		c, err := rt.conductor.ClusterGet(cmd.Context(), rt.requestContext(), args[0])
		if err != nil {
			return err
		}
		// The management key stays out of the printed document
		c.ManagementPrivateKey = ""
		values, err := types.Encode(c)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(values)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var clusterValidateCmd = &cobra.Command{
	Use:   "validate ID",
	Short: "Validate the service topology of a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		cc, err := rt.clusterContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := validation.Validate(cc); err != nil {
			return err
		}
		fmt.Printf("✓ Cluster %s is valid\n", cc.Cluster().Name)
		return nil
	},
}

var clusterProvisionCmd = &cobra.Command{
	Use:   "provision ID",
	Short: "Install, configure and start a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, args[0], func(ctx context.Context, rt *runtime) error {
			return rt.reconciler.RequestProvision(ctx, rt.requestContext(), args[0])
		})
	},
}

var clusterScaleCmd = &cobra.Command{
	Use:   "scale ID",
	Short: "Add instances to node groups of an active cluster",
	Long: `Add instances to node groups of an active cluster.

Each --instance names the node group (by name or ID) and the new host, as
GROUP=HOSTNAME:IP. The management address defaults to the internal one.

Example:
  sahara cluster scale 4f1d... --instance worker=worker-3:10.0.0.13`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, _ := cmd.Flags().GetStringArray("instance")
		if len(specs) == 0 {
			return fmt.Errorf("at least one --instance is required")
		}
		return runRequest(cmd, args[0], func(ctx context.Context, rt *runtime) error {
			c, err := rt.conductor.ClusterGet(ctx, rt.requestContext(), args[0])
			if err != nil {
				return err
			}
			additions, err := parseInstances(c, specs)
			if err != nil {
				return err
			}
			return rt.reconciler.RequestScale(ctx, rt.requestContext(), c.ID, additions)
		})
	},
}

var clusterDecommissionCmd = &cobra.Command{
	Use:   "decommission ID INSTANCE...",
	Short: "Remove instances from an active cluster",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, args[0], func(ctx context.Context, rt *runtime) error {
			return rt.reconciler.RequestDecommission(ctx, rt.requestContext(), args[0], args[1:])
		})
	},
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Stop services and delete a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, args[0], func(ctx context.Context, rt *runtime) error {
			return rt.reconciler.RequestDelete(ctx, rt.requestContext(), args[0])
		})
	},
}

var clusterCheckCmd = &cobra.Command{
	Use:   "check ID",
	Short: "Check that the ports of every node process answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")
		web, _ := cmd.Flags().GetBool("web")
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		cc, err := rt.clusterContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return checkPorts(cmd.Context(), cc, wait, web)
	},
}

func init() {
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterShowCmd)
	clusterCmd.AddCommand(clusterValidateCmd)
	clusterCmd.AddCommand(clusterProvisionCmd)
	clusterCmd.AddCommand(clusterScaleCmd)
	clusterCmd.AddCommand(clusterDecommissionCmd)
	clusterCmd.AddCommand(clusterDeleteCmd)
	clusterCmd.AddCommand(clusterCheckCmd)

	clusterListCmd.Flags().String("status", "", "Only list clusters in this status")
	clusterScaleCmd.Flags().StringArray("instance", nil, "New instance as GROUP=HOSTNAME:IP (repeatable)")
	clusterCheckCmd.Flags().Duration("wait", 0, "Keep polling until every port answers or the duration elapses")
	clusterCheckCmd.Flags().Bool("web", false, "Also fetch the web consoles of the cluster services")
}

// runRequest records a request and, unless --async is set, reconciles it
// before reporting the resulting status
func runRequest(cmd *cobra.Command, id string, request func(context.Context, *runtime) error) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if err := request(ctx, rt); err != nil {
		return err
	}
	if err := rt.reconcile(ctx); err != nil {
		return err
	}

	c, err := rt.conductor.ClusterGet(ctx, rt.requestContext(), id)
	if errors.CodeOf(err) == errors.CodeNotFound {
		fmt.Printf("✓ Cluster %s deleted\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status == types.ClusterStatusError {
		return fmt.Errorf("cluster %s failed: %s", c.Name, c.StatusDescription)
	}
	fmt.Printf("Cluster %s is %s\n", c.Name, c.Status)
	return nil
}

func (r *runtime) clusterContext(ctx context.Context, id string) (*cluster.Context, error) {
	c, err := r.conductor.ClusterGet(ctx, r.requestContext(), id)
	if err != nil {
		return nil, err
	}
	registry, err := services.Registry(c.HadoopVersion)
	if err != nil {
		return nil, err
	}
	return cluster.New(c, registry, r.lookup, nil, nil)
}

// parseInstances turns GROUP=HOSTNAME:IP specs into instance documents
// keyed by node group ID
func parseInstances(c *types.Cluster, specs []string) (map[string][]types.Values, error) {
	additions := make(map[string][]types.Values)
	for _, spec := range specs {
		group, host, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("malformed instance %q, expected GROUP=HOSTNAME:IP", spec)
		}
		name, ip, ok := strings.Cut(host, ":")
		if !ok || name == "" || ip == "" {
			return nil, fmt.Errorf("malformed instance %q, expected GROUP=HOSTNAME:IP", spec)
		}
		ng := findNodeGroup(c, group)
		if ng == nil {
			return nil, fmt.Errorf("node group %q not found in cluster %s", group, c.Name)
		}
		additions[ng.ID] = append(additions[ng.ID], types.Values{
			"instance_name": name,
			"internal_ip":   ip,
			"management_ip": ip,
		})
	}
	return additions, nil
}

func findNodeGroup(c *types.Cluster, nameOrID string) *types.NodeGroup {
	for _, ng := range c.NodeGroups {
		if ng.ID == nameOrID || ng.Name == nameOrID {
			return ng
		}
	}
	return nil
}

type portCheck struct {
	host    string
	process string
	checker health.Checker
}

// checkPorts checks the open ports of every node process on every
// instance, and optionally the service web consoles, concurrently
func checkPorts(ctx context.Context, cc *cluster.Context, wait time.Duration, web bool) error {
	var checks []portCheck
	for _, inst := range cc.AllInstances() {
		for _, name := range cc.InstanceProcesses(inst) {
			process, ok := cc.Registry().Process(name)
			if !ok {
				continue
			}
			for _, checker := range health.ProcessPortCheckers(inst.InternalIP, process) {
				checks = append(checks, portCheck{host: inst.FQDN(), process: name, checker: checker})
			}
		}
	}
	if web {
		for _, service := range cc.ClusterServices() {
			for _, ui := range service.WebUIs {
				for _, inst := range cc.ProcessInstances(ui.Process) {
					checks = append(checks, portCheck{
						host:    inst.FQDN(),
						process: ui.Label,
						checker: health.NewHTTPChecker(ui.URL(inst.InternalIP)),
					})
				}
			}
		}
	}

	results := make([]health.Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			if wait <= 0 {
				results[i] = check.checker.Check(gctx)
				return nil
			}
			cfg := health.DefaultConfig()
			cfg.Timeout = wait
			status, _ := health.WaitFor(gctx, check.checker, cfg)
			results[i] = status.LastResult
			return nil
		})
	}
	_ = g.Wait()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tPROCESS\tHEALTHY\tDETAIL")
	failed := 0
	for i, check := range checks {
		if !results[i].Healthy {
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", check.host, check.process, results[i].Healthy, results[i].Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d port checks failed", failed, len(checks))
	}
	return nil
}

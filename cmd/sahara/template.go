package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/sahara/pkg/types"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage cluster and node group templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cluster and node group templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		filters := types.Values{}
		if defaults, _ := cmd.Flags().GetBool("defaults"); defaults {
			filters["is_default"] = true
		}

		ngts, err := rt.conductor.NodeGroupTemplateGetAll(ctx, rt.requestContext(), filters)
		if err != nil {
			return err
		}
		cts, err := rt.conductor.ClusterTemplateGetAll(ctx, rt.requestContext(), filters)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tID\tNAME\tVERSION\tDEFAULT")
		for _, t := range ngts {
			fmt.Fprintf(w, "node_group\t%s\t%s\t%s\t%t\n", t.ID, t.Name, t.HadoopVersion, t.IsDefault)
		}
		for _, t := range cts {
			fmt.Fprintf(w, "cluster\t%s\t%s\t%s\t%t\n", t.ID, t.Name, t.HadoopVersion, t.IsDefault)
		}
		return w.Flush()
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a cluster or node group template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		rc := rt.requestContext()
		if _, err := rt.conductor.ClusterTemplateGet(ctx, rc, args[0]); err == nil {
			if err := rt.conductor.ClusterTemplateDestroy(ctx, rc, args[0], false); err != nil {
				return err
			}
			fmt.Printf("✓ Cluster template deleted: %s\n", args[0])
			return nil
		}
		if err := rt.conductor.NodeGroupTemplateDestroy(ctx, rc, args[0], false); err != nil {
			return err
		}
		fmt.Printf("✓ Node group template deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateDeleteCmd)

	templateListCmd.Flags().Bool("defaults", false, "Only list default templates")
}

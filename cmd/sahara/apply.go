package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/sahara/pkg/conductor"
	"github.com/cuemby/sahara/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a resource file",
	Long: `Create or update resources from a YAML file. A file may hold several
documents separated by '---'; they are applied in order.

Supported kinds: Image, Flavor, NodeGroupTemplate, ClusterTemplate, Cluster.

Node groups of a cluster template may name their node group template with
node_group_template_name instead of node_group_template_id.

Examples:
  # Register images and templates
  sahara apply -f mapr-6.0.0.yaml

  # Create a cluster and provision it
  sahara apply -f cluster.yaml --provision`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	applyCmd.Flags().Bool("provision", false, "Provision created clusters")
	_ = applyCmd.MarkFlagRequired("file")
}

// Resource is one document of an apply file
type Resource struct {
	Kind string       `yaml:"kind"`
	Spec types.Values `yaml:"spec"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	provision, _ := cmd.Flags().GetBool("provision")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	var created []string
	for _, res := range resources {
		id, err := rt.apply(ctx, res)
		if err != nil {
			return err
		}
		if res.Kind == "Cluster" && id != "" {
			created = append(created, id)
		}
	}

	if !provision {
		return nil
	}
	for _, id := range created {
		if err := rt.reconciler.RequestProvision(ctx, rt.requestContext(), id); err != nil {
			return err
		}
	}
	return rt.reconcile(ctx)
}

func decodeResources(r io.Reader) ([]*Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []*Resource
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if res.Kind == "" {
			return nil, fmt.Errorf("document %d has no kind", len(out)+1)
		}
		if res.Spec == nil {
			res.Spec = types.Values{}
		}
		out = append(out, &res)
	}
	return out, nil
}

// apply creates or updates one resource and returns the ID of a newly
// created cluster
func (r *runtime) apply(ctx context.Context, res *Resource) (string, error) {
	rc := r.requestContext()
	name, _ := res.Spec["name"].(string)

	switch res.Kind {
	case "Image":
		var image types.Image
		if err := types.Decode(res.Spec, &image); err != nil {
			return "", err
		}
		if image.ID == "" {
			return "", fmt.Errorf("image id is required")
		}
		if err := r.store.PutImage(&image); err != nil {
			return "", err
		}
		fmt.Printf("✓ Image registered: %s\n", image.ID)

	case "Flavor":
		var flavor types.Flavor
		if err := types.Decode(res.Spec, &flavor); err != nil {
			return "", err
		}
		if flavor.ID == "" {
			return "", fmt.Errorf("flavor id is required")
		}
		if err := r.store.PutFlavor(&flavor); err != nil {
			return "", err
		}
		fmt.Printf("✓ Flavor registered: %s\n", flavor.ID)

	case "NodeGroupTemplate":
		if err := conductor.ValidateNodeGroupTemplate(res.Spec); err != nil {
			return "", err
		}
		existing, err := r.conductor.NodeGroupTemplateGetAll(ctx, rc, types.Values{"name": name})
		if err != nil {
			return "", err
		}
		if len(existing) > 0 {
			if _, err := r.conductor.NodeGroupTemplateUpdate(ctx, rc, existing[0].ID, res.Spec, false); err != nil {
				return "", err
			}
			fmt.Printf("✓ Node group template updated: %s (ID: %s)\n", name, existing[0].ID)
			return "", nil
		}
		ngt, err := r.conductor.NodeGroupTemplateCreate(ctx, rc, res.Spec)
		if err != nil {
			return "", err
		}
		fmt.Printf("✓ Node group template created: %s (ID: %s)\n", name, ngt.ID)

	case "ClusterTemplate":
		if err := r.resolveTemplateNames(ctx, res.Spec); err != nil {
			return "", err
		}
		if err := conductor.ValidateClusterTemplate(res.Spec); err != nil {
			return "", err
		}
		existing, err := r.conductor.ClusterTemplateGetAll(ctx, rc, types.Values{"name": name})
		if err != nil {
			return "", err
		}
		if len(existing) > 0 {
			if _, err := r.conductor.ClusterTemplateUpdate(ctx, rc, existing[0].ID, res.Spec, false); err != nil {
				return "", err
			}
			fmt.Printf("✓ Cluster template updated: %s (ID: %s)\n", name, existing[0].ID)
			return "", nil
		}
		ct, err := r.conductor.ClusterTemplateCreate(ctx, rc, res.Spec)
		if err != nil {
			return "", err
		}
		fmt.Printf("✓ Cluster template created: %s (ID: %s)\n", name, ct.ID)

	case "Cluster":
		existing, err := r.conductor.ClusterGetAll(ctx, rc, types.Values{"name": name})
		if err != nil {
			return "", err
		}
		if len(existing) > 0 {
			fmt.Printf("Cluster already exists: %s (skipping)\n", name)
			return "", nil
		}
		if tmplName, ok := res.Spec["cluster_template_name"].(string); ok {
			templates, err := r.conductor.ClusterTemplateGetAll(ctx, rc, types.Values{"name": tmplName})
			if err != nil {
				return "", err
			}
			if len(templates) == 0 {
				return "", fmt.Errorf("cluster template %q not found", tmplName)
			}
			delete(res.Spec, "cluster_template_name")
			res.Spec["cluster_template_id"] = templates[0].ID
		}
		if err := r.resolveTemplateNames(ctx, res.Spec); err != nil {
			return "", err
		}
		c, err := r.conductor.ClusterCreate(ctx, rc, res.Spec)
		if err != nil {
			return "", err
		}
		fmt.Printf("✓ Cluster created: %s (ID: %s)\n", name, c.ID)
		return c.ID, nil

	default:
		return "", fmt.Errorf("unsupported resource kind: %s", res.Kind)
	}
	return "", nil
}

// resolveTemplateNames replaces node_group_template_name references in the
// node groups of spec with template IDs
func (r *runtime) resolveTemplateNames(ctx context.Context, spec types.Values) error {
	groups, _ := spec["node_groups"].([]interface{})
	for _, raw := range groups {
		ng, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, ok := ng["node_group_template_name"].(string)
		if !ok {
			continue
		}
		found, err := r.conductor.NodeGroupTemplateGetAll(ctx, r.requestContext(), types.Values{"name": name})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("node group template %q not found", name)
		}
		delete(ng, "node_group_template_name")
		ng["node_group_template_id"] = found[0].ID
	}
	return nil
}

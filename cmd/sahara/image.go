package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/sahara/pkg/types"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage boot images",
}

var imageRegisterCmd = &cobra.Command{
	Use:   "register ID",
	Short: "Register an image and its tags",
	Long: `Register an image. Node groups pick the image whose tags include the
plugin name and version; the username is the SSH login for its instances.

Example:
  sahara image register centos7-mapr --username centos --tag mapr --tag 6.0.0.mrv2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		username, _ := cmd.Flags().GetString("username")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if name == "" {
			name = args[0]
		}
		image := &types.Image{ID: args[0], Name: name, Username: username, Tags: tags}
		if err := rt.store.PutImage(image); err != nil {
			return err
		}
		fmt.Printf("✓ Image registered: %s (tags: %s)\n", image.ID, strings.Join(tags, ","))
		return nil
	},
}

var imageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered images",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		images, err := rt.store.ListImages()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUSERNAME\tTAGS")
		for _, img := range images {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.ID, img.Name, img.Username, strings.Join(img.Tags, ","))
		}
		return w.Flush()
	},
}

var flavorCmd = &cobra.Command{
	Use:   "flavor",
	Short: "Manage instance flavors",
}

var flavorRegisterCmd = &cobra.Command{
	Use:   "register ID",
	Short: "Register an instance flavor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		vcpus, _ := cmd.Flags().GetInt("vcpus")
		ram, _ := cmd.Flags().GetInt("ram")
		disk, _ := cmd.Flags().GetInt("disk")
		ephemeral, _ := cmd.Flags().GetInt("ephemeral")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if name == "" {
			name = args[0]
		}
		flavor := &types.Flavor{ID: args[0], Name: name, VCPUs: vcpus, RAM: ram, Disk: disk, Ephemeral: ephemeral}
		if err := rt.store.PutFlavor(flavor); err != nil {
			return err
		}
		fmt.Printf("✓ Flavor registered: %s (%d vCPUs, %d MB RAM)\n", flavor.ID, vcpus, ram)
		return nil
	},
}

var flavorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered flavors",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		flavors, err := rt.store.ListFlavors()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVCPUS\tRAM\tDISK\tEPHEMERAL")
		for _, f := range flavors {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", f.ID, f.Name, f.VCPUs, f.RAM, f.Disk, f.Ephemeral)
		}
		return w.Flush()
	},
}

func init() {
	imageCmd.AddCommand(imageRegisterCmd)
	imageCmd.AddCommand(imageListCmd)
	flavorCmd.AddCommand(flavorRegisterCmd)
	flavorCmd.AddCommand(flavorListCmd)

	imageRegisterCmd.Flags().String("name", "", "Display name (defaults to the ID)")
	imageRegisterCmd.Flags().String("username", "cloud-user", "SSH login user of the image")
	imageRegisterCmd.Flags().StringSlice("tag", nil, "Image tag (repeatable)")

	flavorRegisterCmd.Flags().String("name", "", "Display name (defaults to the ID)")
	flavorRegisterCmd.Flags().Int("vcpus", 1, "Virtual CPUs")
	flavorRegisterCmd.Flags().Int("ram", 1024, "Memory in MB")
	flavorRegisterCmd.Flags().Int("disk", 0, "Root disk in GB")
	flavorRegisterCmd.Flags().Int("ephemeral", 0, "Ephemeral disk in GB")
}

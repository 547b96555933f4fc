package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/sdpanel/internal/gallery"
)

func newGalleryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Inspect and manage stored images",
	}
	cmd.AddCommand(newGalleryListCmd(flags))
	cmd.AddCommand(newGalleryExportCmd(flags))
	cmd.AddCommand(newGalleryRemoveCmd(flags))
	cmd.AddCommand(newGalleryClearCmd(flags))
	return cmd
}

func newGalleryListCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			images := env.Store.Snapshot().Images
			if limit > 0 && len(images) > limit {
				images = images[:limit]
			}
			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintln(out, "gallery is empty")
				return nil
			}
			rows := make([][]string, 0, len(images))
			for _, img := range images {
				rows = append(rows, []string{
					img.ID,
					img.CreatedAt.Local().Format(time.DateTime),
					fmt.Sprintf("%dx%d", img.Params.Width, img.Params.Height),
					fmt.Sprintf("%d", img.Seed()),
					shorten(img.Params.Prompt, 48),
				})
			}
			renderTable(out, []string{"ID", "Created", "Size", "Seed", "Prompt"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show at most this many images (0 for all)")
	return cmd
}

func newGalleryExportCmd(flags *rootFlags) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Write images as PNG with a YAML parameter sidecar",
		Long:  "Export writes <id>.png and <id>.yaml for the given images, or for the whole gallery when no id is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			var images []gallery.Image
			if len(args) == 0 {
				images = env.Store.Snapshot().Images
			}
			for _, id := range args {
				img, ok := env.Store.Image(id)
				if !ok {
					return fmt.Errorf("no gallery image with id %q", id)
				}
				images = append(images, img)
			}

			out := cmd.OutOrStdout()
			for _, img := range images {
				path, err := exportImage(outDir, img)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "destination directory")
	return cmd
}

func newGalleryRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove id...",
		Short: "Delete images from the gallery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			var missing []string
			for _, id := range args {
				if !env.Store.RemoveImage(id) {
					missing = append(missing, id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			}
			if len(missing) > 0 {
				return fmt.Errorf("not in gallery: %v", missing)
			}
			return nil
		},
	}
}

func newGalleryClearCmd(flags *rootFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every image from the gallery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the gallery without --yes")
			}
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			n := len(env.Store.Snapshot().Images)
			env.Store.ClearGallery()
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d images\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

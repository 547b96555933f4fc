package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newModelsCmd(flags *rootFlags) *cobra.Command {
	var (
		endpoint string
		use      string
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the backend's checkpoints and samplers",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			ctx := cmd.Context()
			if err := env.Connect(ctx, endpoint); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if use != "" {
				if err := env.Store.SelectModel(ctx, use); err != nil {
					return fmt.Errorf("select model: %w", err)
				}
			}

			snap := env.Store.Snapshot()
			out := cmd.OutOrStdout()
			printField(out, "Backend", snap.Config.Endpoint)
			printField(out, "Current model", snap.CurrentModel)

			rows := make([][]string, 0, len(snap.Models))
			for _, m := range snap.Models {
				marker := ""
				if m.Title == snap.CurrentModel || m.ModelName == snap.CurrentModel {
					marker = "*"
				}
				rows = append(rows, []string{marker, m.Title, m.Hash})
			}
			renderTable(out, []string{"", "Model", "Hash"}, rows)

			names := make([]string, 0, len(snap.Samplers))
			for _, s := range snap.Samplers {
				names = append(names, s.Name)
			}
			printField(out, "Samplers", strings.Join(names, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "backend URL, overrides the remembered connection")
	cmd.Flags().StringVar(&use, "use", "", "switch the backend to this checkpoint")
	return cmd
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/five82/sdpanel/internal/app"
	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/params"
)

const progressEvery = 500 * time.Millisecond

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	var (
		endpoint  string
		prompt    string
		negative  string
		width     int
		height    int
		steps     int
		cfgScale  float64
		sampler   string
		seed      int64
		batch     int
		model     string
		outDir    string
		quiet     bool
		reuseFrom string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one txt2img job and store the result in the gallery",
		Long: `Generate connects to the backend, applies the given parameters on top of
the saved working set and submits one txt2img job. Images land in the
gallery; with --out they are also exported as PNG plus a YAML sidecar.`,
		Example: `  sdpanel generate --prompt "a lighthouse at dusk" --steps 30 --seed 42
  sdpanel generate --reuse 3f2a... --batch 4 --out ./renders`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			ctx := cmd.Context()
			if reuseFrom != "" && !env.Store.ApplyImageParams(reuseFrom) {
				return fmt.Errorf("no gallery image with id %q", reuseFrom)
			}

			var patch params.Patch
			set := cmd.Flags().Changed
			if set("prompt") {
				patch.Prompt = &prompt
			}
			if set("negative") {
				patch.NegativePrompt = &negative
			}
			if set("width") {
				patch.Width = &width
			}
			if set("height") {
				patch.Height = &height
			}
			if set("steps") {
				patch.Steps = &steps
			}
			if set("cfg") {
				patch.CFGScale = &cfgScale
			}
			if set("sampler") {
				patch.Sampler = &sampler
			}
			if set("seed") {
				patch.Seed = &seed
			}
			if set("batch") {
				patch.BatchSize = &batch
			}
			if !patch.Empty() {
				env.Store.UpdateParams(patch)
			}
			if err := env.Store.Snapshot().Params.Validate(); err != nil {
				return err
			}

			if err := env.Connect(ctx, endpoint); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if model != "" {
				if err := env.Store.SelectModel(ctx, model); err != nil {
					return fmt.Errorf("select model: %w", err)
				}
			}

			progressOut := cmd.ErrOrStderr()
			if quiet {
				progressOut = io.Discard
			}
			images, err := runGeneration(ctx, env, progressOut)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, img := range images {
				line := fmt.Sprintf("%s  seed %d", img.ID, img.Seed())
				if outDir != "" {
					path, err := exportImage(outDir, img)
					if err != nil {
						return err
					}
					line += "  " + path
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&endpoint, "endpoint", "", "backend URL, overrides the remembered connection")
	f.StringVarP(&prompt, "prompt", "p", "", "prompt text")
	f.StringVarP(&negative, "negative", "n", "", "negative prompt")
	f.IntVarP(&width, "width", "W", 512, "image width")
	f.IntVarP(&height, "height", "H", 512, "image height")
	f.IntVar(&steps, "steps", 20, "sampling steps")
	f.Float64Var(&cfgScale, "cfg", 7, "CFG scale")
	f.StringVar(&sampler, "sampler", "Euler a", "sampler name")
	f.Int64Var(&seed, "seed", params.RandomSeed, "seed, -1 for random")
	f.IntVarP(&batch, "batch", "b", 1, "images per job")
	f.StringVarP(&model, "model", "m", "", "switch to this checkpoint first")
	f.StringVarP(&outDir, "out", "o", "", "export the new images to this directory")
	f.BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	f.StringVar(&reuseFrom, "reuse", "", "start from the parameters of this gallery image")

	return cmd
}

// runGeneration submits the job and prints progress until it finishes.
func runGeneration(ctx context.Context, env *app.Env, progressOut io.Writer) ([]gallery.Image, error) {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	var images []gallery.Image

	g.Go(func() error {
		defer close(done)
		var err error
		images, err = env.Store.Generate(gctx)
		return err
	})
	g.Go(func() error {
		reportProgress(done, env, progressOut)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func reportProgress(done <-chan struct{}, env *app.Env, w io.Writer) {
	ticker := time.NewTicker(progressEvery)
	defer ticker.Stop()
	printed := false
	for {
		select {
		case <-done:
			if printed {
				fmt.Fprintln(w)
			}
			return
		case <-ticker.C:
			p := env.Store.Snapshot().Progress
			if p == nil {
				continue
			}
			line := fmt.Sprintf("\r%3.0f%%  step %d/%d", p.Percent(), p.Job.Step, p.Job.Steps)
			if p.ETASeconds > 0 {
				line += fmt.Sprintf("  eta %.0fs", p.ETASeconds)
			}
			fmt.Fprint(w, line+strings.Repeat(" ", 8))
			printed = true
		}
	}
}

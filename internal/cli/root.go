// Package cli defines the sdpanel command tree.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/five82/sdpanel/internal/app"
	"github.com/five82/sdpanel/internal/logging"
)

type rootFlags struct {
	configPath string
	prefsPath  string
	logLevel   string
	verbose    bool
	version    string
}

// options turns the persistent flags into app options. Verbose commands log
// to stderr instead of the log file.
func (f *rootFlags) options(cmd *cobra.Command) app.Options {
	opts := app.Options{
		ConfigPath: f.configPath,
		PrefsPath:  f.prefsPath,
		LogLevel:   f.logLevel,
		Version:    f.version,
	}
	if f.verbose {
		level := f.logLevel
		if level == "" {
			level = "debug"
		}
		opts.Logger = logging.NewConsole(cmd.ErrOrStderr(), level)
	}
	return opts
}

func (f *rootFlags) open(cmd *cobra.Command) (*app.Env, error) {
	return app.Open(cmd.Context(), f.options(cmd))
}

// NewRootCmd builds the sdpanel command. Without a subcommand it starts the TUI.
func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{version: version}

	cmd := &cobra.Command{
		Use:   "sdpanel",
		Short: "Remote control panel for a Stable Diffusion WebUI backend",
		Long: `sdpanel connects to a Stable Diffusion WebUI API, submits txt2img jobs,
shows their progress and keeps the results in a local gallery.

Run it without arguments for the terminal UI, or use the subcommands for
scripted generation, gallery export and usage statistics.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd)
			opts.Logger = nil
			return app.Run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/sdpanel/config.toml)")
	cmd.PersistentFlags().StringVar(&flags.prefsPath, "prefs", "", "UI preferences file (default ~/.config/sdpanel/prefs.toml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr instead of the log file")

	cmd.AddCommand(newGenerateCmd(flags))
	cmd.AddCommand(newModelsCmd(flags))
	cmd.AddCommand(newGalleryCmd(flags))
	cmd.AddCommand(newStatsCmd(flags))

	return cmd
}

package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/settings"
)

// Version is stamped at build time.
var Version = "dev"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var configFile string

	ctx := &context{configFile: &configFile}
	run := newRunCmd(ctx)

	root := &cobra.Command{
		Use:   "warden",
		Short: "Game launcher that supervises a data fetcher, an elevated core program and the game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run.RunE(cmd, args)
		},
		Version: Version,
	}
	root.Flags().AddFlagSet(run.Flags())

	root.PersistentFlags().
		StringVarP(&configFile, "config", "c", "", "Path to warden.yaml or warden.toml (default: discovered next to the launcher)")

	root.AddCommand(run)
	root.AddCommand(newWindowsCmd())
	root.AddCommand(newSettingsCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	configFile *string
}

// loadConfig reads the explicit --config file, or discovers one in the
// launcher directory.
func (c *context) loadConfig() (*config.Config, error) {
	if c.configFile != nil && *c.configFile != "" {
		return config.Load(*c.configFile)
	}
	return config.Discover(launcherDir())
}

// settingsStore opens the persisted path store named by cfg, falling back to
// the file next to the executable.
func (c *context) settingsStore(cfg *config.Config) (*settings.Store, error) {
	if cfg != nil && cfg.Settings.Path != "" {
		return settings.New(cfg.Settings.Path), nil
	}
	path, err := settings.DefaultPath()
	if err != nil {
		return nil, err
	}
	return settings.New(path), nil
}

// launcherDir is the directory holding the running executable. The working
// directory is used when it cannot be determined.
func launcherDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

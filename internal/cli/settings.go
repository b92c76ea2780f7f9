package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/settings"
)

func newSettingsCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the remembered executable paths",
	}
	cmd.AddCommand(newSettingsShowCmd(ctx))
	cmd.AddCommand(newSettingsSetCmd(ctx, "set-game", "Remember the game executable", settings.KeyGamePath))
	cmd.AddCommand(newSettingsSetCmd(ctx, "set-core", "Remember the core program executable", settings.KeyCoreProgramPath))
	return cmd
}

func newSettingsShowCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", store.Path())
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(store.Load()); err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			return enc.Close()
		},
	}
}

func newSettingsSetCmd(ctx *context, use, short string, key settings.Key) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   use + " <path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			if err := engine.ValidateExecutable(path); err != nil && !force {
				return fmt.Errorf("%w (use --force to store it anyway)", err)
			}
			store, err := openSettings(ctx)
			if err != nil {
				return err
			}
			if err := store.SavePath(key, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Store the path even if it does not look like an executable")
	return cmd
}

func openSettings(ctx *context) (*settings.Store, error) {
	cfg, err := ctx.loadConfig()
	if err != nil {
		return nil, err
	}
	return ctx.settingsStore(cfg)
}

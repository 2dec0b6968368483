package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tfs-autotasks/internal/config"
	"tfs-autotasks/internal/errs"
	"tfs-autotasks/internal/output"
)

func newConfigCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or update saved connection settings",
	}
	cmd.AddCommand(newConfigViewCmd(st))
	cmd.AddCommand(newConfigSetCmd(st))
	return cmd
}

func newConfigViewCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show config (PAT redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if st.jsonMode {
				return output.PrintJSON(st.stdout, cfg.Redacted())
			}
			redacted := cfg.Redacted()
			fmt.Fprintf(st.stdout, "BaseURL: %s\nProject: %s\nTeam: %s\nPAT: %s\n",
				redacted.BaseURL, redacted.Project, redacted.Team, redacted.PAT)
			return nil
		},
	}
}

func newConfigSetCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("base-url") && !flags.Changed("project") && !flags.Changed("team") && !flags.Changed("pat") {
				return errs.New(errs.CodeInvalidArgs, "at least one of --base-url, --project, --team, or --pat is required", nil)
			}
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if flags.Changed("base-url") {
				cfg.BaseURL, _ = flags.GetString("base-url")
			}
			if flags.Changed("project") {
				cfg.Project, _ = flags.GetString("project")
			}
			if flags.Changed("team") {
				cfg.Team, _ = flags.GetString("team")
			}
			if flags.Changed("pat") {
				cfg.PAT, _ = flags.GetString("pat")
			}
			if err := config.Save("", cfg); err != nil {
				return err
			}
			if st.jsonMode {
				return output.PrintJSON(st.stdout, cfg.Redacted())
			}
			fmt.Fprintln(st.stdout, "Config updated")
			return nil
		},
	}
	return cmd
}

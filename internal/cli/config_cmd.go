package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/pitchline/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			data, err := config.Marshal(rt.cfg)
			if err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			_, _ = cmd.OutOrStdout().Write(data)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteFile(path, config.DefaultConfig(), force); err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			printf(cmd, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

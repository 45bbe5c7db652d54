package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login INVESTOR [ENTERPRISE]",
		Short: "Sign in as an investor",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			enterprise := ""
			if len(args) == 2 {
				enterprise = args[1]
			}
			if strings.TrimSpace(args[0]) == "" {
				return usageError(cmd, "investor id is required")
			}
			if err := rt.session.Login(args[0], enterprise); err != nil {
				return Exitf(ExitCodeFailure, "login: %v", err)
			}
			pair := rt.session.Identity()
			if pair.Receiver == "" {
				printf(cmd, "Signed in as %s\n", pair.Sender)
				return nil
			}
			printf(cmd, "Signed in as %s, talking to %s\n", pair.Sender, pair.Receiver)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in investor and drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			if err := rt.session.Clear(); err != nil {
				return Exitf(ExitCodeFailure, "logout: %v", err)
			}
			printf(cmd, "Signed out\n")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the active conversation participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFrom(cmd)
			if err != nil {
				return err
			}
			pair := rt.identityFor(cmd).Identity()
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				payload, err := json.MarshalIndent(pair, "", "  ")
				if err != nil {
					return Exitf(ExitCodeFailure, "encode identity: %v", err)
				}
				printf(cmd, "%s\n", payload)
				return nil
			}
			printf(cmd, "investor:   %s\n", orDash(pair.Sender))
			printf(cmd, "enterprise: %s\n", orDash(pair.Receiver))
			return nil
		},
	}
	addIdentityFlags(cmd)
	cmd.Flags().Bool("json", false, "output as JSON")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

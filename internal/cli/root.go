// Package cli implements the pitchline and pitchd command lines.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/pitchline/internal/config"
	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/logging"
	"github.com/tOgg1/pitchline/internal/msgapi"
)

type runtimeKey struct{}

// runtime is the state every command shares after config is loaded.
type runtime struct {
	cfg       *config.Config
	session   *identity.SessionStore
	logCloser io.Closer
}

func (r *runtime) client() *msgapi.Client {
	return msgapi.NewClient(r.cfg.Backend.URL, msgapi.WithTimeout(r.cfg.Backend.Timeout))
}

func (r *runtime) close() {
	if r.logCloser != nil {
		_ = r.logCloser.Close()
	}
}

// identityFor layers --as/--with over the saved session.
func (r *runtime) identityFor(cmd *cobra.Command) identity.Provider {
	as, _ := cmd.Flags().GetString("as")
	with, _ := cmd.Flags().GetString("with")
	return identity.Override{Sender: as, Receiver: with, Fallback: r.session}
}

func runtimeFrom(cmd *cobra.Command) (*runtime, error) {
	if rt, ok := cmd.Context().Value(runtimeKey{}).(*runtime); ok && rt != nil {
		return rt, nil
	}
	return nil, errors.New("configuration not loaded")
}

// Execute runs the pitchline command line.
func Execute(version string) error {
	return newRootCmd(version).ExecuteContext(context.Background())
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pitchline",
		Short:         "Investor/enterprise messaging from the terminal",
		Long:          "pitchline keeps a two-party conversation in sync with the message service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadRuntime(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt, err := runtimeFrom(cmd); err == nil {
				rt.close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !hasTTY() {
				return cmd.Help()
			}
			return runChat(cmd, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/pitchline/config.yaml)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("backend", "", "message service base URL")
	addIdentityFlags(cmd)

	cmd.AddCommand(
		newChatCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newSendCmd(),
		newLogCmd(),
		newConfigCmd(),
	)
	return cmd
}

func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().String("as", "", "investor id to send as (default: signed-in investor)")
	cmd.Flags().String("with", "", "enterprise id to talk to (default: last opened)")
}

// loadRuntime resolves config (flags over env over file over defaults),
// starts logging, and loads the session.
func loadRuntime(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); strings.TrimSpace(path) != "" {
		loader.SetConfigFile(path)
	}
	if level, _ := cmd.Flags().GetString("log-level"); strings.TrimSpace(level) != "" {
		loader.Set("logging.level", level)
	}
	if url, _ := cmd.Flags().GetString("backend"); strings.TrimSpace(url) != "" {
		loader.Set("backend.url", url)
	}

	cfg, err := loader.Load()
	if err != nil {
		return Exitf(ExitCodeFailure, "%v", err)
	}

	rt := &runtime{cfg: cfg}
	logCfg := cfg.LoggingInit()
	if interactive(cmd) && logCfg.File == "" {
		// nothing may write to the terminal while the chat view owns it
		logging.Discard()
	} else {
		logCfg.Output = cmd.ErrOrStderr()
		closer, err := logging.Init(logCfg)
		if err != nil {
			return Exitf(ExitCodeFailure, "init logging: %v", err)
		}
		rt.logCloser = closer
	}

	rt.session = identity.NewSessionStore(cfg.Session.Path)
	if err := rt.session.Load(); err != nil {
		rt.close()
		return Exitf(ExitCodeFailure, "%v", err)
	}
	if used := loader.ConfigFileUsed(); used != "" {
		logger := logging.Component("cli")
		logger.Debug().Str("config", used).Msg("config loaded")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, runtimeKey{}, rt))
	return nil
}

// interactive reports whether cmd will hand the terminal to the chat view.
func interactive(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "chat":
		return true
	case "pitchline":
		return hasTTY()
	}
	return false
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/pitchline/internal/chattui"
	"github.com/tOgg1/pitchline/internal/config"
	"github.com/tOgg1/pitchline/internal/conversation"
	"github.com/tOgg1/pitchline/internal/logging"
	"github.com/tOgg1/pitchline/internal/telemetry"
)

const drainTimeout = 5 * time.Second

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [ENTERPRISE]",
		Short: "Open the conversation view",
		Long: `Open the live conversation between the signed-in investor and an enterprise.

The view refetches every sync.poll_interval and shows sent messages right
away, marking them until the service confirms them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
	addIdentityFlags(cmd)
	cmd.Flags().String("metrics-addr", "", "serve sync metrics on this address while the view is open")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFrom(cmd)
	if err != nil {
		return err
	}
	if !hasTTY() {
		return Exitf(ExitCodeFailure, "chat needs an interactive terminal; use `pitchline log` or `pitchline send`")
	}
	if len(args) == 1 {
		if err := rt.session.SetEnterprise(args[0]); err != nil {
			return Exitf(ExitCodeFailure, "save session: %v", err)
		}
	}

	provider := rt.identityFor(cmd)
	pair := provider.Identity()
	if !pair.Ready() {
		return Exitf(ExitCodeFailure, "no conversation selected: run `pitchline login` or pass --as and --with")
	}

	engineCfg, err := engineConfig(rt.cfg)
	if err != nil {
		return Exitf(ExitCodeFailure, "%v", err)
	}
	recorder := telemetry.NewRecorderWithLogger(logging.WithConversation("sync", pair.Sender, pair.Receiver))
	engine := conversation.New(engineCfg, rt.client(), provider, conversation.WithObserver(recorder))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); strings.TrimSpace(addr) != "" {
		shutdown := serveMetrics(addr, recorder)
		defer shutdown()
	}

	if err := engine.Open(ctx); err != nil {
		return Exitf(ExitCodeFailure, "open conversation: %v", err)
	}
	runErr := chattui.Run(ctx, engine, chattui.Options{
		Theme:    rt.cfg.View.Theme,
		Location: engineCfg.Location,
		Drafts:   rt.session,
	})

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := engine.Drain(drainCtx); err != nil {
		logger := logging.Component("cli")
		logger.Warn().Err(err).Msg("sends still in flight at exit")
	}
	if err := rt.session.Save(); err != nil {
		logger := logging.Component("cli")
		logger.Warn().Err(err).Msg("saving session")
	}
	if runErr != nil {
		return Exitf(ExitCodeFailure, "chat: %v", runErr)
	}
	return nil
}

// engineConfig maps the sync and view sections onto the engine.
func engineConfig(cfg *config.Config) (conversation.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return conversation.Config{}, err
	}
	out := conversation.DefaultConfig()
	out.PollInterval = cfg.Sync.PollInterval
	out.MatchTolerance = cfg.Sync.MatchTolerance
	out.ScrollThreshold = cfg.View.ScrollThreshold
	out.Location = loc
	return out, nil
}

func serveMetrics(addr string, recorder *telemetry.Recorder) func() {
	logger := logging.Component("metrics")
	srv := &http.Server{Addr: addr, Handler: recorder.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

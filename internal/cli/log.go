package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/pitchline/internal/conversation"
	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/models"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "log",
		Aliases: []string{"history"},
		Short:   "Print the conversation history",
		Args:    cobra.NoArgs,
		RunE:    runLog,
	}
	addIdentityFlags(cmd)
	cmd.Flags().Bool("json", false, "output day groups as JSON")
	return cmd
}

func runLog(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFrom(cmd)
	if err != nil {
		return err
	}
	pair := rt.identityFor(cmd).Identity()
	loc, err := rt.cfg.Location()
	if err != nil {
		return Exitf(ExitCodeFailure, "%v", err)
	}

	msgs, err := conversation.NewFetcher(rt.client()).Fetch(cmd.Context(), pair)
	if err != nil {
		if errors.Is(err, conversation.ErrIdentityNotReady) {
			return Exitf(ExitCodeFailure, "no conversation selected: run `pitchline login` or pass --as and --with")
		}
		return Exitf(ExitCodeFailure, "fetch conversation: %v", err)
	}
	groups := conversation.GroupByDay(msgs, loc)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if groups == nil {
			groups = []models.Group{}
		}
		payload, err := json.MarshalIndent(groups, "", "  ")
		if err != nil {
			return Exitf(ExitCodeFailure, "encode conversation: %v", err)
		}
		printf(cmd, "%s\n", payload)
		return nil
	}
	writeLog(cmd.OutOrStdout(), pair, groups, loc)
	return nil
}

func writeLog(out io.Writer, pair identity.Pair, groups []models.Group, loc *time.Location) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return
	}
	for i, group := range groups {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "-- %s --\n", group.Date.Label())
		for _, msg := range group.Messages {
			who := msg.Sender
			if msg.IsFrom(pair.Sender) {
				who = "You"
			}
			fmt.Fprintf(out, "%s  %s: %s\n", msg.CreatedAt.In(loc).Format("15:04"), who, msg.Content)
		}
	}
}

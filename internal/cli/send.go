package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/pitchline/internal/models"
	"github.com/tOgg1/pitchline/internal/msgapi"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [TEXT...]",
		Short: "Send one message without opening the view",
		Long: `Send one message to the active enterprise. With no TEXT the message is
read from piped stdin.`,
		Example: `  pitchline send "Are you raising this quarter?"
  echo "Deck attached" | pitchline send --with ent-42`,
		RunE: runSend,
	}
	addIdentityFlags(cmd)
	return cmd
}

func runSend(cmd *cobra.Command, args []string) error {
	rt, err := runtimeFrom(cmd)
	if err != nil {
		return err
	}

	body := strings.Join(args, " ")
	if strings.TrimSpace(body) == "" {
		piped, err := readPiped(cmd.InOrStdin())
		if err != nil {
			return Exitf(ExitCodeFailure, "read stdin: %v", err)
		}
		body = piped
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return usageError(cmd, "message text is required")
	}

	pair := rt.identityFor(cmd).Identity()
	msg := models.Message{Sender: pair.Sender, Receiver: pair.Receiver, Content: body}
	if err := msg.Validate(); err != nil {
		if errors.Is(err, models.ErrMissingSender) || errors.Is(err, models.ErrMissingReceiver) {
			return Exitf(ExitCodeFailure, "no conversation selected: run `pitchline login` or pass --as and --with")
		}
		return Exitf(ExitCodeFailure, "invalid message: %v", err)
	}

	if err := rt.client().Send(cmd.Context(), pair.Sender, pair.Receiver, body); err != nil {
		var statusErr *msgapi.StatusError
		if errors.As(err, &statusErr) && statusErr.Temporary() {
			return Exitf(ExitCodeFailure, "message service busy, try again: %v", err)
		}
		return Exitf(ExitCodeFailure, "send: %v", err)
	}
	printf(cmd, "Sent to %s\n", pair.Receiver)
	return nil
}

// readPiped returns stdin when it is not a terminal.
func readPiped(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

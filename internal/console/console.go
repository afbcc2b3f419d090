// Package console runs one intake session over a line-oriented terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/BTreeMap/IntakePipe/internal/flow"
)

// Prompt prefixes printed around each exchange.
const (
	UserPrefix      = "\nYou: "
	AssistantPrefix = "Assistant: "
)

// Run greets the patient and processes one line per turn until the session is done,
// the patient types quit or exit, stdin reaches EOF, or ctx is cancelled.
func Run(ctx context.Context, in io.Reader, out io.Writer, engine *flow.Engine, sess *flow.Session) error {
	if _, err := fmt.Fprintln(out, AssistantPrefix+flow.Greeting()); err != nil {
		return fmt.Errorf("write greeting: %w", err)
	}

	scanner := bufio.NewScanner(in)
	for !sess.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, UserPrefix)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			slog.Debug("console.Run: input closed", "session_id", sess.ID(), "step", sess.Step())
			fmt.Fprintln(out)
			return nil
		}

		line := scanner.Text()
		if flow.IsQuit(line) {
			fmt.Fprintln(out, AssistantPrefix+flow.GoodbyeMessage)
			return nil
		}

		reply, err := engine.HandleTurn(ctx, sess, line)
		if err != nil && !errors.Is(err, flow.ErrSessionComplete) {
			return err
		}
		fmt.Fprintln(out, AssistantPrefix+reply)
	}
	slog.Info("console.Run: intake complete", "session_id", sess.ID())
	return nil
}

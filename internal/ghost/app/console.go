package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bdobrica/Ghost/internal/ghost/platform"
	"github.com/bdobrica/Ghost/internal/ghost/session"
)

const consoleHelp = `Commands:
  /mic on|off     start or stop listening
  /say <words>    speak <words> into the microphone
  /voice on|off   toggle spoken replies
  /quit           leave
Anything else is sent as a chat message.`

// ChatConsole runs an interactive conversation on the terminal until in is
// exhausted, /quit is typed or ctx is cancelled. The session id keeps the
// conversation across runs.
func (e *Engine) ChatConsole(ctx context.Context, id string, in io.Reader, out io.Writer) error {
	console := platform.NewConsole(out)
	c, _ := e.Open(ctx, id, console)
	defer e.Close(c.ID)

	c.Drain()
	for _, m := range c.Session.Transcript() {
		printMessage(out, m)
	}

	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, consoleHelp)
		case "/mic":
			switch arg {
			case "on":
				c.Dictation.PermissionGranted()
			case "off":
				c.Dictation.Sleep()
			default:
				fmt.Fprintln(out, "usage: /mic on|off")
			}
			fmt.Fprintf(out, "🎤 %s\n", c.Dictation.Mode())
		case "/say":
			if !console.Hear(arg) {
				fmt.Fprintln(out, "🎤 the microphone is off; try /mic on")
			}
		case "/voice":
			switch arg {
			case "on", "off":
				c.SetVoice(ctx, arg == "on")
			default:
				fmt.Fprintln(out, "usage: /voice on|off")
			}
		default:
			c.Send(ctx, line)
		}

		for _, m := range c.Drain() {
			printMessage(out, m)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("console: read input: %w", err)
	}
	return nil
}

func printMessage(out io.Writer, m session.ChatMessage) {
	if m.Sender == session.SenderUser {
		fmt.Fprintf(out, "you> %s\n", m.Text)
		return
	}
	fmt.Fprintf(out, "👻 %s\n", m.Text)
}

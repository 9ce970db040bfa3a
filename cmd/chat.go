package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/synquot/synquot-cli/internal"
)

var chatExportDir string

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

const replHelp = `Commands:
  /show                Print the current quotation
  /undo                Undo the last quotation change
  /redo                Redo the last undone change
  /history             List the undo history
  /sync                Push the current quotation to the backend now
  /reset               Clear the quotation and the conversation
  /export <fmt> [dir]  Export the session (json, yaml, jsonl, md)
  /help                Show this help
  /quit                Leave the chat
Anything else is sent to the assistant.`

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant to build a quotation",
	Long: `Start an interactive chat session. With a message argument, send that one
message, print the reply and exit.

Simple edits are applied instantly and confirmed by the backend. Changes are
synced in the background and flushed before the command exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, session, err := openSession(ctx, cfg)
		if session == nil {
			return err
		}
		defer closeSession(session)
		if err != nil {
			internal.PrintWarning(fmt.Sprintf("Starting with an empty quotation: %v", err))
		}

		r := &repl{
			session:   session,
			sessionID: client.SessionID,
			out:       cmd.OutOrStdout(),
			exportDir: chatExportDir,
		}

		if len(args) > 0 {
			if err := r.exchange(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			return session.LastError()
		}
		return r.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatExportDir, "out", "o", "./exports", "Default directory for /export")
}

// repl drives one interactive chat over a line-oriented reader
type repl struct {
	session   *internal.Session
	sessionID func() string
	out       io.Writer
	exportDir string
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, hintStyle.Render(fmt.Sprintf("Session %s. Type /help for commands.", r.sessionID())))
	for _, m := range r.session.Messages() {
		fmt.Fprintln(r.out, internal.RenderMessage(m))
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(r.out, internal.RenderMessage(internal.NewChatMessage(internal.RoleAssistant, "Error: "+err.Error())))
		}
		if quit {
			return nil
		}
	}
}

// handle runs one input line. quit is true when the user asked to leave.
func (r *repl) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.exchange(ctx, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/show":
		r.printQuotation()
	case "/undo":
		if !r.session.Undo() {
			fmt.Fprintln(r.out, hintStyle.Render("Nothing to undo."))
			return false, nil
		}
		r.printQuotation()
	case "/redo":
		if !r.session.Redo() {
			fmt.Fprintln(r.out, hintStyle.Render("Nothing to redo."))
			return false, nil
		}
		r.printQuotation()
	case "/history":
		entries, cursor := r.session.History()
		fmt.Fprint(r.out, internal.RenderHistory(entries, cursor))
	case "/sync":
		q := r.session.Quotation()
		if q == nil {
			return false, errors.New("no quotation loaded")
		}
		if err := r.session.SyncQuotation(ctx, *q); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, hintStyle.Render("Quotation synced."))
	case "/reset":
		if err := r.session.Reset(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, hintStyle.Render("Quotation and conversation cleared."))
	case "/export":
		if len(fields) < 2 {
			return false, errors.New("usage: /export <format> [dir]")
		}
		dir := r.exportDir
		if len(fields) > 2 {
			dir = fields[2]
		}
		path, err := writeExport(r.session.Snapshot(r.sessionID()), fields[1], dir)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, hintStyle.Render("Exported to "+path))
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

// exchange sends one chat message and prints the reply
func (r *repl) exchange(ctx context.Context, text string) error {
	result, err := r.session.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	fmt.Fprintln(r.out, internal.RenderMessage(result.Reply))
	if result.Reverted {
		fmt.Fprintln(r.out, hintStyle.Render("The instant update was reverted."))
	}
	if result.Err == nil {
		r.printQuotation()
	}
	return nil
}

func (r *repl) printQuotation() {
	if q := r.session.Quotation(); q != nil {
		fmt.Fprintln(r.out, internal.RenderQuotation(*q, false))
	}
}

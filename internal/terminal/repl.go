package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/cgpt/internal/chat"
	"github.com/ashureev/cgpt/internal/store"
	"golang.org/x/term"
)

const (
	promptGlyph = "⌨ : "
	replyGlyph  = "🤖 : "
)

const helpText = `Commands:
  /new            start a new conversation on the next message
  /list           list stored conversations
  /history [id]   show a conversation (default: current)
  /open <id>      continue an existing conversation
  /delete <id>    delete a conversation
  /help           show this help
  exit            quit (also /exit, /quit, Control-C or end of input)
Any other input is sent to the model.`

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// REPLConfig configures a REPL.
type REPLConfig struct {
	In  io.Reader
	Out io.Writer
	// Interactive enables prompt glyphs and the typing effect.
	Interactive bool
	Typewriter  *Typewriter
	Logger      *slog.Logger
}

// REPL is the command-line chat loop. It keeps one current conversation;
// free text continues it, or starts one when none is selected.
type REPL struct {
	svc         ChatService
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
	typewriter  *Typewriter
	logger      *slog.Logger
	current     string
}

// NewREPL creates a REPL over svc.
func NewREPL(svc ChatService, cfg REPLConfig) *REPL {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Typewriter == nil {
		cfg.Typewriter = NewTypewriter(TypewriterConfig{})
	}
	scanner := bufio.NewScanner(cfg.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	return &REPL{
		svc:         svc,
		in:          scanner,
		out:         cfg.Out,
		interactive: cfg.Interactive,
		typewriter:  cfg.Typewriter,
		logger:      cfg.Logger,
	}
}

// Current returns the chat id free text is sent to, or "" when none.
func (r *REPL) Current() string {
	return r.current
}

// Run reads lines until exit, end of input or ctx is cancelled. Command and
// service errors are printed and the loop continues. Cancellation is noticed
// while waiting for input, so an interrupt at an idle prompt returns at once.
func (r *REPL) Run(ctx context.Context) error {
	ctx = chat.WithChannel(ctx, chat.ChannelCLI)

	stop := make(chan struct{})
	defer close(stop)
	lines, readErr := r.readLines(stop)

	for {
		if r.interactive {
			r.print(promptGlyph)
		}
		select {
		case <-ctx.Done():
			if r.interactive {
				r.print("\n")
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				if r.interactive {
					r.print("\n")
				}
				return nil
			}
			// Both cases may be ready; a cancelled loop must not dispatch.
			if ctx.Err() != nil {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if quit := r.dispatch(ctx, line); quit {
				return nil
			}
		}
	}
}

// readLines scans input on its own goroutine so Run can select on ctx. The
// goroutine exits when input ends or stop is closed; a read blocked on stdin
// is abandoned with the process.
func (r *REPL) readLines(stop <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for r.in.Scan() {
			select {
			case lines <- r.in.Text():
			case <-stop:
				return
			}
		}
		readErr <- r.in.Err()
	}()
	return lines, readErr
}

func (r *REPL) dispatch(ctx context.Context, line string) bool {
	if line == "exit" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/exit", "/quit":
		return true
	case "/help":
		r.println(helpText)
	case "/new":
		r.current = ""
		r.println("Next message starts a new conversation.")
	case "/list":
		r.list(ctx)
	case "/history":
		if arg == "" {
			arg = r.current
		}
		if arg == "" {
			r.println("No conversation selected.")
			return false
		}
		r.history(ctx, arg)
	case "/open":
		r.open(ctx, arg)
	case "/delete":
		r.delete(ctx, arg)
	default:
		r.println(fmt.Sprintf("Unknown command %s. Type /help for commands.", cmd))
	}
	return false
}

func (r *REPL) send(ctx context.Context, text string) {
	var (
		resp chat.Response
		err  error
	)
	if r.current == "" {
		resp, err = r.svc.Start(ctx, text)
	} else {
		resp, err = r.svc.Continue(ctx, r.current, text)
	}
	if err != nil {
		r.logger.Debug("Chat turn failed", "chat_id", r.current, "error", err)
		if ctx.Err() == nil {
			r.printError(err)
		}
		return
	}
	if resp.ChatID != chat.NoneChatID {
		r.current = resp.ChatID
	}
	r.reply(ctx, resp.Message)
}

func (r *REPL) reply(ctx context.Context, text string) {
	if !r.interactive {
		r.println(text)
		return
	}
	r.print(replyGlyph)
	if _, err := r.typewriter.Type(ctx, r.out, text); err != nil {
		r.logger.Debug("Failed to write reply", "error", err)
	}
	r.print("\n")
}

func (r *REPL) list(ctx context.Context) {
	list, err := r.svc.List(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	if len(list.Chats) == 0 {
		r.println("No conversations.")
		return
	}
	for _, id := range list.Chats {
		marker := "  "
		if id == r.current {
			marker = "* "
		}
		r.println(marker + id)
	}
}

func (r *REPL) history(ctx context.Context, chatID string) {
	hist, err := r.svc.History(ctx, chatID)
	if err != nil {
		r.printError(err)
		return
	}
	if hist.ChatID == chat.NoneChatID {
		r.println(fmt.Sprintf("Unknown conversation %s.", chatID))
		return
	}
	for i, m := range hist.Messages {
		r.println(fmt.Sprintf("[%d] %s", i, m))
	}
}

func (r *REPL) open(ctx context.Context, chatID string) {
	if chatID == "" {
		r.println("Usage: /open <id>")
		return
	}
	hist, err := r.svc.History(ctx, chatID)
	if err != nil {
		r.printError(err)
		return
	}
	if hist.ChatID == chat.NoneChatID {
		r.println(fmt.Sprintf("Unknown conversation %s.", chatID))
		return
	}
	r.current = chatID
	r.println(fmt.Sprintf("Opened %s (%d messages).", chatID, len(hist.Messages)))
}

func (r *REPL) delete(ctx context.Context, chatID string) {
	if chatID == "" {
		r.println("Usage: /delete <id>")
		return
	}
	if err := r.svc.Delete(ctx, chatID); err != nil {
		r.printError(err)
		return
	}
	if chatID == r.current {
		r.current = ""
	}
	r.println(fmt.Sprintf("Deleted %s.", chatID))
}

func (r *REPL) printError(err error) {
	if errors.Is(err, store.ErrNotFound) {
		r.println("error: no such conversation")
		return
	}
	r.println("error: " + err.Error())
}

func (r *REPL) print(s string) {
	_, _ = io.WriteString(r.out, s)
}

func (r *REPL) println(s string) {
	_, _ = io.WriteString(r.out, s+"\n")
}

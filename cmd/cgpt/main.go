// cgpt interactive command-line client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/cgpt/internal/agent"
	"github.com/ashureev/cgpt/internal/chat"
	"github.com/ashureev/cgpt/internal/config"
	"github.com/ashureev/cgpt/internal/store"
	"github.com/ashureev/cgpt/internal/terminal"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := pflag.NewFlagSet("cgpt", pflag.ContinueOnError)
	config.CLIFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.LoadCLI(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	repo, err := store.NewBolt(cfg.StorePath)
	if err != nil {
		logger.Error("Failed to open conversation store", "path", cfg.StorePath, "error", err)
		return 1
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("failed to close conversation store", "error", closeErr)
		}
	}()

	completer, err := agent.New(cfg.ProviderConfig(), logger)
	if err != nil {
		logger.Error("Failed to initialize chat provider", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := terminal.IsTerminal(os.Stdin)
	tw := terminal.NewTypewriter(terminal.DefaultTypewriterConfig())
	tw.SetCharDelay(cfg.TypingSpeed)

	repl := terminal.NewREPL(chat.NewService(repo, completer, chat.WithLogger(logger)), terminal.REPLConfig{
		In:          os.Stdin,
		Out:         os.Stdout,
		Interactive: interactive,
		Typewriter:  tw,
		Logger:      logger,
	})
	if interactive {
		fmt.Fprintf(os.Stdout, "cgpt (%s). Type /help for commands, exit or Control-C to quit.\n", completer.Name())
	}
	if err := repl.Run(ctx); err != nil {
		logger.Error("Input loop failed", "error", err)
		return 1
	}
	return 0
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/shopper/pkg/agent"
	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/core"
)

type askFlags struct {
	K        int
	MaxTurns int
	NoMemory bool
	Verbose  bool
}

func parseAskFlags(name string, args []string) (askFlags, []string, error) {
	var f askFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&f.K, "k", 0, "number of preferences to retrieve")
	fs.IntVar(&f.MaxTurns, "max-turns", 0, "turn budget for this run")
	fs.BoolVar(&f.NoMemory, "no-memory", false, "skip preference retrieval")
	fs.BoolVar(&f.Verbose, "v", false, "print each turn to stderr")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	if f.K < 0 || f.MaxTurns < 0 {
		return f, nil, fmt.Errorf("-k and -max-turns must not be negative")
	}
	return f, fs.Args(), nil
}

// runOptions turns the flags into per-run agent options.
func (f askFlags) runOptions(a *app) []agent.RunOption {
	var opts []agent.RunOption
	switch {
	case f.NoMemory || a.preferences == nil:
		opts = append(opts, agent.WithoutRetrieval())
	case f.K > 0:
		opts = append(opts, agent.UsingRetriever(a.retriever(f.K)))
	}
	if f.MaxTurns > 0 {
		opts = append(opts, agent.WithRunMaxTurns(f.MaxTurns))
	}
	if f.Verbose {
		opts = append(opts, agent.WithRunEvents(progressPrinter(os.Stderr)))
	}
	return opts
}

func runAsk(ctx context.Context, global globalFlags, cfg *config.Config, args []string) error {
	flags, rest, err := parseAskFlags("ask", args)
	if err != nil {
		return NewInvalidArgumentError("ask", err.Error())
	}
	question := strings.TrimSpace(strings.Join(rest, " "))
	if question == "" {
		return NewInvalidArgumentError("ask", "a question is required")
	}

	a, err := newApp(ctx, cfg, slog.Default(), appOptions{withLLM: true, withMemory: !flags.NoMemory})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := global.withTimeout(ctx)
	defer cancel()

	out, err := a.agent.Run(ctx, question, flags.runOptions(a)...)
	if err != nil {
		return NewInvalidArgumentError("ask", err.Error())
	}
	if global.JSON {
		printJSON(out)
	} else {
		renderOutcome(os.Stdout, out)
	}
	if !out.Done() && out.Err != nil {
		return out.Err
	}
	return nil
}

// runChat answers one question per line: an interactive prompt on a
// terminal, plain line-by-line processing when stdin is piped.
func runChat(ctx context.Context, global globalFlags, cfg *config.Config, args []string) error {
	flags, rest, err := parseAskFlags("chat", args)
	if err != nil {
		return NewInvalidArgumentError("chat", err.Error())
	}
	if len(rest) > 0 {
		return NewInvalidArgumentError("chat", fmt.Sprintf("unexpected args: %v", rest))
	}

	a, err := newApp(ctx, cfg, slog.Default(), appOptions{withLLM: true, withMemory: !flags.NoMemory})
	if err != nil {
		return err
	}
	defer a.Close()

	interactive := !global.JSON && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	return chatLoop(ctx, a.agent, flags.runOptions(a), os.Stdin, os.Stdout, global, interactive)
}

// asker is the part of the agent the chat loop uses.
type asker interface {
	Run(ctx context.Context, goal string, opts ...agent.RunOption) (*agent.Outcome, error)
}

func chatLoop(ctx context.Context, ag asker, runOpts []agent.RunOption, in io.Reader, out io.Writer, global globalFlags, interactive bool) error {
	if interactive {
		fmt.Fprintln(out, "Ask about any product. Type 'exit' or Ctrl+C to quit.")
	}
	ctx = core.WithSessionID(ctx, core.NewSessionID())
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "\n> ")
		}
		if ctx.Err() != nil || !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}

		runCtx, cancel := global.withTimeout(ctx)
		result, err := ag.Run(runCtx, input, runOpts...)
		cancel()
		if err != nil {
			toCLIError(err).PrintError(global.JSON)
			continue
		}
		if global.JSON {
			writeJSONLine(out, result)
			continue
		}
		if interactive {
			fmt.Fprintln(out)
		}
		renderOutcome(out, result)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

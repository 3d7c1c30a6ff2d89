package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/mcp"
	"github.com/jllopis/shopper/pkg/server"
	"github.com/jllopis/shopper/pkg/telemetry"
)

func runServe(ctx context.Context, global globalFlags, cfg *config.Config, level *slog.LevelVar, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", cfg.Server.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("serve", err.Error())
	}

	logger := slog.Default()
	a, err := newApp(ctx, cfg, logger, appOptions{withLLM: true, withMemory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// Only the log level follows the file at runtime; everything else is
	// wired once at startup.
	if global.ConfigPath != "" {
		watcher, _, err := config.WatchConfig(ctx, global.ConfigPath, global.Profile, config.WithWatchLogger(logger))
		if err != nil {
			return NewConfigError(err, global.ConfigPath)
		}
		defer watcher.Stop()
		watcher.OnChange(func(c *config.Config) {
			level.Set(telemetry.ParseLogLevel(c.Log.Level))
		})
	}

	opts := server.Options{
		Agent:        a.agent,
		Registry:     a.registry,
		DefaultK:     cfg.Memory.K,
		SnippetChars: cfg.Memory.SnippetChars,
		Version:      version,
		Logger:       logger,
	}
	if a.preferences != nil {
		opts.Preferences = a.preferences
	}
	srv := server.New(opts)
	return srv.ListenAndServe(ctx, *addr, seconds(cfg.Server.ReadTimeoutSeconds), seconds(cfg.Server.WriteTimeoutSeconds))
}

// runMCP serves the registry over stdio. Logs already go to stderr so stdout
// stays reserved for the protocol.
func runMCP(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("mcp", fmt.Sprintf("unexpected args: %v", args))
	}
	a, err := newApp(ctx, cfg, slog.Default(), appOptions{withLLM: cfg.Synthesis.UseLLM, withMemory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	return mcp.NewServer(cfg.Agent.Name, version, a.registry).ServeStdio()
}

func runTools(ctx context.Context, global globalFlags, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("tools", fmt.Sprintf("unexpected args: %v", args))
	}
	a, err := newApp(ctx, cfg, slog.Default(), appOptions{withMemory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if global.JSON {
		type toolView struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		list := make([]toolView, 0, a.registry.Len())
		for _, t := range a.registry.Tools() {
			list = append(list, toolView{Name: t.Name(), Description: t.Description()})
		}
		printJSON(map[string]any{"tools": list})
		return nil
	}

	tw := newTabWriter()
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, t := range a.registry.Tools() {
		params := make([]string, 0, len(t.Parameters()))
		for _, p := range t.Parameters() {
			params = append(params, fmt.Sprintf("%s:%s", p.Name, p.Type))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name(), strings.Join(params, ","), firstSentence(t.Description()))
	}
	return tw.Flush()
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}

// Command shopper is the command-line shell of the shopping assistant.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the process exit code. Deferred
// cleanup, telemetry flushing included, completes before it returns.
func run(argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		return fail(NewInvalidArgumentError("global flags", err.Error()), false)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return 0
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage()
		return 0
	case "version":
		printVersion(global)
		return 0
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		return fail(NewConfigError(err, global.ConfigPath), global.JSON)
	}
	if err := cfg.Validate(); err != nil {
		return fail(NewConfigError(err, global.ConfigPath), global.JSON)
	}

	level := new(slog.LevelVar)
	level.Set(telemetry.ParseLogLevel(cfg.Log.Level))
	logger := telemetry.NewLeveledLogger(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
		SampleRatio:        cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fail(NewConfigError(fmt.Errorf("telemetry: %w", err), global.ConfigPath), global.JSON)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry.shutdown", slog.String("error", err.Error()))
		}
	}()

	var runErr error
	switch cmd {
	case "ask":
		runErr = runAsk(ctx, global, cfg, args[1:])
	case "chat":
		runErr = runChat(ctx, global, cfg, args[1:])
	case "memory":
		runErr = runMemory(ctx, global, cfg, args[1:])
	case "tools":
		runErr = runTools(ctx, global, cfg, args[1:])
	case "serve":
		runErr = runServe(ctx, global, cfg, level, args[1:])
	case "mcp":
		runErr = runMCP(ctx, cfg, args[1:])
	default:
		runErr = NewInvalidArgumentError(cmd, fmt.Sprintf("unknown command %q", cmd))
	}
	if runErr != nil {
		return fail(runErr, global.JSON)
	}
	return 0
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--set" || arg == "--profile" || arg == "--env":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.record(arg, args[i+1])
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case hasValuePrefix(arg, "--config", "--set", "--profile", "--env"):
			name, value, _ := strings.Cut(arg, "=")
			flags.record(name, value)
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func (f *globalFlags) record(name, value string) {
	switch name {
	case "--config":
		f.ConfigPath = value
	case "--profile", "--env":
		f.Profile = value
	}
}

func hasValuePrefix(arg string, names ...string) bool {
	for _, name := range names {
		if strings.HasPrefix(arg, name+"=") {
			return true
		}
	}
	return false
}

// withTimeout applies --timeout when set.
func (f globalFlags) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.Timeout > 0 {
		return context.WithTimeout(ctx, f.Timeout)
	}
	return context.WithCancel(ctx)
}

func printVersion(flags globalFlags) {
	if flags.JSON {
		printJSON(map[string]string{"version": version})
		return
	}
	fmt.Println(version)
}

func printUsage() {
	fmt.Println(`shopper: a shopping assistant that searches, scrapes and compares products

Usage:
  shopper [global flags] <command> [args]

Global flags:
  --config <path>      Path to a YAML config file
  --profile <name>     Layer config.<name>.yaml over the config file
  --set key=value      Override config (repeatable)
  --timeout <dur>      Overall timeout for the command (e.g. 90s)
  --json               JSON output

Commands:
  ask [-k N] [-max-turns N] [-no-memory] <question>
  chat [-no-memory]                 Interactive session (reads stdin when piped)
  memory add <text>
  memory list
  memory search [-k N] <query>
  memory seed [-file path]
  tools
  serve [-addr host:port]
  mcp                               Serve the tools over MCP stdio
  version`)
}

// fail prints err and returns the exit code for it.
func fail(err error, asJSON bool) int {
	toCLIError(err).PrintError(asJSON)
	return 1
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fail(err, true)
		return
	}
	fmt.Println(string(payload))
}

func writeJSONLine(w io.Writer, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		fail(err, true)
		return
	}
	_, _ = w.Write(append(payload, '\n'))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

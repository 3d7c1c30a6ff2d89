package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jllopis/shopper/pkg/config"
	"github.com/jllopis/shopper/pkg/errors"
	"github.com/jllopis/shopper/pkg/memory"
)

func runMemory(ctx context.Context, global globalFlags, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return NewInvalidArgumentError("memory", "expected add, list, search or seed")
	}
	if !cfg.Memory.Enabled {
		return NewCLIError(errors.New(errors.CodeUnavailable, "preference memory is disabled", nil), hintFor(errors.CodeUnavailable))
	}

	a, err := newApp(ctx, cfg, slog.Default(), appOptions{withMemory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := global.withTimeout(ctx)
	defer cancel()

	switch args[0] {
	case "add":
		return memoryAdd(ctx, global, a.preferences, args[1:])
	case "list":
		return memoryList(ctx, global, a.preferences)
	case "search":
		return memorySearch(ctx, global, a.preferences, cfg.Memory.K, args[1:])
	case "seed":
		return memorySeed(ctx, global, a.preferences, cfg.Memory.SeedFile, args[1:])
	default:
		return NewInvalidArgumentError("memory", fmt.Sprintf("unknown subcommand %q", args[0]))
	}
}

func memoryAdd(ctx context.Context, global globalFlags, prefs *memory.PreferenceStore, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	id, err := prefs.Add(ctx, text)
	if stderrors.Is(err, memory.ErrEmptyText) {
		return NewInvalidArgumentError("memory add", "preference text is required")
	}
	if err != nil {
		return err
	}
	if global.JSON {
		printJSON(map[string]string{"id": id})
		return nil
	}
	fmt.Printf("Added memory %s\n", id)
	return nil
}

func memoryList(ctx context.Context, global globalFlags, prefs *memory.PreferenceStore) error {
	records, err := prefs.Records(ctx)
	if err != nil {
		return err
	}
	if global.JSON {
		if records == nil {
			records = []memory.PreferenceRecord{}
		}
		printJSON(map[string]any{"memories": records, "count": len(records)})
		return nil
	}
	if len(records) == 0 {
		fmt.Println("No memories stored.")
		return nil
	}
	tw := newTabWriter()
	fmt.Fprintln(tw, "ID\tPREFERENCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.Text)
	}
	return tw.Flush()
}

func memorySearch(ctx context.Context, global globalFlags, prefs *memory.PreferenceStore, defaultK int, args []string) error {
	fs := flag.NewFlagSet("memory search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	k := fs.Int("k", defaultK, "number of results")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("memory search", err.Error())
	}
	if *k <= 0 {
		return NewInvalidArgumentError("memory search", "-k must be positive")
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return NewInvalidArgumentError("memory search", "a query is required")
	}

	records, err := prefs.Nearest(ctx, query, *k)
	if err != nil {
		return err
	}
	if global.JSON {
		if records == nil {
			records = []memory.PreferenceRecord{}
		}
		printJSON(map[string]any{"results": records})
		return nil
	}
	if len(records) == 0 {
		fmt.Println("No matching memories.")
		return nil
	}
	tw := newTabWriter()
	fmt.Fprintln(tw, "DISTANCE\tID\tPREFERENCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\n", r.Distance, r.ID, r.Text)
	}
	return tw.Flush()
}

func memorySeed(ctx context.Context, global globalFlags, prefs *memory.PreferenceStore, seedFile string, args []string) error {
	fs := flag.NewFlagSet("memory seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", seedFile, "YAML or JSON list of preferences")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("memory seed", err.Error())
	}

	texts := memory.DefaultPreferences
	if *file != "" {
		loaded, err := memory.LoadSeedFile(*file)
		if err != nil {
			return NewInvalidArgumentError("memory seed", err.Error())
		}
		texts = loaded
	}

	ids, err := prefs.Seed(ctx, texts)
	if err != nil {
		return err
	}
	if global.JSON {
		if ids == nil {
			ids = []string{}
		}
		printJSON(map[string]any{"added": ids, "count": len(ids)})
		return nil
	}
	fmt.Printf("Seeded %d new memories (%d candidates).\n", len(ids), len(texts))
	return nil
}

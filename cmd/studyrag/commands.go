package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"studyrag/internal/history"
	"studyrag/internal/tui"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "studyrag",
		Usage: "Index study documents and search them by meaning",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML config file (defaults to ./config.yaml, then ~/.config/studyrag/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "Path to an env file",
				Value: ".env",
			},
		},
		Action: tuiAction,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add documents to the store",
				ArgsUsage: "<path|glob>...",
				Action:    ingestAction,
			},
			{
				Name:      "query",
				Usage:     "Print the passages most similar to a query",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of passages (defaults to retrieval.top_k)",
					},
				},
				Action: queryAction,
			},
			{
				Name:   "reset",
				Usage:  "Delete every stored chunk",
				Action: resetAction,
			},
			{
				Name:   "tui",
				Usage:  "Start the interactive session (default)",
				Action: tuiAction,
			},
		},
	}
}

func ingestAction(ctx context.Context, cmd *cli.Command) error {
	patterns := cmd.Args().Slice()
	if len(patterns) == 0 {
		return errors.New("ingest needs at least one path or glob")
	}
	app, err := newAppContext(ctx, cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.Root().Writer
	before := app.engine.Len()
	report, err := app.engine.IngestPaths(ctx, patterns)
	for _, f := range report.Files {
		fmt.Fprintf(out, "%s: %d chunks\n", f.Path, f.Chunks)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ingested %d chunks from %d files, %d in store\n", report.Chunks, len(report.Files), app.engine.Len())

	if added := app.engine.Chunks()[before:]; len(added) > 0 {
		summary, err := app.summarizer.Summarize(strings.Join(added, "\n"), app.cfg.Summarizer.MaxSentences)
		if err != nil {
			return err
		}
		if summary != "" {
			fmt.Fprintf(out, "\nsummary: %s\n", summary)
		}
	}
	return nil
}

func queryAction(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return errors.New("query needs some text")
	}
	app, err := newAppContext(ctx, cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	k := int(cmd.Int("k"))
	if !cmd.IsSet("k") {
		k = app.cfg.Retrieval.TopK
	}
	results, err := app.engine.Search(ctx, query, k)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	if len(results) == 0 {
		fmt.Fprintln(out, tui.NoDocumentsMessage)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "[%d] score=%.3f chunk=%d\n%s\n\n", i+1, r.Score, r.Ordinal, strings.TrimSpace(r.Text))
	}
	return nil
}

func resetAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.engine.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "cleared %s\n", app.cfg.Store.Dir)
	return nil
}

func tuiAction(ctx context.Context, cmd *cli.Command) error {
	// The screen belongs to the TUI; logs only go to log.file if configured.
	app, err := newAppContext(ctx, cmd, io.Discard)
	if err != nil {
		return err
	}
	defer app.Close()

	summary := "No documents yet. Use /ingest <path> to add some."
	if chunks := app.engine.Chunks(); len(chunks) > 0 {
		summary, err = app.summarizer.Summarize(strings.Join(chunks, "\n"), app.cfg.Summarizer.MaxSentences)
		if err != nil {
			return err
		}
	}
	m := tui.New(ctx, app.engine, history.New(), tui.Options{
		TopK:         app.cfg.Retrieval.TopK,
		Summary:      summary,
		Summarizer:   app.summarizer,
		MaxSentences: app.cfg.Summarizer.MaxSentences,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

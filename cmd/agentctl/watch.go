package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"agentctl/internal/api"
	"agentctl/internal/document"
	"agentctl/internal/domain"
	"agentctl/internal/state"
	"agentctl/internal/watcher"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory: new CSVs replace the dataset, new PDFs join the index",
		Long:  "Watches a directory for the extensions in watch.extensions. Changes are batched over watch.debounceMs; when watch.autoReindex is set, PDF changes rebuild the retrieval index. Press Ctrl+C to stop.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			w, err := watcher.New(cfg.Watch.Extensions, logger)
			if err != nil {
				return err
			}
			defer w.Close()

			events, err := w.Watch(ctx, dir)
			if err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			logger.Info("watching", "dir", dir, "extensions", []string(cfg.Watch.Extensions))

			client := newClient()
			out := cmd.OutOrStdout()
			window := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
			watcher.Debounce(ctx, events, window, func(batch []watcher.Event) {
				if err := applyBatch(ctx, out, app, client, batch); err != nil {
					logger.Warn("cannot apply changes", "err", err)
				}
			})
			return nil
		},
	}
}

// applyBatch folds a batch of file events into the session.
func applyBatch(ctx context.Context, out io.Writer, app *state.App, client *api.Client, batch []watcher.Event) error {
	pdfChanged := false
	for _, ev := range batch {
		switch strings.ToLower(filepath.Ext(ev.Path)) {
		case ".csv", ".json":
			if ev.Op == watcher.Removed {
				continue
			}
			ds, err := loadDataset(ctx, app, client, ev.Path)
			if err != nil {
				logger.Warn("cannot load dataset", "file", ev.Path, "err", err)
				continue
			}
			printDataset(out, ds)
		case ".pdf":
			changed, err := applyPDF(ctx, app, ev)
			if err != nil {
				logger.Warn("cannot update document", "file", ev.Path, "err", err)
				continue
			}
			if changed {
				fmt.Fprintf(out, "%s %s\n", ev.Op, filepath.Base(ev.Path))
			}
			pdfChanged = pdfChanged || changed
		}
	}

	if !pdfChanged || !cfg.Watch.AutoReindex || len(app.Documents()) == 0 {
		return nil
	}
	return indexDocuments(ctx, out, app, client)
}

// applyPDF adds, refreshes or drops the document at ev.Path. A document that
// is already known keeps its id.
func applyPDF(ctx context.Context, app *state.App, ev watcher.Event) (bool, error) {
	var existing *domain.PdfDocument
	for _, d := range app.Documents() {
		if d.Path == ev.Path {
			existing = &d
			break
		}
	}

	if ev.Op == watcher.Removed {
		if existing == nil {
			return false, nil
		}
		_, err := app.RemoveDocument(ctx, existing.ID)
		return err == nil, err
	}

	doc, err := document.Open(ev.Path)
	if err != nil {
		return false, err
	}
	if existing != nil {
		doc.ID = existing.ID
	}
	return true, app.AddDocuments(ctx, doc)
}

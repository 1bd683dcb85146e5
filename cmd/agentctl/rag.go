package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"agentctl/internal/api"
	"agentctl/internal/document"
	"agentctl/internal/domain"
	"agentctl/internal/state"

	"github.com/spf13/cobra"
)

var errNoDocuments = errors.New("no PDF documents in the session; add some with 'agentctl upload pdf' or 'agentctl rag index <files>'")

func ragCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Build and search the document retrieval index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "index [files...]",
		Short: "Index the session's PDF documents, adding any files given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			if len(args) > 0 {
				docs, err := document.OpenAll(ctx, args, 0)
				if err != nil {
					return err
				}
				if err := app.AddDocuments(ctx, docs...); err != nil {
					return err
				}
			}
			return indexDocuments(ctx, cmd.OutOrStdout(), app, newClient())
		},
	})

	var format string
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			if len(app.Documents()) == 0 {
				return errNoDocuments
			}
			query := args[0]
			indexDir := app.IndexDir()
			hits, err := newClient().RAGSearch(ctx, query, api.SearchOptions{
				IndexDir:       indexDir,
				RAGIndexExists: api.Bool(indexDir != ""),
			})
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("RAG search complete: %q - %d chunks found", query, len(hits))
			if err := app.AppendResult(ctx, domain.NewAnalysisResult(domain.ResultRAG, "", summary)); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, hits, func(w io.Writer) error {
				for i, h := range hits {
					fmt.Fprintf(w, "%d. [%s p.%d] score=%.3f\n   %s\n", i+1, h.Metadata.Source, h.Metadata.Page, h.Score, h.Text)
				}
				fmt.Fprintln(w, summary)
				return nil
			})
		},
	}
	search.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	cmd.AddCommand(search)

	return cmd
}

// indexDocuments sends every document in the session to the indexing
// endpoint, stores the returned token and marks the documents processed.
// Both outcomes are recorded in the analysis log.
func indexDocuments(ctx context.Context, w io.Writer, app *state.App, client *api.Client) error {
	docs := app.Documents()
	if len(docs) == 0 {
		return errNoDocuments
	}

	res, err := sendForIndexing(ctx, client, docs)
	if err != nil {
		if rerr := app.AppendResult(ctx, domain.NewAnalysisResult(domain.ResultIndexError, "", "indexing failed: "+err.Error())); rerr != nil {
			logger.Warn("cannot record indexing failure", "err", rerr)
		}
		return err
	}

	if err := app.SetIndexDir(ctx, res.IndexDir); err != nil {
		return err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if err := app.MarkProcessed(ctx, ids...); err != nil {
		return err
	}
	summary := fmt.Sprintf("%d PDF documents indexed.", len(docs))
	if err := app.AppendResult(ctx, domain.NewAnalysisResult(domain.ResultIndexing, "", summary)); err != nil {
		return err
	}
	fmt.Fprintln(w, summary)
	if res.IndexDir != "" {
		fmt.Fprintf(w, "index: %s\n", res.IndexDir)
	}
	return nil
}

func sendForIndexing(ctx context.Context, client *api.Client, docs []domain.PdfDocument) (*api.IndexResult, error) {
	files := make([]api.File, 0, len(docs))
	for _, d := range docs {
		f, err := api.OpenFile(d.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		files = append(files, api.NewFile(d.Name, f))
	}
	return client.RAGIndex(ctx, files)
}

func docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage the session's PDF documents",
	}

	var format string
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeState, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeState()

			docs := app.Documents()
			return render(cmd.OutOrStdout(), format, docs, func(w io.Writer) error {
				if len(docs) == 0 {
					fmt.Fprintln(w, "no documents")
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPAGES\tSIZE\tINDEXED")
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\n", d.ID, d.Name, d.Pages, humanSize(d.Size), d.Processed)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [id]",
		Short: "Remove one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeState, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeState()

			found, err := app.RemoveDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no document with id %s", args[0])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeState, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeState()
			return app.ClearDocuments(cmd.Context())
		},
	})

	return cmd
}

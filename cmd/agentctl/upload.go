package main

import (
	"context"
	"fmt"
	"io"

	"agentctl/internal/api"
	"agentctl/internal/dataset"
	"agentctl/internal/document"
	"agentctl/internal/domain"
	"agentctl/internal/state"

	"github.com/spf13/cobra"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Load a CSV dataset or select PDF documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "csv [file]",
		Short: "Load a CSV (or JSON) file as the active dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			ds, err := loadDataset(ctx, app, newClient(), args[0])
			if err != nil {
				return err
			}
			printDataset(cmd.OutOrStdout(), ds)
			return nil
		},
	})

	var index bool
	pdf := &cobra.Command{
		Use:   "pdf [files...]",
		Short: "Upload PDF documents and add them to the session",
		Long:  "Upload PDF documents one by one. Each file joins the session once its upload succeeds; after a failure the rest are skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			client := newClient()
			docs, err := document.OpenAll(ctx, args, 0)
			if err != nil {
				return err
			}
			// Each document joins the session once it is on the backend, so a
			// failure part way leaves the earlier uploads listed.
			for _, doc := range docs {
				if err := uploadPDF(ctx, client, doc); err != nil {
					return fmt.Errorf("upload %s: %w", doc.Name, err)
				}
				if err := app.AddDocuments(ctx, doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d pages  %s\n", doc.ID, doc.Name, doc.Pages, humanSize(doc.Size))
			}
			if index {
				return indexDocuments(ctx, cmd.OutOrStdout(), app, client)
			}
			return nil
		},
	}
	pdf.Flags().BoolVar(&index, "index", false, "rebuild the retrieval index after uploading")
	cmd.AddCommand(pdf)

	return cmd
}

// loadDataset reads path into the session's active dataset.
func loadDataset(ctx context.Context, app *state.App, client *api.Client, path string) (*domain.TabularDataset, error) {
	ds, err := dataset.NewLoader(client, logger).Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := app.SetDataset(ctx, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func uploadPDF(ctx context.Context, client *api.Client, doc domain.PdfDocument) error {
	f, err := api.OpenFile(doc.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	res, err := client.UploadPDF(ctx, api.NewFile(doc.Name, f))
	if err != nil {
		return fmt.Errorf("upload %s: %w", doc.Name, err)
	}
	logger.Debug("pdf uploaded", "file", res.Filename, "size_bytes", res.SizeBytes)
	return nil
}

func printDataset(w io.Writer, ds *domain.TabularDataset) {
	if !ds.Tabular() {
		fmt.Fprintf(w, "%s: %s dataset, %s (not tabular)\n", ds.Filename, ds.Kind, humanSize(ds.Size))
		return
	}
	fmt.Fprintf(w, "%s: %d rows x %d columns, %s (%d rows in preview)\n",
		ds.Filename, ds.TotalRows, len(ds.Headers), humanSize(ds.Size), len(ds.Rows))
}

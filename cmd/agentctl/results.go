package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func resultsCmd() *cobra.Command {
	var kind, format string
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the analysis log",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeState, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeState()

			results := app.Results()
			if kind != "" {
				results = app.ResultsByType()[kind]
			}
			return render(cmd.OutOrStdout(), format, results, func(w io.Writer) error {
				if len(results) == 0 {
					fmt.Fprintln(w, "no results")
					return nil
				}
				for _, r := range results {
					label := r.Type
					if r.SubType != "" {
						label += "/" + r.SubType
					}
					fmt.Fprintf(w, "[%s] %s\n%s\n\n", r.Timestamp.Format(time.DateTime), label, r.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "only show results of this type (eda, indexing, rag, ...)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	return cmd
}

// sessionView is the serialized form of `session show`.
type sessionView struct {
	Dataset   *datasetView   `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	IndexDir  string         `json:"indexDir,omitempty" yaml:"indexDir,omitempty"`
	Documents []documentView `json:"documents" yaml:"documents"`
	Messages  []messageView  `json:"messages" yaml:"messages"`
	Results   int            `json:"results" yaml:"results"`
}

type datasetView struct {
	Filename  string   `json:"filename" yaml:"filename"`
	Type      string   `json:"type" yaml:"type"`
	Headers   []string `json:"headers,omitempty" yaml:"headers,omitempty"`
	TotalRows int      `json:"totalRows" yaml:"totalRows"`
}

type documentView struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Pages     int    `json:"pages" yaml:"pages"`
	Processed bool   `json:"processed" yaml:"processed"`
}

type messageView struct {
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the saved session",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the dataset, documents, index token and transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeState, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeState()

			view := sessionView{IndexDir: app.IndexDir(), Results: len(app.Results())}
			if ds := app.Dataset(); ds != nil {
				view.Dataset = &datasetView{Filename: ds.Filename, Type: string(ds.Kind), Headers: ds.Headers, TotalRows: ds.TotalRows}
			}
			for _, d := range app.Documents() {
				view.Documents = append(view.Documents, documentView{ID: d.ID, Name: d.Name, Pages: d.Pages, Processed: d.Processed})
			}
			for _, m := range app.Messages() {
				view.Messages = append(view.Messages, messageView{Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp})
			}
			return render(cmd.OutOrStdout(), format, view, func(w io.Writer) error {
				return printSession(w, view)
			})
		},
	}
	show.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the dataset, documents, index token, transcript and results",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeState, err := openState(cmd.Context())
			if err != nil {
				return err
			}
			defer closeState()
			if err := app.Reset(cmd.Context()); err != nil {
				return err
			}
			logger.Info("session cleared")
			return nil
		},
	})

	return cmd
}

func printSession(w io.Writer, v sessionView) error {
	if v.Dataset != nil {
		fmt.Fprintf(w, "dataset:   %s (%s, %d rows)\n", v.Dataset.Filename, v.Dataset.Type, v.Dataset.TotalRows)
	} else {
		fmt.Fprintln(w, "dataset:   none")
	}
	indexDir := v.IndexDir
	if indexDir == "" {
		indexDir = "none"
	}
	fmt.Fprintf(w, "index:     %s\n", indexDir)
	fmt.Fprintf(w, "documents: %d\n", len(v.Documents))
	fmt.Fprintf(w, "results:   %d\n", v.Results)
	if len(v.Messages) > 0 {
		fmt.Fprintln(w)
	}
	for _, m := range v.Messages {
		fmt.Fprintf(w, "%s %-4s %s\n", m.Timestamp.Format(time.TimeOnly), m.Role+":", m.Content)
	}
	return nil
}

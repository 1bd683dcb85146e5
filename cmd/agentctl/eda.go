package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"text/tabwriter"

	"agentctl/internal/domain"

	"github.com/spf13/cobra"
)

var errNoDataset = errors.New("no dataset loaded; run 'agentctl upload csv <file>' first")

func edaCmd() *cobra.Command {
	var (
		maxPCAPoints int
		subType      string
		format       string
	)
	cmd := &cobra.Command{
		Use:   "eda",
		Short: "Profile the loaded dataset on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			ds := app.Dataset()
			if ds == nil {
				return errNoDataset
			}
			if maxPCAPoints <= 0 {
				maxPCAPoints = cfg.API.MaxPCAPoints
			}
			profile, err := newClient().EDAProfile(ctx, ds, maxPCAPoints)
			if err != nil {
				return err
			}

			shape, _ := json.MarshalIndent(profile.Shape, "", "  ")
			result := domain.NewAnalysisResult(domain.ResultEDA, subType, "EDA profile summary:\n"+string(shape))
			if err := app.AppendResult(ctx, result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, profileOutput(profile), func(w io.Writer) error {
				return printProfile(w, profile)
			})
		},
	}
	cmd.Flags().IntVar(&maxPCAPoints, "max-pca-points", 0, "points in the 2D PCA projection (default from api.maxPcaPoints)")
	cmd.Flags().StringVar(&subType, "sub-type", "basic_stats", "label recorded with the result (basic_stats, correlation, pca)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "output format: text, json or yaml")
	return cmd
}

// profileOutput is what json and yaml output show: the backend response as
// received, so fields the text view ignores are kept.
func profileOutput(p *domain.EDAProfile) any {
	if p.Raw != nil {
		return p.Raw
	}
	return p
}

func printProfile(w io.Writer, p *domain.EDAProfile) error {
	fmt.Fprintf(w, "shape: %d rows x %d cols\n", p.Shape.Rows, p.Shape.Cols)
	fmt.Fprintf(w, "duplicates: %d\n", p.Duplicates)

	cols := make([]string, 0, len(p.Nulls)+len(p.Dtypes))
	for c := range p.Nulls {
		cols = append(cols, c)
	}
	for c := range p.Dtypes {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	if len(cols) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\nCOLUMN\tDTYPE\tNULLS")
		for _, c := range cols {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c, p.Dtypes[c], p.Nulls[c])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(p.NumericStats) > 0 {
		names := make([]string, 0, len(p.NumericStats))
		for n := range p.NumericStats {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "\nnumeric stats:")
		for _, n := range names {
			stats := p.NumericStats[n]
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(w, "  %s:", n)
			for _, k := range keys {
				fmt.Fprintf(w, " %s=%g", k, stats[k])
			}
			fmt.Fprintln(w)
		}
	}
	if p.HasPCA() {
		fmt.Fprintln(w, "\npca2d: available (use --format json to export)")
	}
	return nil
}

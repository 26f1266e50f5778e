package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/choropleth"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/ranking"
	"github.com/sells-group/lagekarte/internal/sheet"
)

var rankCmd = &cobra.Command{
	Use:   "rank <indicator> <year>",
	Short: "Rank regions by one indicator",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		key, err := parseKeyArgs(cmd, args)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		samples, err := st.IndicatorSamples(ctx, key)
		if err != nil {
			return eris.Wrap(err, "rank")
		}
		names, err := st.Regions(ctx)
		if err != nil {
			return eris.Wrap(err, "rank")
		}

		builder := choropleth.NewBuilder(catalog, nil, cfg.Scale.LegendStops)
		rk := builder.Ranking(key, samples, names)
		if rk.Len() == 0 {
			fmt.Fprintln(os.Stderr, "No usable samples.")
			return nil
		}

		query, _ := cmd.Flags().GetString("q")
		limit, _ := cmd.Flags().GetInt("limit")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		entries := rk.Filter(query)
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}

		if xlsxPath != "" {
			if err := sheet.WriteRanking(xlsxPath, key, builder.Metric(key), entries); err != nil {
				return err
			}
			zap.L().Info("ranking exported",
				zap.String("key", key.String()),
				zap.Int("entries", len(entries)),
				zap.String("path", xlsxPath),
			)
			return nil
		}

		formatRanking(os.Stdout, entries)
		return nil
	},
}

func parseKeyArgs(cmd *cobra.Command, args []string) (indicator.Key, error) {
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return indicator.Key{}, eris.Errorf("invalid year %q", args[1])
	}
	sub, _ := cmd.Flags().GetString("sub")
	return indicator.Key{Indicator: args[0], SubMetric: sub, Year: year}, nil
}

// formatRanking writes a tabular ranking to out.
func formatRanking(out io.Writer, entries []ranking.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tREGION\tNAME\tVALUE\tPCT")
	_, _ = fmt.Fprintln(w, "----\t------\t----\t-----\t---")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f%%\n",
			e.Rank,
			e.RegionID,
			e.Name,
			humanize.FormatFloat("#,###.##", e.Value),
			e.Percentage,
		)
	}
	_ = w.Flush()
}

func init() {
	rankCmd.Flags().String("sub", "", "sub-metric")
	rankCmd.Flags().String("q", "", "filter by region name or id")
	rankCmd.Flags().Int("limit", 0, "show at most this many entries")
	rankCmd.Flags().String("xlsx", "", "write the ranking to an XLSX file instead of stdout")
	rootCmd.AddCommand(rankCmd)
}

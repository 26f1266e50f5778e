package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/binning"
	"github.com/sells-group/lagekarte/internal/events"
)

var binsCmd = &cobra.Command{
	Use:   "bins",
	Short: "Aggregate the filtered event feed into hexagon bins",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loc, err := eventsLocation()
		if err != nil {
			return err
		}
		filter, err := filterFromFlags(ctx, cmd, st)
		if err != nil {
			return err
		}
		filter.Location = loc
		if err := filter.Validate(); err != nil {
			return err
		}

		records, err := st.Events(ctx)
		if err != nil {
			return eris.Wrap(err, "bins")
		}

		zoom, _ := cmd.Flags().GetFloat64("zoom")
		res := binning.ResolutionForZoom(zoom)
		seq := events.Order(records, filter)
		bins := binning.Aggregate(seq, res)

		zap.L().Info("events binned",
			zap.Int("events", len(seq)),
			zap.Int("resolution", res),
			zap.Int("bins", len(bins)),
		)

		if asGeoJSON, _ := cmd.Flags().GetBool("geojson"); asGeoJSON {
			fc, err := binning.FeatureCollection(bins)
			if err != nil {
				return err
			}
			return eris.Wrap(json.NewEncoder(os.Stdout).Encode(fc), "bins: encode geojson")
		}

		if len(bins) == 0 {
			fmt.Fprintln(os.Stderr, "No geocoded events match.")
			return nil
		}
		formatBins(os.Stdout, bins)
		return nil
	},
}

// formatBins writes a tabular bin list to out.
func formatBins(out io.Writer, bins []binning.Bin) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CELL\tCOUNT\tCOLOR")
	_, _ = fmt.Fprintln(w, "----\t-----\t-----")
	for _, b := range bins {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", b.CellID, b.Count, b.Color)
	}
	_ = w.Flush()
}

func init() {
	binsCmd.Flags().Float64("zoom", 8, "map zoom level that selects the cell resolution")
	binsCmd.Flags().Bool("geojson", false, "print a GeoJSON FeatureCollection")
	addFilterFlags(binsCmd)
	rootCmd.AddCommand(binsCmd)
}

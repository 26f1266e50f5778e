package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lagekarte/internal/events"
	"github.com/sells-group/lagekarte/internal/indicator"
	"github.com/sells-group/lagekarte/internal/sheet"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load regions, indicator samples or events into the store",
}

var importRegionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Import region names from a JSON object of id to name",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		var names map[string]string
		if err := readJSON(path, &names); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportRegions(ctx, names)
		if err != nil {
			return eris.Wrap(err, "import regions")
		}
		zap.L().Info("regions imported", zap.Int64("rows", n), zap.String("file", path))
		return nil
	},
}

var importEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Import police-report records from a JSON array",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		replace, _ := cmd.Flags().GetBool("replace")
		var records []events.Record
		if err := readJSON(path, &records); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var n int64
		if replace {
			n, err = st.ReplaceEvents(ctx, records)
		} else {
			n, err = st.ImportEvents(ctx, records)
		}
		if err != nil {
			return eris.Wrap(err, "import events")
		}

		summary := events.Summarize(records)
		zap.L().Info("events imported",
			zap.Int64("rows", n),
			zap.Int("geocoded", summary.Geocoded),
			zap.Bool("replace", replace),
			zap.String("file", path),
		)
		return nil
	},
}

var importSamplesCmd = &cobra.Command{
	Use:   "samples <indicator> <year>",
	Short: "Import indicator samples from JSON or XLSX",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		key, err := parseKeyArgs(cmd, args)
		if err != nil {
			return err
		}
		samples, err := readSamples(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportSamples(ctx, key, samples)
		if err != nil {
			return eris.Wrap(err, "import samples")
		}
		zap.L().Info("samples imported",
			zap.String("key", key.String()),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func readSamples(cmd *cobra.Command) ([]indicator.Sample, error) {
	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		var opts sheet.Options
		opts.SheetName, _ = cmd.Flags().GetString("sheet")
		opts.SkipRows, _ = cmd.Flags().GetInt("skip-rows")
		opts.RegionCol, _ = cmd.Flags().GetInt("region-col")
		opts.ValueCol, _ = cmd.Flags().GetInt("value-col")
		opts.DecimalComma, _ = cmd.Flags().GetBool("decimal-comma")
		return sheet.ReadSamples(path, opts)
	}
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil, eris.New("either --file or --xlsx is required")
	}
	var samples []indicator.Sample
	if err := readJSON(path, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}

func init() {
	importRegionsCmd.Flags().String("file", "", "path to JSON file (required)")
	_ = importRegionsCmd.MarkFlagRequired("file")

	importEventsCmd.Flags().String("file", "", "path to JSON file (required)")
	importEventsCmd.Flags().Bool("replace", false, "replace the stored feed instead of merging")
	_ = importEventsCmd.MarkFlagRequired("file")

	importSamplesCmd.Flags().String("sub", "", "sub-metric")
	importSamplesCmd.Flags().String("file", "", "path to JSON array of {region_id, value}")
	importSamplesCmd.Flags().String("xlsx", "", "path to XLSX workbook")
	importSamplesCmd.Flags().String("sheet", "", "sheet name (default first sheet)")
	importSamplesCmd.Flags().Int("skip-rows", 1, "header rows to skip")
	importSamplesCmd.Flags().Int("region-col", 0, "zero-based region id column")
	importSamplesCmd.Flags().Int("value-col", 1, "zero-based value column")
	importSamplesCmd.Flags().Bool("decimal-comma", false, "values use a decimal comma")

	importCmd.AddCommand(importRegionsCmd, importEventsCmd, importSamplesCmd)
	rootCmd.AddCommand(importCmd)
}

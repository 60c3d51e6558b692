package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/config"
	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/export"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

var interpolateCmd = &cobra.Command{
	Use:   "interpolate",
	Short: "Interpolate ET for one geometry and export the series",
	Long:  "Builds the interpolated daily, monthly or custom-date series for a point or polygon and submits one export per output image. With --dry-run only the target dates are printed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if cmd.Flags().Changed("asset-root") {
			cfg.Export.AssetRoot, _ = cmd.Flags().GetString("asset-root")
		}
		mode := "interpolate"
		if dryRun {
			mode = "scenes"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		if name == "" && !dryRun {
			return eris.New("--name is required unless --dry-run is set")
		}
		region, err := regionFromFlags(cmd)
		if err != nil {
			return err
		}
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		p := requestParams(cmd, cfg, region)
		opts := interpolateOptions(cmd, cfg)
		if dryRun {
			return listTargets(reg, p, opts, os.Stdout)
		}

		sum, err := interpolateAndExport(cmd.Context(), newComputeClient(cfg), reg, cfg, p, opts, name)
		printSummary(sum)
		return err
	},
}

// interpolateOptions merges configured interpolation defaults with flags.
func interpolateOptions(cmd *cobra.Command, c *config.Config) []collection.InterpolateOption {
	interval := c.Interpolate.TInterval
	if cmd.Flags().Changed("t-interval") {
		interval, _ = cmd.Flags().GetString("t-interval")
	}
	days := c.Interpolate.Days
	if cmd.Flags().Changed("interp-days") {
		days, _ = cmd.Flags().GetInt("interp-days")
	}
	useJoins := c.Interpolate.UseJoins
	if cmd.Flags().Changed("use-joins") {
		useJoins, _ = cmd.Flags().GetBool("use-joins")
	}

	opts := []collection.InterpolateOption{
		collection.WithTInterval(interval),
		collection.WithInterpMethod(c.Interpolate.Method),
		collection.WithInterpDays(days),
		collection.WithUseJoins(useJoins),
	}
	if dates, _ := cmd.Flags().GetStringSlice("dates"); len(dates) > 0 {
		opts = append(opts, collection.WithCustomDates(dates...))
	}
	return opts
}

// listTargets prints the dates an interpolation would produce, one per line.
func listTargets(reg *registry.Registry, p collection.Params, opts []collection.InterpolateOption, out io.Writer) error {
	c, err := collection.New(reg, p)
	if err != nil {
		return err
	}
	targets, err := c.InterpolationTargets(opts...)
	if err != nil {
		return err
	}
	for _, t := range targets {
		_, _ = fmt.Fprintln(out, dateutil.Format(t))
	}
	return nil
}

// interpolateAndExport builds the interpolated series and exports every
// image under <asset root>/<name>_<label>.
func interpolateAndExport(ctx context.Context, client compute.Client, reg *registry.Registry, c *config.Config, p collection.Params, opts []collection.InterpolateOption, name string) (export.Summary, error) {
	coll, err := collection.New(reg, p)
	if err != nil {
		return export.Summary{}, err
	}
	series, err := coll.Interpolate(opts...)
	if err != nil {
		return export.Summary{}, err
	}
	exp, err := export.New(client, exportConfig(c))
	if err != nil {
		return export.Summary{}, err
	}
	return exp.ExportCollection(ctx, name, series)
}

func init() {
	addRegionFlags(interpolateCmd)
	addRequestFlags(interpolateCmd)
	interpolateCmd.Flags().String("name", "", "feature name used in asset ids (required unless --dry-run)")
	interpolateCmd.Flags().String("t-interval", "", "daily, monthly or custom (default from config)")
	interpolateCmd.Flags().StringSlice("dates", nil, "target dates for a custom interval, YYYY-MM-DD")
	interpolateCmd.Flags().Int("interp-days", 0, "maximum days to a bracketing scene (default from config)")
	interpolateCmd.Flags().Bool("use-joins", false, "find bracketing scenes with joins")
	interpolateCmd.Flags().String("asset-root", "", "asset folder for exported images (default from config)")
	interpolateCmd.Flags().Bool("dry-run", false, "print the target dates without exporting")
	rootCmd.AddCommand(interpolateCmd)
}

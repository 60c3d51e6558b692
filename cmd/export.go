package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/config"
	"github.com/dgketchum/openet-ptjpl/internal/export"
	"github.com/dgketchum/openet-ptjpl/internal/features"
	"github.com/dgketchum/openet-ptjpl/internal/metrics"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export per-scene ET fraction for shapefile features",
	Long:  "Reads point or polygon features from a WGS84 shapefile and, for every feature and year, submits one ET-fraction export per Landsat scene.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyExportFlags(cmd, cfg)
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("shapefile")
		opts, err := featureOptions(cmd, cfg)
		if err != nil {
			return err
		}
		feats, err := features.Read(path, opts)
		if err != nil {
			return err
		}
		if len(feats) == 0 {
			fmt.Fprintln(os.Stderr, "No features selected.")
			return nil
		}

		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		promReg := prometheus.NewRegistry()
		if err := metrics.Register(promReg); err != nil {
			return eris.Wrap(err, "export: register metrics")
		}

		client := newComputeClient(cfg)
		exp, err := export.New(client, exportConfig(cfg))
		if err != nil {
			return err
		}

		sum, err := exportFeatures(cmd.Context(), client, exp, reg, cfg, feats)
		printSummary(sum)
		if cfg.Export.MetricsFile != "" {
			if werr := metrics.WriteTextfile(cfg.Export.MetricsFile, promReg); werr != nil {
				zap.L().Warn("export: metrics textfile not written", zap.Error(werr))
			}
		}
		return err
	},
}

// exportFeatures runs the per-scene export for every feature and year in
// the configured range.
func exportFeatures(ctx context.Context, client compute.Client, exp *export.Exporter, reg *registry.Registry, c *config.Config, feats []features.Feature) (export.Summary, error) {
	var total export.Summary
	for _, f := range feats {
		log := zap.L().With(zap.String("feature", f.ID))
		for year := c.Export.StartYear; year <= c.Export.EndYear; year++ {
			if err := ctx.Err(); err != nil {
				return total, eris.Wrap(err, "export: cancelled")
			}

			p := baseParams(c, f.Geometry)
			p.StartDate = fmt.Sprintf("%04d-01-01", year)
			p.EndDate = fmt.Sprintf("%04d-01-01", year+1)
			coll, err := collection.New(reg, p)
			if err != nil {
				return total, eris.Wrapf(err, "export: feature %s", f.ID)
			}
			if len(coll.Collections()) == 0 {
				log.Debug("export: no collection covers year", zap.Int("year", year))
				continue
			}

			ids, err := coll.ImageIDs(ctx, client)
			if err != nil {
				log.Error("export: scene listing failed", zap.Int("year", year), zap.Error(err))
				total.Failed = append(total.Failed, export.Failure{ImageID: fmt.Sprintf("%s/%d", f.ID, year), Err: err})
				continue
			}
			metrics.AddScenes(len(ids))
			log.Info("export: scenes listed", zap.Int("year", year), zap.Int("scenes", len(ids)))

			sum, err := exp.ExportScenes(ctx, f.ID, ids)
			total.Add(sum)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// applyExportFlags copies explicitly set flags over the loaded config.
func applyExportFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("start-year") {
		c.Export.StartYear, _ = cmd.Flags().GetInt("start-year")
	}
	if cmd.Flags().Changed("end-year") {
		c.Export.EndYear, _ = cmd.Flags().GetInt("end-year")
	}
	if cmd.Flags().Changed("asset-root") {
		c.Export.AssetRoot, _ = cmd.Flags().GetString("asset-root")
	}
	if cmd.Flags().Changed("metrics-file") {
		c.Export.MetricsFile, _ = cmd.Flags().GetString("metrics-file")
	}
	if cmd.Flags().Changed("id-field") {
		c.Export.IDField, _ = cmd.Flags().GetString("id-field")
	}
}

func featureOptions(cmd *cobra.Command, c *config.Config) (features.Options, error) {
	sel, _ := cmd.Flags().GetStringSlice("select")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	raw, _ := cmd.Flags().GetStringArray("include")

	include := make(map[string][]string, len(raw))
	for _, kv := range raw {
		field, value, ok := strings.Cut(kv, "=")
		if !ok || field == "" {
			return features.Options{}, eris.Errorf("--include %q must be FIELD=VALUE", kv)
		}
		include[field] = append(include[field], value)
	}

	return features.Options{
		IDField: c.Export.IDField,
		Select:  sel,
		Exclude: exclude,
		Include: include,
	}, nil
}

func exportConfig(c *config.Config) export.Config {
	return export.Config{
		AssetRoot:    c.Export.AssetRoot,
		Cooldown:     time.Duration(c.Export.CooldownSecs) * time.Second,
		MaxPixels:    c.Export.MaxPixels,
		ModelVersion: c.Export.ModelVersion,
		CoreVersion:  c.Export.CoreVersion,
		ScaleFactor:  c.Export.ScaleFactor,
		ModelArgs:    c.Model,
	}
}

func printSummary(sum export.Summary) {
	fmt.Fprintf(os.Stderr, "Submitted %d exports (%d after retry), %d failed.\n",
		len(sum.Submitted), sum.Retried, len(sum.Failed))
	for _, f := range sum.Failed {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", f.ImageID, f.Err)
	}
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().String("shapefile", "", "WGS84 point or polygon shapefile (required)")
	cmd.Flags().String("id-field", "", "attribute holding the feature id (default from config)")
	cmd.Flags().StringSlice("select", nil, "only export these feature ids")
	cmd.Flags().StringSlice("exclude", nil, "skip these feature ids")
	cmd.Flags().StringArray("include", nil, "only export features with FIELD=VALUE (repeatable)")
	cmd.Flags().Int("start-year", 0, "first year to export (default from config)")
	cmd.Flags().Int("end-year", 0, "last year to export, inclusive (default from config)")
	cmd.Flags().String("asset-root", "", "asset folder for exported images (default from config)")
	cmd.Flags().String("metrics-file", "", "write export counters to this node-exporter textfile")
}

func init() {
	addExportFlags(exportCmd)
	_ = exportCmd.MarkFlagRequired("shapefile")
	rootCmd.AddCommand(exportCmd)
}

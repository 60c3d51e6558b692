package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/catalog"
	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/metrics"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "List the scenes a request would build",
	Long:  "Runs the overpass listing for a point or polygon and writes it to stdout as a STAC ItemCollection.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("scenes"); err != nil {
			return err
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
		n, err := listScenes(cmd.Context(), newComputeClient(cfg), reg, p, os.Stdout)
		if err != nil {
			return err
		}
		zap.L().Info("scenes: listed", zap.Int("scenes", n))
		return nil
	},
}

// listScenes writes the overpass listing of p to out and returns the
// number of scenes.
func listScenes(ctx context.Context, client compute.Client, reg *registry.Registry, p collection.Params, out io.Writer) (int, error) {
	c, err := collection.New(reg, p)
	if err != nil {
		return 0, err
	}
	coll, err := c.Overpass()
	if err != nil {
		return 0, err
	}
	info, err := client.CollectionInfo(ctx, coll)
	if err != nil {
		return 0, eris.Wrap(err, "scenes: overpass")
	}
	items, err := catalog.Items(info, p.Geometry)
	if err != nil {
		return 0, err
	}
	metrics.AddScenes(len(items))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(catalog.NewItemCollection(items)); err != nil {
		return 0, eris.Wrap(err, "scenes: encode")
	}
	return len(items), nil
}

func init() {
	addRegionFlags(scenesCmd)
	addRequestFlags(scenesCmd)
	rootCmd.AddCommand(scenesCmd)
}

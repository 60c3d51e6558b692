package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/config"
)

// addRegionFlags registers the flags that describe a request geometry.
func addRegionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lon", 0, "point longitude (WGS84)")
	cmd.Flags().Float64("lat", 0, "point latitude (WGS84)")
	cmd.Flags().String("geojson", "", "file holding a GeoJSON point or polygon geometry")
}

// addRequestFlags registers the date window and collection overrides.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "end date, YYYY-MM-DD, exclusive (required)")
	cmd.Flags().StringSlice("collections", nil, "collection ids (default from config)")
	cmd.Flags().Float64("cloud-cover", 0, "maximum CLOUD_COVER_LAND percent (default from config)")
	cmd.Flags().StringSlice("variables", nil, "model variables (default from config)")
}

// regionFromFlags reads --geojson, or --lon/--lat when no file is given.
func regionFromFlags(cmd *cobra.Command) (geom.T, error) {
	path, _ := cmd.Flags().GetString("geojson")
	if path != "" {
		return readGeoJSON(path)
	}
	if !cmd.Flags().Changed("lon") || !cmd.Flags().Changed("lat") {
		return nil, eris.New("either --geojson or both --lon and --lat are required")
	}
	lon, _ := cmd.Flags().GetFloat64("lon")
	lat, _ := cmd.Flags().GetFloat64("lat")
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326), nil
}

func readGeoJSON(path string) (geom.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read geojson %s", path)
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrapf(err, "parse geojson %s", path)
	}
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(4326), nil
	case *geom.Polygon:
		return t.SetSRID(4326), nil
	default:
		return nil, eris.Errorf("geojson %s: unsupported geometry %T", path, g)
	}
}

// requestParams merges the configured request defaults with command flags.
func requestParams(cmd *cobra.Command, c *config.Config, region geom.T) collection.Params {
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")

	p := baseParams(c, region)
	p.StartDate = start
	p.EndDate = end
	if ids, _ := cmd.Flags().GetStringSlice("collections"); len(ids) > 0 {
		p.Collections = ids
	}
	if cmd.Flags().Changed("cloud-cover") {
		cc, _ := cmd.Flags().GetFloat64("cloud-cover")
		p.CloudCoverMax = cc
	}
	if vars, _ := cmd.Flags().GetStringSlice("variables"); len(vars) > 0 {
		p.Variables = vars
	}
	return p
}

// baseParams is a request built from configuration alone. Dates are left
// to the caller. Only points are buffered.
func baseParams(c *config.Config, region geom.T) collection.Params {
	p := collection.Params{
		Collections:   append([]string{}, c.Collection.Collections...),
		Geometry:      region,
		Variables:     append([]string{}, c.Collection.Variables...),
		CloudCoverMax: c.Collection.CloudCoverMax,
		ModelArgs:     c.Model,
	}
	if _, ok := region.(*geom.Point); ok {
		p.BufferMeters = c.Collection.BufferMeters
	}
	return p
}

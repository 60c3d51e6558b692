//go:build !integration

package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/config"
	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/landsat"
	"github.com/dgketchum/openet-ptjpl/internal/localengine"
)

const (
	l8      = "LANDSAT/LC08/C02/T1_L2"
	l7      = "LANDSAT/LE07/C02/T1_L2"
	gridmet = "IDAHO_EPSCOR/GRIDMET"
	root    = "users/test/ptjpl"
)

var (
	sitePoint = geom.NewPointFlat(geom.XY, []float64{-121.9, 39}).SetSRID(4326)
	nearPrint = rect(-123, 38, -120, 40)
	eastPrint = rect(-120.5, 36, -118, 38.5)
)

func rect(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}, []int{10}).SetSRID(4326)
}

func addScene(t *testing.T, e *localengine.Engine, collID, index string, cloud float64, footprint geom.T) {
	t.Helper()
	id, err := landsat.ParseSceneID(index)
	require.NoError(t, err)
	props := map[string]any{
		graph.PropIndex:     index,
		graph.PropTimeStart: dateutil.Millis(id.Date.Add(18*time.Hour + 30*time.Minute)),
		"CLOUD_COVER":       cloud,
		"CLOUD_COVER_LAND":  cloud,
		"WRS_PATH":          id.Path,
		"WRS_ROW":           id.Row,
	}
	require.NoError(t, e.AddImage(collID, localengine.NewImage(props, footprint,
		localengine.FloatBand("et_fraction", 0.5, 0.6, 0.7, 0.8),
		localengine.FloatBand("ndvi", 0.4, 0.5, 0.6, 0.7),
		localengine.FloatBand("et", 3, 3.6, 4.2, 4.8),
		localengine.FloatBand("et_reference", 6, 6, 6, 6),
	)))
}

// newEngine holds three usable 2017 scenes over sitePoint, one too cloudy
// and one whose footprint misses it.
func newEngine(t *testing.T) *localengine.Engine {
	t.Helper()
	e := localengine.New()
	addScene(t, e, l7, "LE07_044033_20170708", 30, nearPrint)
	addScene(t, e, l8, "LC08_044033_20170716", 10, nearPrint)
	addScene(t, e, l7, "LE07_044033_20170724", 80, nearPrint)
	addScene(t, e, l8, "LC08_043034_20170725", 20, eastPrint)
	addScene(t, e, l8, "LC08_044033_20170801", 5, nearPrint)
	for d := dateutil.MustParseDate("2017-06-01"); d.Before(dateutil.MustParseDate("2017-09-01")); d = d.AddDate(0, 0, 1) {
		require.NoError(t, e.AddImage(gridmet, localengine.NewImage(map[string]any{
			graph.PropIndex:     dateutil.DayLabel(d),
			graph.PropTimeStart: dateutil.Millis(d),
		}, nil, localengine.FloatBand("eto", 6, 6, 6, 6))))
	}
	return e
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.Compute.Project = "ee-test"
	c.Collection.Collections = []string{l8, l7}
	c.Collection.CloudCoverMax = 70
	c.Collection.Variables = []string{"et", "et_reference", "et_fraction"}
	c.Model = collection.ModelArgs{
		ETReferenceSource:   gridmet,
		ETReferenceBand:     "eto",
		ETReferenceFactor:   1,
		ETReferenceResample: "nearest",
	}
	c.Interpolate.TInterval = "custom"
	c.Interpolate.Method = "linear"
	c.Interpolate.Days = 32
	c.Export.AssetRoot = root
	c.Export.CooldownSecs = 0
	c.Export.StartYear = 2017
	c.Export.EndYear = 2017
	c.Export.IDField = "FID"
	return c
}

// chdirTemp moves into an empty directory so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

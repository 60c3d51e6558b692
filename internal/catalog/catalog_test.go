package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/localengine"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

func TestItems(t *testing.T) {
	eng := localengine.New()
	eng.MustAddImage("LANDSAT/LC08/C02/T1_L2", localengine.NewImage(map[string]any{
		graph.PropIndex:       "LC08_044033_20170716",
		graph.PropTimeStart:   dateutil.Millis(dateutil.MustParseDate("2017-07-16")),
		"CLOUD_COVER_LAND":    12.5,
		collection.PropCollID: "LANDSAT/LC08/C02/T1_L2",
	}, nil, localengine.FloatBand("et_fraction", 0.5, 0.5, 0.5, 0.5)))

	info, err := eng.CollectionInfo(context.Background(), graph.LoadCollection("LANDSAT/LC08/C02/T1_L2"))
	require.NoError(t, err)

	pt := geom.NewPointFlat(geom.XY, []float64{-121.9, 39.1}).SetSRID(4326)
	items, err := Items(info, pt)
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "LC08_044033_20170716", it.Id)
	assert.Equal(t, "LANDSAT/LC08/C02/T1_L2", it.Collection)
	assert.Equal(t, "2017-07-16T00:00:00Z", it.Properties["datetime"])
	assert.Equal(t, "landsat_8", it.Properties["platform"])
	assert.Equal(t, "landsat", it.Properties["constellation"])
	assert.Equal(t, []string{"oli", "tirs"}, it.Properties["instruments"])
	assert.Equal(t, 44, it.Properties["landsat:wrs_path"])
	assert.Equal(t, 12.5, it.Properties["eo:cloud_cover"])
	assert.Equal(t, []string{"et_fraction"}, it.Properties["ptjpl:variables"])
	assert.Equal(t, []float64{-121.9, 39.1, -121.9, 39.1}, it.Bbox)
	require.Contains(t, it.Assets, "source")
	assert.Equal(t, "LANDSAT/LC08/C02/T1_L2/LC08_044033_20170716", it.Assets["source"].Href)

	data, err := json.Marshal(NewItemCollection(items))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
	assert.Equal(t, 1.0, doc["numberReturned"])
	features, ok := doc["features"].([]any)
	require.True(t, ok)
	require.Len(t, features, 1)
	assert.Equal(t, "LC08_044033_20170716", features[0].(map[string]any)["id"])
}

func TestItems_PrefersSceneID(t *testing.T) {
	info := &compute.CollectionInfo{Features: []compute.ImageInfo{{
		Type: "Image",
		ID:   "LANDSAT/LE07/C02/T1_L2/LE07_044033_20170708",
		Properties: map[string]any{
			graph.PropIndex:        "1_LE07_044033_20170708",
			collection.PropSceneID: "LE07_044033_20170708",
			collection.PropCollID:  "LANDSAT/LE07/C02/T1_L2",
		},
	}}}

	items, err := Items(info, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "LE07_044033_20170708", items[0].Id)
	assert.Equal(t, 33, items[0].Properties["landsat:wrs_row"])
}

func TestItemsErrors(t *testing.T) {
	_, err := Items(nil, nil)
	assert.Error(t, err)

	_, err = Items(&compute.CollectionInfo{Features: []compute.ImageInfo{{Type: "Image"}}}, nil)
	assert.Error(t, err)
}

func TestEmptyItemCollection(t *testing.T) {
	data, err := json.Marshal(NewItemCollection(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[],"links":[],"numberReturned":0}`, string(data))
}

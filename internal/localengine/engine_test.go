package localengine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

const l8 = "LANDSAT/LC08/C02/T1_L2"

var nan = math.NaN()

func scene(index, date string, cloud float64, etf ...float64) *Image {
	return NewImage(map[string]any{
		graph.PropIndex:     index,
		graph.PropTimeStart: dateutil.Millis(dateutil.MustParseDate(date)),
		"CLOUD_COVER_LAND":  cloud,
	}, nil, FloatBand("et_fraction", etf...))
}

func fixture(t *testing.T) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.AddImage(l8, scene("LC08_044033_20170716", "2017-07-16", 10, 0.5, 0.6, nan, 0.8)))
	require.NoError(t, e.AddImage(l8, scene("LC08_044033_20170801", "2017-08-01", 80, 0.2, 0.2, 0.2, 0.2)))
	require.NoError(t, e.AddImage(l8, scene("LC08_044033_20170708", "2017-07-08", 5, 0.1, nan, 0.3, 0.4)))
	return e
}

func indexes(images []*Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i], _ = img.Props[graph.PropIndex].(string)
	}
	return out
}

func TestAddImage(t *testing.T) {
	e := New()
	img := scene("LC08_044033_20170716", "2017-07-16", 10, 1, 2, 3, 4)
	require.NoError(t, e.AddImage(l8, img))
	assert.Equal(t, l8+"/LC08_044033_20170716", img.Props[graph.PropID])
	assert.IsType(t, float64(0), img.Props[graph.PropTimeStart])

	err := e.AddImage(l8, NewImage(nil, nil, FloatBand("x", 1, 2, 3, 4)))
	assert.Error(t, err)

	err = e.AddImage(l8, NewImage(map[string]any{graph.PropIndex: "short"}, nil, FloatBand("x", 1)))
	assert.Error(t, err)
}

func TestFilterSortDistinct(t *testing.T) {
	e := fixture(t)
	coll := graph.LoadCollection(l8).
		Filter(graph.LessThanOrEquals("CLOUD_COVER_LAND", 70)).
		Merge(graph.LoadCollection(l8)).
		Distinct(graph.PropIndex).
		Sort(graph.PropTimeStart, true)

	images, err := e.EvaluateCollection(coll)
	require.NoError(t, err)
	assert.Equal(t, []string{"LC08_044033_20170708", "LC08_044033_20170716", "LC08_044033_20170801"}, indexes(images))

	desc, err := e.EvaluateCollection(graph.LoadCollection(l8).Sort(graph.PropTimeStart, false))
	require.NoError(t, err)
	assert.Equal(t, []string{"LC08_044033_20170801", "LC08_044033_20170716", "LC08_044033_20170708"}, indexes(desc))

	dated, err := e.EvaluateCollection(graph.LoadCollection(l8).FilterDate(
		dateutil.MustParseDate("2017-07-08"), dateutil.MustParseDate("2017-07-16")))
	require.NoError(t, err)
	assert.Equal(t, []string{"LC08_044033_20170708"}, indexes(dated))
}

func TestMapCapturesOuterArgument(t *testing.T) {
	e := fixture(t)
	coll := graph.LoadCollection(l8).Map(func(img graph.Image) graph.Image {
		n := graph.LoadCollection(l8).Filter(graph.Equals(graph.PropIndex, img.Get(graph.PropIndex))).Map(func(x graph.Image) graph.Image {
			return x.Set("outer", img.Get(graph.PropIndex))
		}).First()
		return n.Set("scene_id", img.Get(graph.PropIndex))
	})
	images, err := e.EvaluateCollection(coll)
	require.NoError(t, err)
	require.Len(t, images, 3)
	for _, img := range images {
		assert.Equal(t, img.Props[graph.PropIndex], img.Props["outer"])
		assert.Equal(t, img.Props[graph.PropIndex], img.Props["scene_id"])
	}
}

func TestMosaicLastValidWins(t *testing.T) {
	e := fixture(t)
	img, err := e.EvaluateImage(graph.LoadCollection(l8).Sort(graph.PropTimeStart, true).Mosaic())
	require.NoError(t, err)
	b, ok := img.Band("et_fraction")
	require.True(t, ok)
	assert.Equal(t, []float64{0.2, 0.2, 0.2, 0.2}, b.Data)

	img, err = e.EvaluateImage(graph.LoadCollection(l8).Filter(graph.LessThan("CLOUD_COVER_LAND", 50)).
		Sort(graph.PropTimeStart, true).Mosaic())
	require.NoError(t, err)
	b, _ = img.Band("et_fraction")
	assert.Equal(t, []float64{0.5, 0.6, 0.3, 0.8}, b.Data)
}

func TestReduce(t *testing.T) {
	e := fixture(t)
	low := graph.LoadCollection(l8).Filter(graph.LessThan("CLOUD_COVER_LAND", 50))

	sum, err := e.EvaluateImage(low.Sum())
	require.NoError(t, err)
	b, _ := sum.Band("et_fraction")
	assert.InDeltaSlice(t, []float64{0.6, 0.6, 0.3, 1.2}, b.Data, 1e-9)

	mean, err := e.EvaluateImage(low.Mean())
	require.NoError(t, err)
	b, _ = mean.Band("et_fraction")
	assert.InDeltaSlice(t, []float64{0.3, 0.6, 0.3, 0.6}, b.Data, 1e-9)
}

func TestImageAlgebra(t *testing.T) {
	e := New()
	e.MustAddImage("X", NewImage(map[string]any{graph.PropIndex: "a"}, nil, FloatBand("v", 1, 0, nan, 4)))
	a := graph.LoadImage("X/a")

	div, err := e.EvaluateImage(graph.ConstantImage(2).Divide(a))
	require.NoError(t, err)
	assert.Equal(t, "constant", div.Bands[0].Name)
	assert.Equal(t, 2.0, div.Bands[0].Data[0])
	assert.True(t, math.IsNaN(div.Bands[0].Data[1]))
	assert.True(t, math.IsNaN(div.Bands[0].Data[2]))
	assert.Equal(t, 0.5, div.Bands[0].Data[3])

	eq, err := e.EvaluateImage(a.Eq(graph.ConstantImage(4)))
	require.NoError(t, err)
	assert.Equal(t, compute.PrecisionInt, eq.Bands[0].Type)
	assert.Equal(t, 0.0, eq.Bands[0].Data[0])
	assert.Equal(t, 1.0, eq.Bands[0].Data[3])

	mask, err := e.EvaluateImage(a.Mask())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0, 1}, mask.Bands[0].Data)

	unmasked, err := e.EvaluateImage(a.Unmask(-1).ToInt32())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, -1, 4}, unmasked.Bands[0].Data)
	assert.Equal(t, compute.PrecisionInt, unmasked.Bands[0].Type)

	updated, err := e.EvaluateImage(graph.ConstantImage(7).UpdateMask(a))
	require.NoError(t, err)
	d := updated.Bands[0].Data
	assert.Equal(t, 7.0, d[0])
	assert.True(t, math.IsNaN(d[1]))
	assert.True(t, math.IsNaN(d[2]))

	_, err = e.EvaluateImage(a.Select("missing"))
	assert.Error(t, err)
}

func TestSaveAllJoin(t *testing.T) {
	e := fixture(t)
	target := graph.ConstantImage(0).Set(graph.PropTimeStart, float64(dateutil.Millis(dateutil.MustParseDate("2017-07-20"))))
	cond, err := graph.CompareFields(graph.OpGreaterThanOrEquals, graph.PropTimeStart, graph.PropTimeStart)
	require.NoError(t, err)
	window := graph.MaxDifference(float64(10*dateutil.Day.Milliseconds()), graph.PropTimeStart, graph.PropTimeStart)

	joined := graph.SaveAll(graph.FromImages(target), graph.LoadCollection(l8), graph.And(window, cond), "prev", graph.PropTimeStart, false)
	out, err := e.EvaluateCollection(joined)
	require.NoError(t, err)
	require.Len(t, out, 1)

	prev, err := e.EvaluateCollection(graph.FromImageList(joined.First().Get("prev")))
	require.NoError(t, err)
	assert.Equal(t, []string{"LC08_044033_20170716"}, indexes(prev))
}

func TestFilterBoundsAndGeometry(t *testing.T) {
	e := New()
	footprint := geom.NewPolygonFlat(geom.XY, []float64{-121, 38, -120, 38, -120, 39, -121, 39, -121, 38}, []int{10})
	e.MustAddImage(l8, NewImage(map[string]any{graph.PropIndex: "in"}, footprint, FloatBand("b", 1, 1, 1, 1)))
	e.MustAddImage(l8, NewImage(map[string]any{graph.PropIndex: "out"},
		geom.NewPolygonFlat(geom.XY, []float64{10, 10, 11, 10, 11, 11, 10, 11, 10, 10}, []int{10}),
		FloatBand("b", 1, 1, 1, 1)))

	pt, err := graph.NewGeometry(geom.NewPointFlat(geom.XY, []float64{-120.0005, 38.5}).SetSRID(4326))
	require.NoError(t, err)

	info, err := e.CollectionInfo(context.Background(), graph.LoadCollection(l8).FilterBounds(pt))
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, info.Indexes())

	far, err := graph.NewGeometry(geom.NewPointFlat(geom.XY, []float64{-119.99, 38.5}))
	require.NoError(t, err)
	info, err = e.CollectionInfo(context.Background(), graph.LoadCollection(l8).FilterBounds(far))
	require.NoError(t, err)
	assert.Empty(t, info.Features)

	info, err = e.CollectionInfo(context.Background(), graph.LoadCollection(l8).FilterBounds(far.Buffer(2000)))
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, info.Indexes())
}

func TestImageInfoAndExport(t *testing.T) {
	e := fixture(t)
	ctx := context.Background()
	img := graph.LoadImage(l8 + "/LC08_044033_20170716").Set("coll_id", l8)

	info, err := e.ImageInfo(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, l8+"/LC08_044033_20170716", info.ID)
	assert.Equal(t, "LC08_044033_20170716", info.Index())
	assert.Equal(t, l8, info.Properties["coll_id"])
	b, ok := info.Band("et_fraction")
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, b.Dimensions)
	assert.Equal(t, "EPSG:32610", b.CRS)

	task, err := e.StartExport(ctx, compute.ExportRequest{Image: img, Description: "LC08_044033_20170716", AssetID: "a/b"})
	require.NoError(t, err)
	assert.Equal(t, "READY", task.State)
	assert.NotEmpty(t, task.ID)

	exports := e.Exports()
	require.Len(t, exports, 1)
	assert.Equal(t, "a/b", exports[0].Request.AssetID)
	assert.Equal(t, l8, exports[0].Image.Props["coll_id"])

	_, err = e.StartExport(ctx, compute.ExportRequest{Image: graph.LoadImage("nope"), Description: "x"})
	assert.Error(t, err)
	assert.Len(t, e.Exports(), 1)
}

func TestModelFunc(t *testing.T) {
	double := func(src *Image, variables []string, args map[string]any) (*Image, error) {
		b, _ := src.Band("et_fraction")
		out := src.shallow()
		out.Bands = nil
		for _, v := range variables {
			nb := b.clone()
			nb.Name = v
			for p := range nb.Data {
				nb.Data[p] *= 2
			}
			out.Bands = append(out.Bands, nb)
		}
		out.Props["factor"] = args["factor"]
		return out, nil
	}
	e := New(WithModel(double))
	e.MustAddImage(l8, scene("LC08_044033_20170716", "2017-07-16", 10, 0.5, 0.5, 0.5, 0.5))

	args := graph.Dict(map[string]*graph.Node{"factor": graph.Constant(0.5)})
	out, err := e.EvaluateImage(graph.Model(graph.LoadImage(l8+"/LC08_044033_20170716"), []string{"et"}, args))
	require.NoError(t, err)
	assert.Equal(t, []string{"et"}, out.BandNames())
	assert.Equal(t, 1.0, out.Bands[0].Data[0])
	assert.Equal(t, 0.5, out.Props["factor"])
	assert.Equal(t, "LC08_044033_20170716", out.Props[graph.PropIndex])

	_, err = New().EvaluateImage(graph.Model(graph.ConstantImage(1), []string{"ndvi"}, nil))
	assert.Error(t, err)
}

func TestUnsupportedFunction(t *testing.T) {
	_, err := New().Evaluate(graph.Invoke("Image.frobnicate", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported function")
}

func TestContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fixture(t).CollectionInfo(ctx, graph.LoadCollection(l8))
	assert.Error(t, err)
}

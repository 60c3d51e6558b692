package interpolate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/localengine"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

const (
	scenesID = "LANDSAT/LC08/C02/T1_L2"
	refID    = "IDAHO_EPSCOR/GRIDMET"
)

var nan = localengine.Masked()

func day(s string) time.Time { return dateutil.MustParseDate(s) }

func addScene(t *testing.T, e *localengine.Engine, index string, acquired time.Time, etf, ndvi []float64) {
	t.Helper()
	require.NoError(t, e.AddImage(scenesID, localengine.NewImage(map[string]any{
		graph.PropIndex:     index,
		graph.PropTimeStart: dateutil.Millis(acquired),
	}, nil, localengine.FloatBand(VarETFraction, etf...), localengine.FloatBand(VarNDVI, ndvi...))))
}

// fixture holds two scenes eight days apart and a constant reference ET of 5.
func fixture(t *testing.T) *localengine.Engine {
	t.Helper()
	e := localengine.New()
	addScene(t, e, "LC08_044033_20170708", day("2017-07-08").Add(18*time.Hour),
		[]float64{0.2, 0.4, nan, nan}, []float64{0.5, 0.6, 0.7, 0.8})
	addScene(t, e, "LC08_044033_20170716", day("2017-07-16").Add(18*time.Hour),
		[]float64{0.6, nan, 0.3, nan}, []float64{0.7, 0.6, 0.5, 0.4})
	for d := day("2017-05-01"); d.Before(day("2017-10-01")); d = d.AddDate(0, 0, 1) {
		require.NoError(t, e.AddImage(refID, localengine.NewImage(map[string]any{
			graph.PropIndex:     dateutil.DayLabel(d),
			graph.PropTimeStart: dateutil.Millis(d),
		}, nil, localengine.FloatBand("eto", 5, 5, 5, 5))))
	}
	return e
}

type sceneCall struct {
	window dateutil.Window
	vars   []string
}

func scenes(calls *[]sceneCall) ScenesFunc {
	return func(w dateutil.Window, vars []string) (graph.Collection, error) {
		*calls = append(*calls, sceneCall{window: w, vars: vars})
		return graph.LoadCollection(scenesID).FilterDate(w.Start, w.End), nil
	}
}

func params(vars ...string) Params {
	return Params{
		Variables: vars,
		Interval:  IntervalCustom,
		Window:    dateutil.Window{Start: day("2017-07-01"), End: day("2017-08-01")},
		Dates:     dateutil.Grid{day("2017-07-12"), day("2017-07-16")},
		Days:      32,
		Source:    refID,
		Band:      "eto",
		Resample:  "nearest",
		Factor:    1,
	}
}

func band(t *testing.T, img *localengine.Image, name string) *localengine.Band {
	t.Helper()
	b, ok := img.Band(name)
	require.True(t, ok, "band %s missing from %v", name, img.BandNames())
	return b
}

func assertPixels(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "pixel %d: want masked, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "pixel %d", i)
	}
}

func TestCustomTargets(t *testing.T) {
	e := fixture(t)
	var calls []sceneCall
	coll, err := Build(params(VarET, VarETReference, VarETFraction, VarCount), scenes(&calls))
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, []string{VarETFraction}, calls[0].vars)
	assert.Equal(t, day("2017-06-10"), calls[0].window.Start)
	assert.Equal(t, day("2017-08-18"), calls[0].window.End)

	images, err := e.EvaluateCollection(coll)
	require.NoError(t, err)
	require.Len(t, images, 2)

	first := images[0]
	assert.Equal(t, "20170712", first.Props[graph.PropIndex])
	assert.Equal(t, "2017-07-12", first.Props["date"])
	assert.Equal(t, float64(dateutil.Millis(day("2017-07-12"))), first.Props[graph.PropTimeStart])
	assert.Equal(t, IntervalCustom, first.Props["t_interval"])
	assert.Equal(t, []string{VarET, VarETReference, VarETFraction, VarCount}, first.BandNames())

	// linear between the two scenes, carried where one side is missing
	assertPixels(t, []float64{0.4, 0.4, 0.3, nan}, band(t, first, VarETFraction).Data)
	assertPixels(t, []float64{2.0, 2.0, 1.5, nan}, band(t, first, VarET).Data)
	assertPixels(t, []float64{5, 5, 5, 5}, band(t, first, VarETReference).Data)
	assertPixels(t, []float64{2, 1, 1, 0}, band(t, first, VarCount).Data)

	// a scene on the target day brackets both sides and counts once
	second := images[1]
	assert.Equal(t, "20170716", second.Props[graph.PropIndex])
	assertPixels(t, []float64{0.6, 0.4, 0.3, nan}, band(t, second, VarETFraction).Data)
	assertPixels(t, []float64{1, 1, 1, 0}, band(t, second, VarCount).Data)
}

func TestBandTypes(t *testing.T) {
	e := fixture(t)
	var calls []sceneCall
	coll, err := Build(params(VarET, VarETReference, VarETFraction, VarCount), scenes(&calls))
	require.NoError(t, err)

	img, err := e.EvaluateImage(coll.First())
	require.NoError(t, err)
	assert.Equal(t, compute.PrecisionFloat, band(t, img, VarET).Type)
	assert.Equal(t, compute.PrecisionFloat, band(t, img, VarETReference).Type)
	assert.Equal(t, compute.PrecisionFloat, band(t, img, VarETFraction).Type)
	assert.Equal(t, compute.PrecisionInt, band(t, img, VarCount).Type)
}

func TestJoinsMatchFilters(t *testing.T) {
	e := fixture(t)
	vars := []string{VarET, VarETFraction, VarNDVI, VarCount}
	var calls []sceneCall

	filtered, err := Build(params(vars...), scenes(&calls))
	require.NoError(t, err)
	p := params(vars...)
	p.UseJoins = true
	joined, err := Build(p, scenes(&calls))
	require.NoError(t, err)
	assert.Equal(t, []string{VarETFraction, VarNDVI}, calls[0].vars)

	a, err := e.EvaluateCollection(filtered)
	require.NoError(t, err)
	b, err := e.EvaluateCollection(joined)
	require.NoError(t, err)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Props[graph.PropIndex], b[i].Props[graph.PropIndex])
		require.Equal(t, a[i].BandNames(), b[i].BandNames())
		for _, name := range a[i].BandNames() {
			assertPixels(t, band(t, a[i], name).Data, band(t, b[i], name).Data)
		}
	}
}

func TestDailyInterval(t *testing.T) {
	e := fixture(t)
	p := params(VarETFraction)
	p.Interval = IntervalDaily
	p.Window = dateutil.Window{Start: day("2017-07-10"), End: day("2017-07-13")}
	var calls []sceneCall

	coll, err := Build(p, scenes(&calls))
	require.NoError(t, err)
	info, err := e.CollectionInfo(context.Background(), coll)
	require.NoError(t, err)
	assert.Equal(t, []string{"20170710", "20170711", "20170712"}, info.Indexes())

	images, err := e.EvaluateCollection(coll)
	require.NoError(t, err)
	assertPixels(t, []float64{0.3, 0.4, 0.3, nan}, band(t, images[0], VarETFraction).Data)
}

func TestNoScenesKeepsBands(t *testing.T) {
	e := fixture(t)
	p := params(VarET, VarCount)
	p.Dates = dateutil.Grid{day("2017-09-20")}
	p.Days = 4
	var calls []sceneCall

	coll, err := Build(p, scenes(&calls))
	require.NoError(t, err)
	images, err := e.EvaluateCollection(coll)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, []string{VarET, VarCount}, images[0].BandNames())
	assertPixels(t, []float64{nan, nan, nan, nan}, band(t, images[0], VarET).Data)
	assertPixels(t, []float64{0, 0, 0, 0}, band(t, images[0], VarCount).Data)
}

func TestMonthly(t *testing.T) {
	e := fixture(t)
	p := params(VarET, VarETReference, VarETFraction, VarCount)
	p.Interval = IntervalMonthly
	var calls []sceneCall

	coll, err := Build(p, scenes(&calls))
	require.NoError(t, err)
	images, err := e.EvaluateCollection(coll)
	require.NoError(t, err)
	require.Len(t, images, 1)

	m := images[0]
	assert.Equal(t, "201707", m.Props[graph.PropIndex])
	assert.Equal(t, IntervalMonthly, m.Props["t_interval"])
	// pixel 0: 8 days at 0.2, 7 ramp days summing 2.8, 16 days at 0.6
	et := band(t, m, VarET).Data
	assert.InDelta(t, 70.0, et[0], 1e-6)
	assert.True(t, math.IsNaN(et[3]))
	assert.InDelta(t, 155.0, band(t, m, VarETReference).Data[0], 1e-6)
	assert.InDelta(t, 70.0/155.0, band(t, m, VarETFraction).Data[0], 1e-6)
	assertPixels(t, []float64{2, 1, 1, 0}, band(t, m, VarCount).Data)
	assert.Equal(t, compute.PrecisionInt, band(t, m, VarCount).Type)
}

func TestBuildRejects(t *testing.T) {
	var calls []sceneCall
	p := params(VarET)
	p.Days = 0
	_, err := Build(p, scenes(&calls))
	assert.Error(t, err)

	p = params(VarET)
	p.Dates = nil
	_, err = Build(p, scenes(&calls))
	assert.Error(t, err)
	assert.Empty(t, calls)
}

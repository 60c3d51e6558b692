// Package interpolate builds the graph that turns a sparse stream of scene
// ET fractions into a regular series of daily, monthly or custom-date
// images. Scene brackets are found per target day and per pixel, and the
// reference ET raster is multiplied back in after interpolation.
package interpolate

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
)

// Time intervals.
const (
	IntervalDaily   = "daily"
	IntervalMonthly = "monthly"
	IntervalCustom  = "custom"
)

// MethodLinear is the only supported interpolation method.
const MethodLinear = "linear"

// Output variables.
const (
	VarET          = "et"
	VarETReference = "et_reference"
	VarETFraction  = "et_fraction"
	VarNDVI        = "ndvi"
	VarCount       = "count"
)

// Scene properties and bands added during preparation.
const (
	PropInterpTime = "interp_time"
	BandTime       = "time"
)

// Variables lists every variable an interpolated image can carry.
var Variables = []string{VarET, VarETReference, VarETFraction, VarNDVI, VarCount}

// Params configures one interpolation. Values are assumed validated.
type Params struct {
	Variables []string
	Interval  string
	// Window is the request range; daily and monthly grids cover it.
	Window dateutil.Window
	// Dates are the custom targets.
	Dates    dateutil.Grid
	Days     int
	UseJoins bool
	Source   string
	Band     string
	Resample string
	Factor   float64
}

// ScenesFunc builds the scene stream for a window with the given model
// variables.
type ScenesFunc func(w dateutil.Window, variables []string) (graph.Collection, error)

var dayMillis = float64(dateutil.Day.Milliseconds())

// Targets returns the day starts interpolated for p.
func Targets(p Params) dateutil.Grid {
	if p.Interval == IntervalCustom {
		return p.Dates
	}
	return dateutil.DailyGrid(p.Window)
}

// Build returns the interpolated collection.
func Build(p Params, scenes ScenesFunc) (graph.Collection, error) {
	targets := Targets(p)
	if len(targets) == 0 {
		return graph.Collection{}, eris.New("interpolate: no target dates")
	}
	if p.Days <= 0 {
		return graph.Collection{}, eris.Errorf("interpolate: days must be positive, got %d", p.Days)
	}

	span := time.Duration(p.Days) * dateutil.Day
	buildWindow := dateutil.Window{Start: targets.First().Add(-span), End: targets.Last().Add(span + dateutil.Day)}
	sceneVars := sceneVariables(p.Variables)

	src, err := scenes(buildWindow, sceneVars)
	if err != nil {
		return graph.Collection{}, eris.Wrap(err, "interpolate: build scenes")
	}

	zap.L().Debug("interpolate: plan",
		zap.String("interval", p.Interval),
		zap.Int("targets", len(targets)),
		zap.String("scene_window", buildWindow.String()),
		zap.Strings("variables", p.Variables),
		zap.Bool("use_joins", p.UseJoins),
	)

	pl := &planner{p: p, prep: prepare(src, sceneVars), sceneVars: sceneVars}
	if p.Interval != IntervalMonthly {
		return pl.daily(targets, p.Variables), nil
	}
	return pl.monthly(targets), nil
}

// sceneVariables are the model outputs needed from every scene.
func sceneVariables(vars []string) []string {
	out := []string{VarETFraction}
	for _, v := range vars {
		if v == VarNDVI {
			return append(out, VarNDVI)
		}
	}
	return out
}

// prepare selects the scene variables, masks them by the ET fraction mask,
// adds a time band and stamps the acquisition day as interp_time.
func prepare(src graph.Collection, vars []string) graph.Collection {
	return src.Map(func(img graph.Image) graph.Image {
		day := img.GetNumber(graph.PropTimeStart).Divide(graph.Num(dayMillis)).Floor().Multiply(graph.Num(dayMillis))
		mask := img.Select(VarETFraction).Mask()
		timeBand := graph.ConstantImageOf(day).Rename(BandTime).ToFloat()
		return img.Select(vars...).
			AddBands(timeBand).
			UpdateMask(mask).
			Set(PropInterpTime, day)
	})
}

// maskedTemplate is a fully masked float image with the given bands. Merged
// ahead of a collection it keeps mosaics and sums well-formed when the
// collection is empty.
func maskedTemplate(names ...string) graph.Image {
	img := graph.ConstantImage(0).Rename(names[0])
	for _, n := range names[1:] {
		img = img.AddBands(graph.ConstantImage(0).Rename(n))
	}
	return img.UpdateMask(graph.ConstantImage(0)).ToFloat()
}

type planner struct {
	p         Params
	prep      graph.Collection
	sceneVars []string
}

func (pl *planner) label(t time.Time) string {
	if pl.p.Interval == IntervalMonthly {
		return dateutil.MonthLabel(t)
	}
	return dateutil.DayLabel(t)
}

func (pl *planner) targetCollection(targets dateutil.Grid) graph.Collection {
	images := make([]graph.Image, len(targets))
	for i, t := range targets {
		images[i] = graph.ConstantImage(0).SetMulti(map[string]any{
			graph.PropIndex:     dateutil.DayLabel(t),
			graph.PropTimeStart: float64(dateutil.Millis(t)),
			"date":              dateutil.Format(t),
		})
	}
	return graph.FromImages(images...)
}

// daily maps every target day to an interpolated image holding vars.
func (pl *planner) daily(targets dateutil.Grid, vars []string) graph.Collection {
	span := float64(pl.p.Days) * dayMillis
	tc := pl.targetCollection(targets)

	if !pl.p.UseJoins {
		return tc.Map(func(target graph.Image) graph.Image {
			t := target.GetNumber(graph.PropTimeStart)
			prev := pl.prep.Filter(graph.And(
				graph.GreaterThanOrEquals(PropInterpTime, t.Subtract(graph.Num(span))),
				graph.LessThanOrEquals(PropInterpTime, t),
			))
			next := pl.prep.Filter(graph.And(
				graph.GreaterThanOrEquals(PropInterpTime, t),
				graph.LessThanOrEquals(PropInterpTime, t.Add(graph.Num(span))),
			))
			return pl.interpolate(target, prev, next, vars)
		})
	}

	within := graph.MaxDifference(span, graph.PropTimeStart, PropInterpTime)
	before, _ := graph.CompareFields(graph.OpGreaterThanOrEquals, graph.PropTimeStart, PropInterpTime)
	after, _ := graph.CompareFields(graph.OpLessThanOrEquals, graph.PropTimeStart, PropInterpTime)
	joined := graph.SaveAll(tc, pl.prep, graph.And(within, before), "prev", PropInterpTime, true)
	joined = graph.SaveAll(joined, pl.prep, graph.And(within, after), "next", PropInterpTime, false)
	return joined.Map(func(target graph.Image) graph.Image {
		return pl.interpolate(target, graph.FromImageList(target.Get("prev")), graph.FromImageList(target.Get("next")), vars)
	})
}

// interpolate composes the output image for one target day.
func (pl *planner) interpolate(target graph.Image, prev, next graph.Collection, vars []string) graph.Image {
	t := target.GetNumber(graph.PropTimeStart)
	template := maskedTemplate(append(append([]string(nil), pl.sceneVars...), BandTime)...)

	// nearest valid scene per pixel: the mosaic's last valid image wins
	prevImg := graph.FromImages(template).Merge(prev.Sort(PropInterpTime, true)).Mosaic()
	nextImg := graph.FromImages(template).Merge(next.Sort(PropInterpTime, false)).Mosaic()
	prevT := prevImg.Select(BandTime)
	nextT := nextImg.Select(BandTime)

	// masked where either side is missing or both are the same day
	weight := graph.ConstantImageOf(t).Subtract(prevT).Divide(nextT.Subtract(prevT))

	values := make(map[string]graph.Image, len(pl.sceneVars))
	for _, v := range pl.sceneVars {
		pv := prevImg.Select(v)
		nv := nextImg.Select(v)
		interp := pv.Add(nv.Subtract(pv).Multiply(weight))
		values[v] = graph.FromImages(nv, pv, interp).Mosaic().Rename(v).ToFloat()
	}

	bands := make(map[string]graph.Image, len(vars))
	etf := values[VarETFraction]
	var ref graph.Image
	if needs(vars, VarET, VarETReference) {
		ref = pl.reference(t)
	}
	for _, v := range vars {
		switch v {
		case VarETFraction:
			bands[v] = etf
		case VarNDVI:
			bands[v] = values[VarNDVI]
		case VarETReference:
			bands[v] = ref
		case VarET:
			bands[v] = etf.Multiply(ref).Rename(VarET).ToFloat()
		case VarCount:
			bands[v] = prevT.Mask().Add(nextT.Mask()).
				Subtract(prevT.Eq(nextT).Unmask(0)).
				Rename(VarCount).ToInt32()
		}
	}

	return stack(vars, bands).SetMulti(map[string]any{
		graph.PropIndex:     target.Get(graph.PropIndex),
		graph.PropTimeStart: t,
		"date":              target.Get("date"),
		"interp_days":       float64(pl.p.Days),
		"t_interval":        pl.p.Interval,
	})
}

// reference is the scaled reference ET raster for the day starting at t.
func (pl *planner) reference(t graph.Number) graph.Image {
	img := graph.LoadCollection(pl.p.Source).
		Filter(graph.DateNodes(t, t.Add(graph.Num(dayMillis)))).
		First().
		Select(pl.p.Band)
	if pl.p.Resample != "" && pl.p.Resample != "nearest" {
		img = img.Resample(pl.p.Resample)
	}
	return img.Multiply(graph.ConstantImage(pl.p.Factor)).Rename(VarETReference).ToFloat()
}

// monthly aggregates the daily series of each month intersecting the window.
func (pl *planner) monthly(days dateutil.Grid) graph.Collection {
	dailyVars := []string{VarET, VarETReference}
	if needs(pl.p.Variables, VarNDVI) {
		dailyVars = append(dailyVars, VarNDVI)
	}
	daily := pl.daily(days, dailyVars)

	months := dateutil.MonthlyGrid(pl.p.Window)
	images := make([]graph.Image, 0, len(months))
	for _, m := range months {
		w, ok := pl.p.Window.Intersect(dateutil.Window{Start: m, End: m.AddDate(0, 1, 0)})
		if !ok {
			continue
		}
		inMonth := daily.FilterDate(w.Start, w.End)
		etSum := inMonth.Select(VarET).Sum().ToFloat()
		refSum := inMonth.Select(VarETReference).Sum().ToFloat()

		bands := make(map[string]graph.Image, len(pl.p.Variables))
		for _, v := range pl.p.Variables {
			switch v {
			case VarET:
				bands[v] = etSum
			case VarETReference:
				bands[v] = refSum
			case VarETFraction:
				bands[v] = etSum.Divide(refSum).Rename(VarETFraction).ToFloat()
			case VarNDVI:
				bands[v] = inMonth.Select(VarNDVI).Mean().ToFloat()
			case VarCount:
				scenes := pl.prep.FilterDate(w.Start, w.End).Map(func(img graph.Image) graph.Image {
					return img.Select(BandTime).Mask().Rename(VarCount)
				})
				bands[v] = graph.FromImages(graph.ConstantImage(0).Rename(VarCount)).Merge(scenes).Sum().ToInt32()
			}
		}
		images = append(images, stack(pl.p.Variables, bands).SetMulti(map[string]any{
			graph.PropIndex:     pl.label(m),
			graph.PropTimeStart: float64(dateutil.Millis(m)),
			"date":              dateutil.Format(m),
			"interp_days":       float64(pl.p.Days),
			"t_interval":        pl.p.Interval,
		}))
	}
	return graph.FromImages(images...)
}

func stack(vars []string, bands map[string]graph.Image) graph.Image {
	img := bands[vars[0]]
	for _, v := range vars[1:] {
		img = img.AddBands(bands[v])
	}
	return img
}

func needs(vars []string, names ...string) bool {
	for _, v := range vars {
		for _, n := range names {
			if v == n {
				return true
			}
		}
	}
	return false
}

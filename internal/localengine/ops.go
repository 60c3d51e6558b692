package localengine

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

var ops map[string]opFunc

func init() {
	ops = map[string]opFunc{
		graph.FnCollectionLoad:       opCollectionLoad,
		graph.FnCollectionFromImages: opFromImages,
		graph.FnCollectionFilter:     opCollectionFilter,
		graph.FnCollectionMap:        opCollectionMap,
		graph.FnCollectionMerge:      opCollectionMerge,
		graph.FnCollectionSort:       opCollectionSort,
		graph.FnCollectionDistinct:   opCollectionDistinct,
		graph.FnCollectionFirst:      opCollectionFirst,
		graph.FnCollectionMosaic:     opMosaic,
		graph.FnCollectionReduce:     opReduce,
		graph.FnJoinSaveAll:          opSaveAll,

		graph.FnImageLoad:       opImageLoad,
		graph.FnImageConstant:   opImageConstant,
		graph.FnImageSelect:     opImageSelect,
		graph.FnImageRename:     opImageRename,
		graph.FnImageAddBands:   opImageAddBands,
		graph.FnImageAdd:        binaryOp(func(a, b float64) float64 { return a + b }, false),
		graph.FnImageSubtract:   binaryOp(func(a, b float64) float64 { return a - b }, false),
		graph.FnImageMultiply:   binaryOp(func(a, b float64) float64 { return a * b }, false),
		graph.FnImageDivide:     binaryOp(divide, true),
		graph.FnImageEq:         opImageEq,
		graph.FnImageMask:       opImageMask,
		graph.FnImageUpdateMask: opImageUpdateMask,
		graph.FnImageUnmask:     opImageUnmask,
		graph.FnImageToInt32:    opImageToInt32,
		graph.FnImageToFloat:    opImageToFloat,
		graph.FnImageResample:   opImageResample,

		graph.FnElementGet:      opElementGet,
		graph.FnElementSet:      opElementSet,
		graph.FnElementSetMulti: opElementSetMulti,

		graph.FnNumberAdd:      numberOp(func(a, b float64) float64 { return a + b }),
		graph.FnNumberSubtract: numberOp(func(a, b float64) float64 { return a - b }),
		graph.FnNumberMultiply: numberOp(func(a, b float64) float64 { return a * b }),
		graph.FnNumberDivide:   numberOp(func(a, b float64) float64 { return a / b }),
		graph.FnNumberFloor:    opNumberFloor,

		graph.FnGeometry:       opGeometry,
		graph.FnGeometryBuffer: opGeometryBuffer,
		graph.FnModelCompute:   opModelCompute,
	}
	for fn, op := range filterOps {
		ops[fn] = op
	}
}

// Collections.

func opCollectionLoad(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	id, err := ev.str(n, "id", sc)
	if err != nil {
		return nil, err
	}
	images, ok := ev.e.collections[id]
	if !ok {
		return nil, eris.Errorf("collection %q not found", id)
	}
	return append([]*Image(nil), images...), nil
}

func opFromImages(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	return ev.collection(n, "images", sc)
}

func opCollectionFilter(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	f, err := ev.filter(n, "filter", sc)
	if err != nil {
		return nil, err
	}
	var out []*Image
	for _, img := range images {
		ok, err := f(img, img)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, img)
		}
	}
	return out, nil
}

func opCollectionMap(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	v, err := ev.arg(n, "baseAlgorithm", sc)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(*closure)
	if !ok {
		return nil, eris.Errorf("baseAlgorithm is %T, want function", v)
	}
	out := make([]*Image, 0, len(images))
	for _, img := range images {
		r, err := ev.call(fn, img)
		if err != nil {
			return nil, err
		}
		mapped, err := asImage(r)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

func opCollectionMerge(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	a, err := ev.collection(n, "collection1", sc)
	if err != nil {
		return nil, err
	}
	b, err := ev.collection(n, "collection2", sc)
	if err != nil {
		return nil, err
	}
	out := make([]*Image, 0, len(a)+len(b))
	return append(append(out, a...), b...), nil
}

func opCollectionSort(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	key, err := ev.str(n, "key", sc)
	if err != nil {
		return nil, err
	}
	asc, err := ev.boolean(n, "ascending", sc, true)
	if err != nil {
		return nil, err
	}
	return sortImages(images, key, asc), nil
}

// sortImages is stable in both directions. Images missing key sort last.
func sortImages(images []*Image, key string, ascending bool) []*Image {
	out := append([]*Image(nil), images...)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].Props[key]
		b, bok := out[j].Props[key]
		if !aok || !bok {
			return aok && !bok
		}
		c := compareValues(a, b)
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

func opCollectionDistinct(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	props, err := ev.strs(n, "properties", sc)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(images))
	var out []*Image
	for _, img := range images {
		key := ""
		for _, p := range props {
			key += fmt.Sprintf("%v\x00", img.Props[p])
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, img)
	}
	return out, nil
}

func opCollectionFirst(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, eris.New("collection is empty")
	}
	return images[0], nil
}

// opMosaic keeps the band layout of the first image; for every pixel the
// last image holding a valid value wins.
func opMosaic(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	out := &Image{Props: map[string]any{}}
	if len(images) == 0 {
		return out, nil
	}
	px := ev.e.grid.Pixels()
	for _, b := range images[0].Bands {
		data := make([]float64, px)
		for p := range data {
			data[p] = math.NaN()
		}
		for _, img := range images {
			src, ok := img.Band(b.Name)
			if !ok {
				continue
			}
			for p, v := range src.Data {
				if !math.IsNaN(v) {
					data[p] = v
				}
			}
		}
		out.Bands = append(out.Bands, &Band{Name: b.Name, Type: b.Type, Data: data, Resample: b.Resample})
	}
	return out, nil
}

func opReduce(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	images, err := ev.collection(n, "collection", sc)
	if err != nil {
		return nil, err
	}
	reducer, err := ev.str(n, "reducer", sc)
	if err != nil {
		return nil, err
	}
	if reducer != graph.ReducerSum && reducer != graph.ReducerMean {
		return nil, eris.Errorf("unknown reducer %q", reducer)
	}
	out := &Image{Props: map[string]any{}}
	if len(images) == 0 {
		return out, nil
	}
	px := ev.e.grid.Pixels()
	for _, b := range images[0].Bands {
		sum := make([]float64, px)
		cnt := make([]int, px)
		for _, img := range images {
			src, ok := img.Band(b.Name)
			if !ok {
				continue
			}
			for p, v := range src.Data {
				if !math.IsNaN(v) {
					sum[p] += v
					cnt[p]++
				}
			}
		}
		typ := b.Type
		for p := range sum {
			switch {
			case cnt[p] == 0:
				sum[p] = math.NaN()
			case reducer == graph.ReducerMean:
				sum[p] /= float64(cnt[p])
			}
		}
		if reducer == graph.ReducerMean {
			typ = compute.PrecisionFloat
		}
		out.Bands = append(out.Bands, &Band{Name: b.Name, Type: typ, Data: sum})
	}
	return out, nil
}

// opSaveAll attaches to every primary image the list of secondary images
// matching the condition, ordered by the secondary ordering property.
func opSaveAll(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	primary, err := ev.collection(n, "primary", sc)
	if err != nil {
		return nil, err
	}
	secondary, err := ev.collection(n, "secondary", sc)
	if err != nil {
		return nil, err
	}
	cond, err := ev.filter(n, "condition", sc)
	if err != nil {
		return nil, err
	}
	key, err := ev.str(n, "matchesKey", sc)
	if err != nil {
		return nil, err
	}
	ordering, err := ev.str(n, "ordering", sc)
	if err != nil {
		return nil, err
	}
	asc, err := ev.boolean(n, "ascending", sc, true)
	if err != nil {
		return nil, err
	}

	out := make([]*Image, 0, len(primary))
	for _, p := range primary {
		var matches []*Image
		for _, s := range secondary {
			ok, err := cond(p, s)
			if err != nil {
				return nil, err
			}
			if ok {
				matches = append(matches, s)
			}
		}
		matches = sortImages(matches, ordering, asc)
		list := make([]any, len(matches))
		for i, m := range matches {
			list[i] = m
		}
		joined := p.shallow()
		joined.Props[key] = list
		out = append(out, joined)
	}
	return out, nil
}

// Images.

func opImageLoad(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	id, err := ev.str(n, "id", sc)
	if err != nil {
		return nil, err
	}
	for _, cid := range ev.e.order {
		for _, img := range ev.e.collections[cid] {
			if img.Props[graph.PropID] == id {
				return img, nil
			}
		}
	}
	return nil, eris.Errorf("image %q not found", id)
}

func opImageConstant(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	v, err := ev.number(n, "value", sc)
	if err != nil {
		return nil, err
	}
	data := make([]float64, ev.e.grid.Pixels())
	for p := range data {
		data[p] = v
	}
	typ := compute.PrecisionFloat
	if v == math.Trunc(v) {
		typ = compute.PrecisionInt
	}
	return &Image{Props: map[string]any{}, Bands: []*Band{{Name: "constant", Type: typ, Data: data}}}, nil
}

func opImageSelect(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "input", sc)
	if err != nil {
		return nil, err
	}
	names, err := ev.strs(n, "bandSelectors", sc)
	if err != nil {
		return nil, err
	}
	out := img.shallow()
	out.Bands = make([]*Band, 0, len(names))
	for _, name := range names {
		b, ok := img.Band(name)
		if !ok {
			return nil, eris.Errorf("band %q not found, have %v", name, img.BandNames())
		}
		out.Bands = append(out.Bands, b)
	}
	return out, nil
}

func opImageRename(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "input", sc)
	if err != nil {
		return nil, err
	}
	names, err := ev.strs(n, "names", sc)
	if err != nil {
		return nil, err
	}
	if len(names) != len(img.Bands) {
		return nil, eris.Errorf("rename %d bands with %d names", len(img.Bands), len(names))
	}
	out := img.shallow()
	for i, b := range img.Bands {
		nb := *b
		nb.Name = names[i]
		out.Bands[i] = &nb
	}
	return out, nil
}

func opImageAddBands(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	dst, err := ev.image(n, "dstImg", sc)
	if err != nil {
		return nil, err
	}
	src, err := ev.image(n, "srcImg", sc)
	if err != nil {
		return nil, err
	}
	out := dst.shallow()
	for _, b := range src.Bands {
		if _, dup := dst.Band(b.Name); dup {
			return nil, eris.Errorf("duplicate band %q", b.Name)
		}
		out.Bands = append(out.Bands, b)
	}
	return out, nil
}

func divide(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return a / b
}

// pairBands matches bands of two images: equal counts pair by position, a
// single band is broadcast against every band of the other image.
func pairBands(a, b *Image) ([][2]*Band, []string, error) {
	switch {
	case len(a.Bands) == len(b.Bands):
		out := make([][2]*Band, len(a.Bands))
		names := make([]string, len(a.Bands))
		for i := range a.Bands {
			out[i] = [2]*Band{a.Bands[i], b.Bands[i]}
			names[i] = a.Bands[i].Name
		}
		return out, names, nil
	case len(b.Bands) == 1:
		out := make([][2]*Band, len(a.Bands))
		names := make([]string, len(a.Bands))
		for i := range a.Bands {
			out[i] = [2]*Band{a.Bands[i], b.Bands[0]}
			names[i] = a.Bands[i].Name
		}
		return out, names, nil
	case len(a.Bands) == 1:
		out := make([][2]*Band, len(b.Bands))
		names := make([]string, len(b.Bands))
		for i := range b.Bands {
			out[i] = [2]*Band{a.Bands[0], b.Bands[i]}
			names[i] = b.Bands[i].Name
		}
		return out, names, nil
	default:
		return nil, nil, eris.Errorf("band count mismatch: %d vs %d", len(a.Bands), len(b.Bands))
	}
}

func binaryOp(fn func(a, b float64) float64, float bool) opFunc {
	return func(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
		return pixelwise(ev, n, sc, fn, func(a, b *Band) string {
			if !float && a.Type == compute.PrecisionInt && b.Type == compute.PrecisionInt {
				return compute.PrecisionInt
			}
			return compute.PrecisionFloat
		})
	}
}

func opImageEq(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	eq := func(a, b float64) float64 {
		if a == b {
			return 1
		}
		return 0
	}
	return pixelwise(ev, n, sc, eq, func(_, _ *Band) string { return compute.PrecisionInt })
}

func pixelwise(ev *evaluator, n *graph.Node, sc *scope, fn func(a, b float64) float64, typeOf func(a, b *Band) string) (any, error) {
	a, err := ev.image(n, "image1", sc)
	if err != nil {
		return nil, err
	}
	b, err := ev.image(n, "image2", sc)
	if err != nil {
		return nil, err
	}
	pairs, names, err := pairBands(a, b)
	if err != nil {
		return nil, err
	}
	out := a.shallow()
	out.Bands = make([]*Band, len(pairs))
	for i, pr := range pairs {
		data := make([]float64, len(pr[0].Data))
		for p := range data {
			x, y := pr[0].Data[p], pr[1].Data[p]
			if math.IsNaN(x) || math.IsNaN(y) {
				data[p] = math.NaN()
				continue
			}
			data[p] = fn(x, y)
		}
		out.Bands[i] = &Band{Name: names[i], Type: typeOf(pr[0], pr[1]), Data: data, Resample: pr[0].Resample}
	}
	return out, nil
}

func mapBands(img *Image, typ string, fn func(v float64) float64) *Image {
	out := img.shallow()
	for i, b := range img.Bands {
		nb := b.clone()
		if typ != "" {
			nb.Type = typ
		}
		for p, v := range nb.Data {
			nb.Data[p] = fn(v)
		}
		out.Bands[i] = nb
	}
	return out
}

func opImageMask(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "image", sc)
	if err != nil {
		return nil, err
	}
	return mapBands(img, compute.PrecisionInt, func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return 1
	}), nil
}

func opImageUpdateMask(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "image", sc)
	if err != nil {
		return nil, err
	}
	mask, err := ev.image(n, "mask", sc)
	if err != nil {
		return nil, err
	}
	if len(mask.Bands) != 1 && len(mask.Bands) != len(img.Bands) {
		return nil, eris.Errorf("mask has %d bands, image has %d", len(mask.Bands), len(img.Bands))
	}
	out := img.shallow()
	for i, b := range img.Bands {
		m := mask.Bands[0]
		if len(mask.Bands) > 1 {
			m = mask.Bands[i]
		}
		nb := b.clone()
		for p := range nb.Data {
			if mv := m.Data[p]; math.IsNaN(mv) || mv == 0 {
				nb.Data[p] = math.NaN()
			}
		}
		out.Bands[i] = nb
	}
	return out, nil
}

func opImageUnmask(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "input", sc)
	if err != nil {
		return nil, err
	}
	fill, err := ev.number(n, "value", sc)
	if err != nil {
		return nil, err
	}
	return mapBands(img, "", func(v float64) float64 {
		if math.IsNaN(v) {
			return fill
		}
		return v
	}), nil
}

func opImageToInt32(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "value", sc)
	if err != nil {
		return nil, err
	}
	return mapBands(img, compute.PrecisionInt, math.Trunc), nil
}

func opImageToFloat(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "value", sc)
	if err != nil {
		return nil, err
	}
	return mapBands(img, compute.PrecisionFloat, func(v float64) float64 { return v }), nil
}

var resampleModes = map[string]bool{"nearest": true, "bilinear": true, "bicubic": true}

// opImageResample only records the kernel: every image shares one grid.
func opImageResample(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "image", sc)
	if err != nil {
		return nil, err
	}
	mode, err := ev.str(n, "mode", sc)
	if err != nil {
		return nil, err
	}
	if !resampleModes[mode] {
		return nil, eris.Errorf("unknown resampling mode %q", mode)
	}
	out := img.shallow()
	for i, b := range img.Bands {
		nb := *b
		nb.Resample = mode
		out.Bands[i] = &nb
	}
	return out, nil
}

// Elements.

func opElementGet(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "object", sc)
	if err != nil {
		return nil, err
	}
	key, err := ev.str(n, "property", sc)
	if err != nil {
		return nil, err
	}
	return img.Props[key], nil
}

func opElementSet(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "object", sc)
	if err != nil {
		return nil, err
	}
	key, err := ev.str(n, "key", sc)
	if err != nil {
		return nil, err
	}
	v, err := ev.arg(n, "value", sc)
	if err != nil {
		return nil, err
	}
	out := img.shallow()
	out.Props[key] = v
	return out, nil
}

func opElementSetMulti(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	img, err := ev.image(n, "object", sc)
	if err != nil {
		return nil, err
	}
	v, err := ev.arg(n, "properties", sc)
	if err != nil {
		return nil, err
	}
	props, ok := v.(map[string]any)
	if !ok {
		return nil, eris.Errorf("properties is %T, want dictionary", v)
	}
	out := img.shallow()
	for k, x := range props {
		out.Props[k] = x
	}
	return out, nil
}

// Numbers.

func numberOp(fn func(a, b float64) float64) opFunc {
	return func(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
		a, err := ev.number(n, "left", sc)
		if err != nil {
			return nil, err
		}
		b, err := ev.number(n, "right", sc)
		if err != nil {
			return nil, err
		}
		return fn(a, b), nil
	}
}

func opNumberFloor(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	v, err := ev.number(n, "input", sc)
	if err != nil {
		return nil, err
	}
	return math.Floor(v), nil
}

// Geometry.

func opGeometry(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	v, err := ev.arg(n, "geoJson", sc)
	if err != nil {
		return nil, err
	}
	return graph.DecodeGeoJSON(v)
}

const metersPerDegree = 111320.0

// opGeometryBuffer approximates a buffer by growing the bounding box.
func opGeometryBuffer(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	v, err := ev.arg(n, "geometry", sc)
	if err != nil {
		return nil, err
	}
	g, ok := v.(geom.T)
	if !ok {
		return nil, eris.Errorf("geometry is %T", v)
	}
	meters, err := ev.number(n, "distance", sc)
	if err != nil {
		return nil, err
	}
	b := g.Bounds()
	lat := (b.Min(1) + b.Max(1)) / 2
	dy := meters / metersPerDegree
	dx := dy / math.Max(math.Cos(lat*math.Pi/180), 1e-6)
	x0, y0, x1, y1 := b.Min(0)-dx, b.Min(1)-dy, b.Max(0)+dx, b.Max(1)+dy
	return geom.NewPolygonFlat(geom.XY, []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}, []int{10}), nil
}

// Model.

func opModelCompute(ev *evaluator, n *graph.Node, sc *scope) (any, error) {
	src, err := ev.image(n, "image", sc)
	if err != nil {
		return nil, err
	}
	vars, err := ev.strs(n, "variables", sc)
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	if n.Arg("arguments") != nil {
		v, err := ev.arg(n, "arguments", sc)
		if err != nil {
			return nil, err
		}
		if m, ok := v.(map[string]any); ok {
			args = m
		}
	}
	out, err := ev.e.model(src, vars, args)
	if err != nil {
		return nil, err
	}
	if err := ev.e.checkImage(out); err != nil {
		return nil, err
	}
	return out, nil
}

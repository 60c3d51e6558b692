package localengine

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

// Grid is the pixel lattice shared by every image in an engine.
type Grid struct {
	Width     int
	Height    int
	CRS       string
	Transform []float64
}

// Pixels returns the number of cells in the grid.
func (g Grid) Pixels() int { return g.Width * g.Height }

// DefaultGrid is a 2x2 UTM lattice at 30 m.
func DefaultGrid() Grid {
	return Grid{Width: 2, Height: 2, CRS: "EPSG:32610", Transform: []float64{30, 0, 452385, 0, -30, 4264515}}
}

// Band is one raster layer. Masked pixels hold NaN.
type Band struct {
	Name     string
	Type     string
	Data     []float64
	Resample string
}

// FloatBand builds a floating point band.
func FloatBand(name string, data ...float64) *Band {
	return &Band{Name: name, Type: compute.PrecisionFloat, Data: append([]float64(nil), data...)}
}

// IntBand builds an integer band.
func IntBand(name string, data ...float64) *Band {
	return &Band{Name: name, Type: compute.PrecisionInt, Data: append([]float64(nil), data...)}
}

// Masked is the pixel value of a masked cell.
func Masked() float64 { return math.NaN() }

func (b *Band) clone() *Band {
	out := *b
	out.Data = append([]float64(nil), b.Data...)
	return &out
}

// Image is an evaluated raster with properties and an optional footprint.
type Image struct {
	Props     map[string]any
	Bands     []*Band
	Footprint geom.T
}

// NewImage builds an image. Numeric properties are normalized to float64.
func NewImage(props map[string]any, footprint geom.T, bands ...*Band) *Image {
	img := &Image{Props: make(map[string]any, len(props)), Footprint: footprint, Bands: bands}
	for k, v := range props {
		if f, ok := toFloat(v); ok {
			img.Props[k] = f
			continue
		}
		img.Props[k] = v
	}
	return img
}

// Band returns the named band.
func (i *Image) Band(name string) (*Band, bool) {
	for _, b := range i.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// BandNames lists band names in order.
func (i *Image) BandNames() []string {
	out := make([]string, len(i.Bands))
	for k, b := range i.Bands {
		out[k] = b.Name
	}
	return out
}

// Prop reads a property.
func (i *Image) Prop(key string) (any, bool) {
	v, ok := i.Props[key]
	return v, ok
}

// shallow copies the image's property map and band list but shares band
// data, which is never mutated in place.
func (i *Image) shallow() *Image {
	out := &Image{Props: make(map[string]any, len(i.Props)), Footprint: i.Footprint}
	for k, v := range i.Props {
		out.Props[k] = v
	}
	out.Bands = append([]*Band(nil), i.Bands...)
	return out
}

func (i *Image) info(grid Grid) compute.ImageInfo {
	out := compute.ImageInfo{Type: "Image", Properties: make(map[string]any, len(i.Props))}
	if id, ok := i.Props[graph.PropID].(string); ok {
		out.ID = id
	}
	keys := make([]string, 0, len(i.Props))
	for k := range i.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if serializable(i.Props[k]) {
			out.Properties[k] = i.Props[k]
		}
	}
	for _, b := range i.Bands {
		out.Bands = append(out.Bands, compute.BandInfo{
			ID:           b.Name,
			DataType:     compute.PixelType{Type: "PixelType", Precision: b.Type},
			Dimensions:   []int{grid.Width, grid.Height},
			CRS:          grid.CRS,
			CRSTransform: append([]float64(nil), grid.Transform...),
		})
	}
	return out
}

func serializable(v any) bool {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return true
	case []any:
		for _, x := range t {
			if !serializable(x) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, x := range t {
			if !serializable(x) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (e *Engine) checkImage(img *Image) error {
	n := e.grid.Pixels()
	for _, b := range img.Bands {
		if len(b.Data) != n {
			return eris.Errorf("localengine: band %s has %d pixels, grid has %d", b.Name, len(b.Data), n)
		}
		if b.Type == "" {
			b.Type = compute.PrecisionFloat
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

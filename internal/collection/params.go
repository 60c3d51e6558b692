// Package collection validates ET collection requests and builds the merged
// scene stream, overpass listings and interpolated series from them.
package collection

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
)

// DefaultCloudCoverMax applies when a request leaves the cloud cover unset.
const DefaultCloudCoverMax = 70.0

var (
	// ErrInvalidValue marks well-typed input outside its allowed values.
	ErrInvalidValue = eris.New("invalid value")
	// ErrInvalidType marks input of an unsupported type.
	ErrInvalidType = eris.New("invalid type")
)

// CloudMaskArgs controls the model's cloud masking.
type CloudMaskArgs struct {
	CloudScoreFlag bool `yaml:"cloud_score_flag" mapstructure:"cloud_score_flag"`
	FilterFlag     bool `yaml:"filter_flag" mapstructure:"filter_flag"`
}

// ModelArgs is the auxiliary source bundle passed to the model.
type ModelArgs struct {
	ETReferenceSource   string            `yaml:"et_reference_source" mapstructure:"et_reference_source"`
	ETReferenceBand     string            `yaml:"et_reference_band" mapstructure:"et_reference_band"`
	ETReferenceFactor   float64           `yaml:"et_reference_factor" mapstructure:"et_reference_factor"`
	ETReferenceResample string            `yaml:"et_reference_resample" mapstructure:"et_reference_resample"`
	CloudMask           CloudMaskArgs     `yaml:"cloudmask_args" mapstructure:"cloudmask_args"`
	Sources             map[string]string `yaml:"sources" mapstructure:"sources"`
}

func (m ModelArgs) clone() ModelArgs {
	out := m
	if m.Sources != nil {
		out.Sources = make(map[string]string, len(m.Sources))
		for k, v := range m.Sources {
			out.Sources[k] = v
		}
	}
	return out
}

// Node renders the bundle as the model's arguments dictionary. Empty
// values are omitted.
func (m ModelArgs) Node() *graph.Node {
	vals := map[string]*graph.Node{
		"cloudmask_args": graph.Dict(map[string]*graph.Node{
			"cloud_score_flag": graph.Constant(m.CloudMask.CloudScoreFlag),
			"filter_flag":      graph.Constant(m.CloudMask.FilterFlag),
		}),
	}
	str := func(k, v string) {
		if v != "" {
			vals[k] = graph.Constant(v)
		}
	}
	str("et_reference_source", m.ETReferenceSource)
	str("et_reference_band", m.ETReferenceBand)
	str("et_reference_resample", m.ETReferenceResample)
	if m.ETReferenceFactor != 0 {
		vals["et_reference_factor"] = graph.Constant(m.ETReferenceFactor)
	}
	for k, v := range m.Sources {
		str(k, v)
	}
	return graph.Dict(vals)
}

// Params is the raw input of a collection request.
type Params struct {
	// Collections is a collection id or a list of ids.
	Collections any
	StartDate   string
	EndDate     string
	// Geometry is a WGS84 point or polygon.
	Geometry     geom.T
	BufferMeters float64
	// Variables may be nil to leave them unresolved until a build.
	Variables []string
	// CloudCoverMax is a number or numeric string in [0, 100]. Nil means 70.
	CloudCoverMax any
	// FilterArgs maps collection ids to a graph.Filter or clause descriptions.
	FilterArgs map[string]any
	ModelArgs  ModelArgs
}

// Request is the validated, normalized form of Params.
type Request struct {
	Collections   []string
	StartDate     string
	EndDate       string
	Geometry      geom.T
	BufferMeters  float64
	Variables     []string
	CloudCoverMax float64
	FilterArgs    map[string]Predicate
	ModelArgs     ModelArgs
}

// Collection is an immutable, validated request bound to a registry.
type Collection struct {
	reg           *registry.Registry
	collections   []string
	window        dateutil.Window
	geometry      []byte
	region        graph.Geometry
	buffer        float64
	variables     []string
	cloudCoverMax float64
	filters       map[string]Predicate
	modelArgs     ModelArgs
}

// New validates params against reg. Collections whose validity window does
// not overlap the request dates are dropped silently.
func New(reg *registry.Registry, p Params) (*Collection, error) {
	if reg == nil {
		return nil, eris.New("collection: nil registry")
	}

	ids, err := collectionIDs(p.Collections)
	if err != nil {
		return nil, err
	}

	cloud, err := cloudCover(p.CloudCoverMax)
	if err != nil {
		return nil, err
	}

	window, err := parseWindow(p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}

	c := &Collection{
		reg:           reg,
		window:        window,
		cloudCoverMax: cloud,
		modelArgs:     p.ModelArgs.clone(),
		filters:       make(map[string]Predicate),
	}
	if p.Variables != nil {
		c.variables = append([]string{}, p.Variables...)
	}

	if err := c.setGeometry(p.Geometry, p.BufferMeters); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if !reg.Has(id) {
			return nil, eris.Wrapf(ErrInvalidValue, "collection: unsupported collection %q", id)
		}
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		entry, _ := reg.Get(id)
		if !entry.Overlaps(window) {
			zap.L().Debug("collection: dropping collection outside validity window",
				zap.String("collection", id),
				zap.String("validity", entry.Validity.String()),
				zap.String("request", window.String()),
			)
			continue
		}
		c.collections = append(c.collections, id)
	}

	for id, raw := range p.FilterArgs {
		pred, err := ParsePredicate(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "collection: filter for %s", id)
		}
		if !seen[id] {
			zap.L().Debug("collection: ignoring filter for collection not in request", zap.String("collection", id))
			continue
		}
		c.filters[id] = pred
	}

	return c, nil
}

// Request returns a deep copy of the normalized request.
func (c *Collection) Request() Request {
	r := Request{
		Collections:   append([]string{}, c.collections...),
		StartDate:     dateutil.Format(c.window.Start),
		EndDate:       dateutil.Format(c.window.End),
		BufferMeters:  c.buffer,
		CloudCoverMax: c.cloudCoverMax,
		ModelArgs:     c.modelArgs.clone(),
		FilterArgs:    make(map[string]Predicate, len(c.filters)),
	}
	if c.variables != nil {
		r.Variables = append([]string{}, c.variables...)
	}
	for id, p := range c.filters {
		r.FilterArgs[id] = p.clone()
	}
	if g, err := graph.DecodeGeoJSON(json.RawMessage(c.geometry)); err == nil {
		r.Geometry = g
	}
	return r
}

// Collections returns the surviving collection ids in request order.
func (c *Collection) Collections() []string {
	return append([]string{}, c.collections...)
}

// Window returns the request date range.
func (c *Collection) Window() dateutil.Window {
	return c.window
}

func (c *Collection) setGeometry(g geom.T, buffer float64) error {
	switch g.(type) {
	case *geom.Point, *geom.Polygon:
	case nil:
		return eris.Wrap(ErrInvalidValue, "collection: geometry is required")
	default:
		return eris.Wrapf(ErrInvalidValue, "collection: unsupported geometry %T", g)
	}
	if math.IsNaN(buffer) || buffer < 0 {
		return eris.Wrapf(ErrInvalidValue, "collection: buffer %v must be non-negative", buffer)
	}
	region, err := graph.NewGeometry(g)
	if err != nil {
		return eris.Wrap(ErrInvalidValue, err.Error())
	}
	data, err := geojson.Marshal(g)
	if err != nil {
		return eris.Wrap(err, "collection: encode geometry")
	}
	c.geometry = data
	c.buffer = buffer
	c.region = region
	if buffer > 0 {
		c.region = region.Buffer(buffer)
	}
	return nil
}

func collectionIDs(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return append([]string{}, t...), nil
	case []any:
		out := make([]string, len(t))
		for i, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, eris.Wrapf(ErrInvalidType, "collection: collection %d is %T", i, x)
			}
			out[i] = s
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, eris.Wrapf(ErrInvalidType, "collection: collections must be a string or list, got %T", v)
	}
}

func cloudCover(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return DefaultCloudCoverMax, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, eris.Wrapf(ErrInvalidType, "collection: cloud cover %q is not numeric", t)
		}
		f = parsed
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	default:
		return 0, eris.Wrapf(ErrInvalidType, "collection: cloud cover must be numeric, got %T", v)
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return 0, eris.Wrapf(ErrInvalidValue, "collection: cloud cover %v outside [0, 100]", f)
	}
	return f, nil
}

func parseWindow(start, end string) (dateutil.Window, error) {
	w, err := dateutil.ParseWindow(start, end)
	if err != nil {
		return dateutil.Window{}, eris.Wrapf(ErrInvalidValue, "collection: dates %q to %q: %v", start, end, err)
	}
	return w, nil
}

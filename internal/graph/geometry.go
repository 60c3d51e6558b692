package graph

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Geometry is a deferred WGS84 geometry.
type Geometry struct {
	node *Node
}

// NewGeometry embeds g as a GeoJSON constant.
func NewGeometry(g geom.T) (Geometry, error) {
	if g == nil {
		return Geometry{}, eris.New("graph: nil geometry")
	}
	if srid := g.SRID(); srid != 0 && srid != 4326 {
		return Geometry{}, eris.Errorf("graph: geometry must be WGS84, got SRID %d", srid)
	}
	data, err := geojson.Marshal(g)
	if err != nil {
		return Geometry{}, eris.Wrap(err, "graph: encode geometry")
	}
	return Geometry{node: Invoke(FnGeometry, map[string]*Node{"geoJson": Constant(json.RawMessage(data))})}, nil
}

// Node returns the underlying graph node.
func (g Geometry) Node() *Node { return g.node }

// IsZero reports whether the handle is unset.
func (g Geometry) IsZero() bool { return g.node == nil }

// Buffer grows the geometry by meters.
func (g Geometry) Buffer(meters float64) Geometry {
	return Geometry{node: Invoke(FnGeometryBuffer, map[string]*Node{
		"geometry": g.node,
		"distance": Constant(meters),
	})}
}

// DecodeGeoJSON turns a geometry constant, either raw JSON or a decoded
// JSON object, back into a go-geom value.
func DecodeGeoJSON(v any) (geom.T, error) {
	var data []byte
	switch t := v.(type) {
	case json.RawMessage:
		data = t
	case []byte:
		data = t
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, eris.Wrap(err, "graph: marshal geojson")
		}
		data = raw
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "graph: decode geojson")
	}
	return g, nil
}

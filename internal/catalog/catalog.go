// Package catalog renders scene listings as STAC items.
package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/planetlabs/go-stac"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/landsat"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

// Version is the STAC version written on every item.
const Version = "1.0.0"

// ItemCollection is a GeoJSON FeatureCollection of STAC items.
type ItemCollection struct {
	Type           string       `json:"type"`
	Features       []*stac.Item `json:"features"`
	Links          []*stac.Link `json:"links"`
	NumberReturned int          `json:"numberReturned"`
}

// NewItemCollection wraps items.
func NewItemCollection(items []*stac.Item) *ItemCollection {
	if items == nil {
		items = []*stac.Item{}
	}
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          make([]*stac.Link, 0),
		NumberReturned: len(items),
	}
}

// Items converts a built scene stream's metadata into STAC items. The
// request geometry stands in for each scene footprint.
func Items(info *compute.CollectionInfo, region geom.T) ([]*stac.Item, error) {
	if info == nil {
		return nil, eris.New("catalog: nil collection info")
	}

	var geometry json.RawMessage
	var bbox []float64
	if region != nil {
		data, err := geojson.Marshal(region)
		if err != nil {
			return nil, eris.Wrap(err, "catalog: encode geometry")
		}
		geometry = data
		b := region.Bounds()
		bbox = []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
	}

	items := make([]*stac.Item, 0, len(info.Features))
	for _, f := range info.Features {
		it, err := toItem(f)
		if err != nil {
			return nil, err
		}
		it.Geometry = geometry
		it.Bbox = bbox
		items = append(items, it)
	}
	return items, nil
}

func toItem(f compute.ImageInfo) (*stac.Item, error) {
	// merged streams prefix system:index, scene_id keeps the bare id
	id, _ := f.Properties[collection.PropSceneID].(string)
	if id == "" {
		id = f.Index()
	}
	if id == "" {
		return nil, eris.Errorf("catalog: image %q without scene id", f.ID)
	}
	collID, _ := f.Properties[collection.PropCollID].(string)

	props := map[string]any{}
	if ts, ok := f.TimeStart(); ok {
		props["datetime"] = ts.Format(time.RFC3339)
	} else {
		props["datetime"] = nil
	}
	if scene, err := landsat.ParseSceneID(id); err == nil {
		props["platform"] = strings.ToLower(scene.Platform())
		props["constellation"] = scene.Family()
		props["instruments"] = strings.Split(strings.ToLower(scene.Instrument()), "_")
		props["landsat:wrs_path"] = scene.Path
		props["landsat:wrs_row"] = scene.Row
	}
	if cc, ok := f.Float(registry.CloudCoverLand); ok {
		props["eo:cloud_cover"] = cc
	}
	if names := f.BandNames(); len(names) > 0 {
		props["ptjpl:variables"] = names
	}

	it := &stac.Item{
		Version:    Version,
		Id:         id,
		Collection: collID,
		Properties: props,
		Assets:     make(map[string]*stac.Asset),
		Links:      make([]*stac.Link, 0),
	}
	if f.ID != "" {
		it.Assets["source"] = &stac.Asset{
			Href:  f.ID,
			Title: "Source image",
			Roles: []string{"data"},
		}
	}
	return it, nil
}

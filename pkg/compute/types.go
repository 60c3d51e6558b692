package compute

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
)

// Pixel precisions reported in band data types.
const (
	PrecisionFloat = "float"
	PrecisionInt   = "int"
)

// ErrRemote marks errors reported by the compute service itself.
var ErrRemote = eris.New("compute: remote error")

// PixelType describes a band's data type.
type PixelType struct {
	Type      string `json:"type"`
	Precision string `json:"precision"`
}

// BandInfo is the metadata of one band.
type BandInfo struct {
	ID           string    `json:"id"`
	DataType     PixelType `json:"data_type"`
	Dimensions   []int     `json:"dimensions,omitempty"`
	CRS          string    `json:"crs"`
	CRSTransform []float64 `json:"crs_transform,omitempty"`
}

// ImageInfo is the materialized metadata of one image.
type ImageInfo struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Bands      []BandInfo     `json:"bands"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Index returns the image's system:index property.
func (i ImageInfo) Index() string {
	s, _ := i.Properties[graph.PropIndex].(string)
	return s
}

// Band returns the named band's metadata.
func (i ImageInfo) Band(name string) (BandInfo, bool) {
	for _, b := range i.Bands {
		if b.ID == name {
			return b, true
		}
	}
	return BandInfo{}, false
}

// BandNames lists band ids in order.
func (i ImageInfo) BandNames() []string {
	names := make([]string, len(i.Bands))
	for k, b := range i.Bands {
		names[k] = b.ID
	}
	return names
}

// Float reads a numeric property.
func (i ImageInfo) Float(key string) (float64, bool) {
	switch v := i.Properties[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// TimeStart returns system:time_start as a UTC time.
func (i ImageInfo) TimeStart() (time.Time, bool) {
	ms, ok := i.Float(graph.PropTimeStart)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// CollectionInfo is the materialized metadata of an image collection.
type CollectionInfo struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Features   []ImageInfo    `json:"features"`
	Properties map[string]any `json:"properties,omitempty"`
}

// IDs returns the id of every image in order.
func (c CollectionInfo) IDs() []string {
	ids := make([]string, len(c.Features))
	for i, f := range c.Features {
		ids[i] = f.ID
	}
	return ids
}

// Indexes returns the system:index of every image in order.
func (c CollectionInfo) Indexes() []string {
	out := make([]string, len(c.Features))
	for i, f := range c.Features {
		out[i] = f.Index()
	}
	return out
}

// ExportRequest asks the service to write an image to an asset.
type ExportRequest struct {
	Image        graph.Image `json:"-"`
	Description  string      `json:"description"`
	AssetID      string      `json:"assetId"`
	Dimensions   string      `json:"dimensions,omitempty"`
	CRS          string      `json:"crs,omitempty"`
	CRSTransform []float64   `json:"crsTransform,omitempty"`
	MaxPixels    float64     `json:"maxPixels,omitempty"`
}

// Task is a submitted export. The service runs it asynchronously.
type Task struct {
	ID          string `json:"name"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
}

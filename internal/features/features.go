// Package features reads the point and polygon features that drive a
// batch export from an ESRI shapefile.
package features

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultIDField names the attribute holding feature ids. When the file has
// no such attribute, the record number is used.
const DefaultIDField = "FID"

// ErrProjection is returned for shapefiles not in geographic WGS84.
var ErrProjection = eris.New("features: shapefile must be in geographic WGS84")

// Feature is one shapefile record.
type Feature struct {
	ID string
	// Geometry is a *geom.Point or the exterior ring as a *geom.Polygon,
	// both with SRID 4326.
	Geometry   geom.T
	Attributes map[string]string
}

// Options selects which records become features.
type Options struct {
	IDField string
	// Select, when non-empty, is an allow-list of feature ids.
	Select []string
	// Exclude lists feature ids to skip.
	Exclude []string
	// Include maps attribute names to their allowed values. Numeric values
	// compare numerically, so "10" matches "10.0".
	Include map[string][]string
}

// Read returns the features of the shapefile at path that pass opts, in
// file order.
func Read(path string, opts Options) ([]Feature, error) {
	if err := checkProjection(path); err != nil {
		return nil, err
	}
	dec, err := charset(path)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idField := opts.IDField
	if idField == "" {
		idField = DefaultIDField
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	idIdx := -1
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(names[i], idField) {
			idIdx = i
		}
	}
	if idIdx < 0 && !strings.EqualFold(idField, DefaultIDField) {
		return nil, eris.Errorf("features: id field %q not in %s", idField, path)
	}

	allow := toSet(opts.Select)
	deny := toSet(opts.Exclude)

	var out []Feature
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if dec != nil {
				if s, err := dec.String(val); err == nil {
					val = s
				}
			}
			attrs[name] = val
		}

		id := strconv.Itoa(n)
		if idIdx >= 0 {
			id = attrs[names[idIdx]]
		}
		if len(allow) > 0 && !allow[id] {
			continue
		}
		if deny[id] || !matches(attrs, opts.Include) {
			continue
		}

		g := toGeom(shape)
		if g == nil {
			skipped++
			zap.L().Debug("features: skipping unsupported shape",
				zap.String("id", id),
				zap.String("type", shapeName(shape)),
			)
			continue
		}
		out = append(out, Feature{ID: id, Geometry: g, Attributes: attrs})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "features: read %s", path)
	}

	if skipped > 0 {
		zap.L().Info("features: skipped records without point or polygon geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

func toGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.Polygon:
		return exterior(s)
	default:
		return nil
	}
}

// exterior keeps the first ring of a polygon record. Holes and further
// parts are dropped.
func exterior(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}
	end := int32(len(p.Points))
	if p.NumParts > 1 {
		end = p.Parts[1]
	}
	flat := make([]float64, 0, 2*(end-p.Parts[0]))
	for _, pt := range p.Points[p.Parts[0]:end] {
		flat = append(flat, pt.X, pt.Y)
	}
	if len(flat) < 8 {
		return nil
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}

func shapeName(s shp.Shape) string {
	if s == nil {
		return "null"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", s), "*shp.")
}

func matches(attrs map[string]string, include map[string][]string) bool {
	for field, allowed := range include {
		val, ok := lookup(attrs, field)
		if !ok {
			return false
		}
		hit := false
		for _, a := range allowed {
			if sameValue(val, a) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func lookup(attrs map[string]string, field string) (string, bool) {
	if v, ok := attrs[field]; ok {
		return v, true
	}
	for k, v := range attrs {
		if strings.EqualFold(k, field) {
			return v, true
		}
	}
	return "", false
}

func sameValue(a, b string) bool {
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// charset returns the attribute decoder named by the sidecar .cpg file, or
// nil when attributes are already UTF-8.
func charset(path string) (*encoding.Decoder, error) {
	data, err := os.ReadFile(sidecar(path, ".cpg"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "features: read code page for %s", path)
	}
	name := strings.TrimSpace(string(data))
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	if _, err := strconv.Atoi(name); err == nil {
		name = "windows-" + name
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "features: unsupported code page %q", name)
	}
	return enc.NewDecoder(), nil
}

// checkProjection requires a .prj declaring a geographic CRS on the WGS84
// datum.
func checkProjection(path string) error {
	data, err := os.ReadFile(sidecar(path, ".prj"))
	if err != nil {
		return eris.Wrapf(ErrProjection, "features: no projection for %s", path)
	}
	wkt := strings.ToUpper(strings.TrimSpace(string(data)))
	norm := strings.NewReplacer(" ", "", "_", "").Replace(wkt)
	if !strings.HasPrefix(wkt, "GEOGCS") || (!strings.Contains(norm, "WGS1984") && !strings.Contains(norm, "WGS84")) {
		return eris.Wrapf(ErrProjection, "features: %s declares %.40s", path, wkt)
	}
	return nil
}

func sidecar(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

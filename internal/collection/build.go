package collection

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/landsat"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

// Bookkeeping properties set on every built scene.
const (
	PropCollID  = "coll_id"
	PropSceneID = "scene_id"
)

// BuildVariables are the model outputs a build can request.
var BuildVariables = []string{"et", "et_fraction", "et_reference", "ndvi", "lst", "mask", "time"}

type buildConfig struct {
	variables []string
	varsSet   bool
	start     string
	end       string
}

// BuildOption customizes one Build call.
type BuildOption func(*buildConfig)

// WithVariables overrides the request variables. An explicit empty list
// builds the raw source imagery.
func WithVariables(vars ...string) BuildOption {
	return func(c *buildConfig) {
		c.variables = append([]string{}, vars...)
		c.varsSet = true
	}
}

// WithDates overrides the request dates for one build.
func WithDates(start, end string) BuildOption {
	return func(c *buildConfig) {
		c.start = start
		c.end = end
	}
}

// Build returns the merged scene stream, deduplicated by scene and ordered
// by acquisition time then scene id.
func (c *Collection) Build(opts ...BuildOption) (graph.Collection, error) {
	cfg := buildConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	vars := c.variables
	if cfg.varsSet {
		vars = cfg.variables
	}
	if vars == nil {
		return graph.Collection{}, eris.Wrap(ErrInvalidValue, "collection: no variables resolved")
	}
	if err := checkVariables(vars, BuildVariables); err != nil {
		return graph.Collection{}, err
	}

	window := c.window
	if cfg.start != "" || cfg.end != "" {
		start, end := cfg.start, cfg.end
		if start == "" {
			start = dateutil.Format(c.window.Start)
		}
		if end == "" {
			end = dateutil.Format(c.window.End)
		}
		w, err := parseWindow(start, end)
		if err != nil {
			return graph.Collection{}, err
		}
		window = w
	}

	return c.build(window, vars)
}

func (c *Collection) build(window dateutil.Window, vars []string) (graph.Collection, error) {
	var args *graph.Node
	if len(vars) > 0 {
		args = c.modelArgs.Node()
	}

	var merged graph.Collection
	for _, id := range c.collections {
		entry, ok := c.reg.Get(id)
		if !ok {
			return graph.Collection{}, eris.Errorf("collection: %s left the registry", id)
		}

		coll := graph.LoadCollection(id).
			FilterBounds(c.region).
			FilterDate(window.Start, window.End).
			Filter(graph.LessThanOrEquals(entry.CloudProperty, c.cloudCoverMax))

		if pred, ok := c.filters[id]; ok {
			f, err := pred.Graph()
			if err != nil {
				return graph.Collection{}, eris.Wrapf(err, "collection: filter for %s", id)
			}
			coll = coll.Filter(f)
		}

		skip := false
		for _, ex := range entry.Exclusions {
			f, ok := keepOutside(ex)
			if !ok {
				zap.L().Warn("collection: exclusion covers every date, skipping collection",
					zap.String("collection", id), zap.String("reason", ex.Reason))
				skip = true
				break
			}
			coll = coll.Filter(f)
		}
		if skip {
			continue
		}

		collID := id
		coll = coll.Map(func(img graph.Image) graph.Image {
			out := img
			if len(vars) > 0 {
				out = graph.Model(img, vars, args)
			}
			return out.SetMulti(map[string]any{
				PropCollID:  collID,
				PropSceneID: img.Get(graph.PropIndex),
			})
		})

		if merged.IsZero() {
			merged = coll
		} else {
			merged = merged.Merge(coll)
		}
	}

	if merged.IsZero() {
		return graph.FromImages(), nil
	}
	return merged.
		Distinct(PropSceneID).
		Sort(PropSceneID, true).
		Sort(graph.PropTimeStart, true), nil
}

// Scene metadata holding the WRS-2 path and row.
const (
	propWRSPath = "WRS_PATH"
	propWRSRow  = "WRS_ROW"
)

// keepOutside returns a filter keeping scenes the exclusion does not cover.
// It reports false when the exclusion drops every scene.
func keepOutside(ex registry.Exclusion) (graph.Filter, bool) {
	outside, bounded := outsideWindow(ex.Window)
	if len(ex.Tiles) == 0 {
		return outside, bounded
	}

	onTiles := make([]graph.Filter, 0, len(ex.Tiles))
	for _, tile := range ex.Tiles {
		path, row, err := landsat.ParseTile(tile)
		if err != nil {
			zap.L().Warn("collection: ignoring malformed exclusion tile",
				zap.String("tile", tile), zap.Error(err))
			continue
		}
		onTiles = append(onTiles, graph.And(
			graph.Equals(propWRSPath, path),
			graph.Equals(propWRSRow, row),
		))
	}
	if len(onTiles) == 0 {
		return outside, bounded
	}
	elsewhere := graph.Or(onTiles...).Not()
	if !bounded {
		return elsewhere, true
	}
	return graph.Or(outside, elsewhere), true
}

func outsideWindow(w dateutil.Window) (graph.Filter, bool) {
	switch {
	case w.Start.IsZero() && w.End.IsZero():
		return graph.Filter{}, false
	case w.Start.IsZero():
		return graph.GreaterThanOrEquals(graph.PropTimeStart, float64(dateutil.Millis(w.End))), true
	case w.End.IsZero():
		return graph.LessThan(graph.PropTimeStart, float64(dateutil.Millis(w.Start))), true
	default:
		return graph.Date(w.Start, w.End).Not(), true
	}
}

func checkVariables(vars, allowed []string) error {
	for _, v := range vars {
		ok := false
		for _, a := range allowed {
			if v == a {
				ok = true
				break
			}
		}
		if !ok {
			return eris.Wrapf(ErrInvalidValue, "collection: unsupported variable %q", v)
		}
	}
	return nil
}

// Overpass builds the scene stream with the given variables, falling back
// to the request variables.
func (c *Collection) Overpass(variables ...string) (graph.Collection, error) {
	vars := variables
	if len(vars) == 0 {
		vars = c.variables
	}
	if len(vars) == 0 {
		return graph.Collection{}, eris.Wrap(ErrInvalidValue, "collection: overpass needs at least one variable")
	}
	return c.Build(WithVariables(vars...))
}

// ImageIDs lists the source image ids of the raw build, ordered by
// acquisition date then id.
func (c *Collection) ImageIDs(ctx context.Context, client compute.Client) ([]string, error) {
	coll, err := c.Build(WithVariables())
	if err != nil {
		return nil, err
	}
	info, err := client.CollectionInfo(ctx, coll)
	if err != nil {
		return nil, eris.Wrap(err, "collection: list image ids")
	}

	type entry struct {
		id string
		at time.Time
	}
	seen := make(map[string]bool, len(info.Features))
	entries := make([]entry, 0, len(info.Features))
	for _, f := range info.Features {
		id := f.ID
		if id == "" {
			id, _ = f.Properties[graph.PropID].(string)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		at, ok := f.TimeStart()
		if !ok {
			if _, scene, err := landsat.SplitImageID(id); err == nil {
				at = scene.Date
			}
		}
		entries = append(entries, entry{id: id, at: dateutil.DayStart(at)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].at.Equal(entries[j].at) {
			return entries[i].at.Before(entries[j].at)
		}
		return entries[i].id < entries[j].id
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

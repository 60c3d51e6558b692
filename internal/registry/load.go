package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/landsat"
)

// File is the on-disk registry override format.
type File struct {
	// ReplaceDefaults drops the built-in collections before applying entries.
	ReplaceDefaults bool        `yaml:"replace_defaults"`
	Collections     []FileEntry `yaml:"collections"`
}

// FileEntry describes one collection in a registry file. Dates are
// YYYY-MM-DD; an empty date leaves that side of the window open.
type FileEntry struct {
	ID            string          `yaml:"id"`
	Sensor        string          `yaml:"sensor"`
	Start         string          `yaml:"start"`
	End           string          `yaml:"end"`
	CloudProperty string          `yaml:"cloud_property"`
	Bands         []string        `yaml:"bands"`
	Exclusions    []FileExclusion `yaml:"exclusions"`
}

// FileExclusion is one exclusion window in a registry file.
type FileExclusion struct {
	Start  string   `yaml:"start"`
	End    string   `yaml:"end"`
	Tiles  []string `yaml:"tiles"`
	Reason string   `yaml:"reason"`
}

// LoadFile builds a registry from the defaults plus the entries in path.
// Entries replace defaults with the same id.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return Parse(data)
}

// Parse builds a registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "registry: parse yaml")
	}

	r := New()
	if !f.ReplaceDefaults {
		for _, c := range Defaults() {
			_ = r.Add(c)
		}
	}

	for i, e := range f.Collections {
		c, err := e.toCollection()
		if err != nil {
			return nil, eris.Wrapf(err, "registry: collection %d", i)
		}
		if err := r.Put(c); err != nil {
			return nil, err
		}
	}

	if r.Count() == 0 {
		return nil, eris.New("registry: no collections defined")
	}
	return r, nil
}

func (e FileEntry) toCollection() (*Collection, error) {
	if e.ID == "" {
		return nil, eris.New("registry: id is required")
	}
	sensor := strings.ToUpper(e.Sensor)
	if sensor == "" {
		sensor = landsat.SensorOfCollection(e.ID)
	}
	if !landsat.KnownSensor(sensor) {
		return nil, eris.Errorf("registry: unknown sensor %q for %s", sensor, e.ID)
	}

	validity, err := openWindow(e.Start, e.End)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: validity of %s", e.ID)
	}

	c := &Collection{
		ID:            e.ID,
		Sensor:        sensor,
		Validity:      validity,
		CloudProperty: e.CloudProperty,
		Bands:         e.Bands,
	}
	if c.CloudProperty == "" {
		c.CloudProperty = CloudCoverLand
	}
	for _, x := range e.Exclusions {
		w, err := openWindow(x.Start, x.End)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: exclusion of %s", e.ID)
		}
		if w.Start.IsZero() && w.End.IsZero() && len(x.Tiles) == 0 {
			return nil, eris.Errorf("registry: exclusion of %s has no bounds", e.ID)
		}
		for _, tile := range x.Tiles {
			if _, _, err := landsat.ParseTile(tile); err != nil {
				return nil, eris.Wrapf(err, "registry: exclusion of %s", e.ID)
			}
		}
		c.Exclusions = append(c.Exclusions, Exclusion{Window: w, Tiles: x.Tiles, Reason: x.Reason})
	}
	return c, nil
}

func openWindow(start, end string) (dateutil.Window, error) {
	var w dateutil.Window
	var err error
	if start != "" {
		if w.Start, err = dateutil.ParseDate(start); err != nil {
			return w, err
		}
	}
	if end != "" {
		if w.End, err = dateutil.ParseDate(end); err != nil {
			return w, err
		}
	}
	if w.Bounded() && !w.Start.Before(w.End) {
		return w, eris.Errorf("registry: start %s must be before end %s", start, end)
	}
	return w, nil
}

// Package landsat parses Landsat Collection 2 scene and image identifiers.
package landsat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SceneID identifies one acquisition: sensor, WRS-2 path/row and date,
// rendered as LC08_044033_20170716.
type SceneID struct {
	Sensor string
	Path   int
	Row    int
	Date   time.Time
}

type sensorInfo struct {
	platform   string
	instrument string
}

var sensors = map[string]sensorInfo{
	"LT04": {platform: "LANDSAT_4", instrument: "TM"},
	"LT05": {platform: "LANDSAT_5", instrument: "TM"},
	"LE07": {platform: "LANDSAT_7", instrument: "ETM"},
	"LC08": {platform: "LANDSAT_8", instrument: "OLI_TIRS"},
	"LC09": {platform: "LANDSAT_9", instrument: "OLI_TIRS"},
}

// KnownSensor reports whether s is a supported sensor prefix.
func KnownSensor(s string) bool {
	_, ok := sensors[s]
	return ok
}

// ParseSceneID parses the trailing SENSOR_PPPRRR_YYYYMMDD triple of s.
// Leading merge prefixes such as "1_2_" are ignored.
func ParseSceneID(s string) (SceneID, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 3 {
		return SceneID{}, eris.Errorf("landsat: scene id %q has too few parts", s)
	}
	parts = parts[len(parts)-3:]

	sensor := strings.ToUpper(parts[0])
	if !KnownSensor(sensor) {
		return SceneID{}, eris.Errorf("landsat: unknown sensor %q in %q", parts[0], s)
	}

	path, row, err := ParseTile(parts[1])
	if err != nil {
		return SceneID{}, eris.Wrapf(err, "landsat: scene id %q", s)
	}

	date, err := time.Parse("20060102", parts[2])
	if err != nil {
		return SceneID{}, eris.Wrapf(err, "landsat: parse date in %q", s)
	}

	return SceneID{Sensor: sensor, Path: path, Row: row, Date: date.UTC()}, nil
}

// ParseTile parses a zero-padded WRS-2 path/row such as "044033".
func ParseTile(tile string) (path, row int, err error) {
	if len(tile) != 6 {
		return 0, 0, eris.Errorf("landsat: malformed path/row %q", tile)
	}
	if path, err = strconv.Atoi(tile[:3]); err != nil {
		return 0, 0, eris.Wrapf(err, "landsat: parse path in %q", tile)
	}
	if row, err = strconv.Atoi(tile[3:]); err != nil {
		return 0, 0, eris.Wrapf(err, "landsat: parse row in %q", tile)
	}
	return path, row, nil
}

// String renders the canonical scene identifier.
func (s SceneID) String() string {
	return fmt.Sprintf("%s_%s_%s", s.Sensor, s.Tile(), s.Date.Format("20060102"))
}

// Tile returns the zero-padded WRS-2 path/row, e.g. "044033".
func (s SceneID) Tile() string {
	return fmt.Sprintf("%03d%03d", s.Path, s.Row)
}

// Platform returns the spacecraft name, e.g. "LANDSAT_8".
func (s SceneID) Platform() string {
	return sensors[s.Sensor].platform
}

// Instrument returns the sensor family, e.g. "OLI_TIRS".
func (s SceneID) Instrument() string {
	return sensors[s.Sensor].instrument
}

// Family is the image family shared by all supported sensors.
func (s SceneID) Family() string {
	return "landsat"
}

// SplitImageID splits a full image id such as
// LANDSAT/LC08/C02/T1_L2/LC08_044033_20170716 into its collection id and
// parsed scene id.
func SplitImageID(id string) (string, SceneID, error) {
	idx := strings.LastIndex(id, "/")
	if idx <= 0 || idx == len(id)-1 {
		return "", SceneID{}, eris.Errorf("landsat: image id %q has no collection prefix", id)
	}
	scene, err := ParseSceneID(id[idx+1:])
	if err != nil {
		return "", SceneID{}, err
	}
	return id[:idx], scene, nil
}

// SensorOfCollection returns the sensor segment of a collection id such as
// LANDSAT/LC08/C02/T1_L2.
func SensorOfCollection(collectionID string) string {
	parts := strings.Split(collectionID, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(parts[1])
}

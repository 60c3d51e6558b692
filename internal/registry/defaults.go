package registry

import (
	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
)

// CloudCoverLand is the scene property compared against the cloud cover maximum.
const CloudCoverLand = "CLOUD_COVER_LAND"

var (
	tmBands  = []string{"SR_B1", "SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B7", "ST_B6", "QA_PIXEL", "QA_RADSAT"}
	oliBands = []string{"SR_B1", "SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B6", "SR_B7", "ST_B10", "QA_PIXEL", "QA_RADSAT"}
)

func day(s string) dateutil.Window {
	return dateutil.Window{Start: dateutil.MustParseDate(s)}
}

func until(s string) dateutil.Window {
	return dateutil.Window{End: dateutil.MustParseDate(s)}
}

func span(start, end string) dateutil.Window {
	return dateutil.Window{Start: dateutil.MustParseDate(start), End: dateutil.MustParseDate(end)}
}

// Defaults returns the Landsat Collection 2 Level-2 Tier 1 collections.
func Defaults() []*Collection {
	return []*Collection{
		{
			ID:            "LANDSAT/LT04/C02/T1_L2",
			Sensor:        "LT04",
			Validity:      span("1982-08-22", "1993-12-15"),
			CloudProperty: CloudCoverLand,
			Bands:         tmBands,
		},
		{
			ID:            "LANDSAT/LT05/C02/T1_L2",
			Sensor:        "LT05",
			Validity:      span("1984-01-01", "2012-01-01"),
			CloudProperty: CloudCoverLand,
			Bands:         tmBands,
			Exclusions: []Exclusion{
				{Window: day("2011-12-31"), Reason: "end of reliable TM acquisitions"},
			},
		},
		{
			ID:            "LANDSAT/LE07/C02/T1_L2",
			Sensor:        "LE07",
			Validity:      span("1999-01-01", "2022-01-01"),
			CloudProperty: CloudCoverLand,
			Bands:         tmBands,
			Exclusions: []Exclusion{
				{Window: day("2022-01-01"), Reason: "orbit drift"},
			},
		},
		{
			ID:            "LANDSAT/LC08/C02/T1_L2",
			Sensor:        "LC08",
			Validity:      day("2013-03-18"),
			CloudProperty: CloudCoverLand,
			Bands:         oliBands,
			Exclusions: []Exclusion{
				{Window: until("2013-04-01"), Reason: "pre-operational"},
			},
		},
		{
			ID:            "LANDSAT/LC09/C02/T1_L2",
			Sensor:        "LC09",
			Validity:      day("2022-01-01"),
			CloudProperty: CloudCoverLand,
			Bands:         oliBands,
			Exclusions: []Exclusion{
				{Window: until("2022-01-01"), Reason: "pre-operational"},
			},
		},
	}
}

// Default returns a registry holding Defaults.
func Default() *Registry {
	r := New()
	for _, c := range Defaults() {
		_ = r.Add(c)
	}
	return r
}

//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute/mocks"
)

func requestCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addRegionFlags(cmd)
	addRequestFlags(cmd)
	for k, v := range flags {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	return cmd
}

type itemCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID         string         `json:"id"`
		Collection string         `json:"collection"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
	NumberReturned int `json:"numberReturned"`
}

func TestListScenes(t *testing.T) {
	c := testConfig()
	p := baseParams(c, sitePoint)
	p.StartDate = "2017-07-01"
	p.EndDate = "2017-08-01"

	var buf bytes.Buffer
	n, err := listScenes(context.Background(), newEngine(t), registry.Default(), p, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var out itemCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "FeatureCollection", out.Type)
	assert.Equal(t, 2, out.NumberReturned)
	require.Len(t, out.Features, 2)
	assert.Equal(t, "LE07_044033_20170708", out.Features[0].ID)
	assert.Equal(t, l7, out.Features[0].Collection)
	assert.Equal(t, "LC08_044033_20170716", out.Features[1].ID)
	assert.Equal(t, "landsat_8", out.Features[1].Properties["platform"])
	assert.InDelta(t, 10.0, out.Features[1].Properties["eo:cloud_cover"], 1e-9)
}

func TestListScenes_Empty(t *testing.T) {
	p := baseParams(testConfig(), sitePoint)
	p.StartDate = "2016-01-01"
	p.EndDate = "2016-02-01"

	var buf bytes.Buffer
	n, err := listScenes(context.Background(), newEngine(t), registry.Default(), p, &buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	var out itemCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Empty(t, out.Features)
}

func TestListScenes_InvalidRequest(t *testing.T) {
	p := baseParams(testConfig(), sitePoint)
	p.StartDate = "2017-08-01"
	p.EndDate = "2017-07-01"

	_, err := listScenes(context.Background(), newEngine(t), registry.Default(), p, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestListScenes_RemoteFailure(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CollectionInfo", mock.Anything, mock.Anything).Return(nil, errors.New("backend busy"))

	p := baseParams(testConfig(), sitePoint)
	p.StartDate = "2017-07-01"
	p.EndDate = "2017-08-01"

	var buf bytes.Buffer
	_, err := listScenes(context.Background(), client, registry.Default(), p, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend busy")
	assert.Zero(t, buf.Len())
}

func TestRegionFromFlags_Point(t *testing.T) {
	cmd := requestCmd(t, map[string]string{"lon": "-121.9", "lat": "39"})
	g, err := regionFromFlags(cmd)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -121.9, pt.X(), 1e-9)
	assert.Equal(t, 4326, pt.SRID())
}

func TestRegionFromFlags_Missing(t *testing.T) {
	_, err := regionFromFlags(requestCmd(t, map[string]string{"lon": "-121.9"}))
	assert.Error(t, err)
}

func TestRegionFromFlags_GeoJSON(t *testing.T) {
	dir := t.TempDir()
	poly := filepath.Join(dir, "field.geojson")
	require.NoError(t, os.WriteFile(poly, []byte(`{"type":"Polygon","coordinates":[[[-122,38.9],[-121.8,38.9],[-121.8,39.1],[-122,39.1],[-122,38.9]]]}`), 0o644))

	g, err := regionFromFlags(requestCmd(t, map[string]string{"geojson": poly}))
	require.NoError(t, err)
	assert.IsType(t, &geom.Polygon{}, g)
	assert.Equal(t, 4326, g.SRID())

	line := filepath.Join(dir, "line.geojson")
	require.NoError(t, os.WriteFile(line, []byte(`{"type":"LineString","coordinates":[[-122,38.9],[-121.8,39.1]]}`), 0o644))
	_, err = regionFromFlags(requestCmd(t, map[string]string{"geojson": line}))
	assert.Error(t, err)

	_, err = regionFromFlags(requestCmd(t, map[string]string{"geojson": filepath.Join(dir, "missing.geojson")}))
	assert.Error(t, err)
}

func TestRequestParams(t *testing.T) {
	c := testConfig()
	c.Collection.BufferMeters = 100

	cmd := requestCmd(t, map[string]string{
		"start":       "2017-07-01",
		"end":         "2017-08-01",
		"collections": l8,
		"cloud-cover": "20",
	})
	p := requestParams(cmd, c, sitePoint)
	assert.Equal(t, "2017-07-01", p.StartDate)
	assert.Equal(t, "2017-08-01", p.EndDate)
	assert.Equal(t, []string{l8}, p.Collections)
	assert.Equal(t, 20.0, p.CloudCoverMax)
	assert.Equal(t, 100.0, p.BufferMeters)
	assert.Equal(t, c.Collection.Variables, p.Variables)
	assert.Equal(t, gridmet, p.ModelArgs.ETReferenceSource)

	// flags left unset fall back to config; polygons are never buffered
	p = requestParams(requestCmd(t, nil), c, nearPrint)
	assert.Equal(t, []string{l8, l7}, p.Collections)
	assert.Equal(t, 70.0, p.CloudCoverMax)
	assert.Zero(t, p.BufferMeters)
}

//go:build !integration

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgketchum/openet-ptjpl/internal/collection"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
)

func interpolateFlagsCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("t-interval", "", "")
	cmd.Flags().StringSlice("dates", nil, "")
	cmd.Flags().Int("interp-days", 0, "")
	cmd.Flags().Bool("use-joins", false, "")
	for k, v := range flags {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	return cmd
}

func julyParams() collection.Params {
	p := baseParams(testConfig(), sitePoint)
	p.StartDate = "2017-07-01"
	p.EndDate = "2017-08-01"
	return p
}

func TestListTargets(t *testing.T) {
	c := testConfig()
	var buf bytes.Buffer

	opts := interpolateOptions(interpolateFlagsCmd(t, nil), c)
	require.NoError(t, listTargets(registry.Default(), julyParams(), opts, &buf))
	assert.Equal(t, "2017-07-01\n", buf.String())

	buf.Reset()
	opts = interpolateOptions(interpolateFlagsCmd(t, map[string]string{"dates": "2017-07-20,2017-07-10"}), c)
	require.NoError(t, listTargets(registry.Default(), julyParams(), opts, &buf))
	assert.Equal(t, "2017-07-10\n2017-07-20\n", buf.String())

	buf.Reset()
	opts = interpolateOptions(interpolateFlagsCmd(t, map[string]string{"t-interval": "daily"}), c)
	require.NoError(t, listTargets(registry.Default(), julyParams(), opts, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 31)
	assert.Equal(t, "2017-07-31", lines[30])

	buf.Reset()
	opts = interpolateOptions(interpolateFlagsCmd(t, map[string]string{"t-interval": "monthly"}), c)
	require.NoError(t, listTargets(registry.Default(), julyParams(), opts, &buf))
	assert.Equal(t, "2017-07-01\n", buf.String())
}

func TestListTargets_InvalidInterval(t *testing.T) {
	opts := interpolateOptions(interpolateFlagsCmd(t, map[string]string{"t-interval": "weekly"}), testConfig())
	err := listTargets(registry.Default(), julyParams(), opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, collection.ErrInvalidValue)
}

func TestInterpolateAndExport(t *testing.T) {
	eng := newEngine(t)
	opts := interpolateOptions(interpolateFlagsCmd(t, map[string]string{"dates": "2017-07-12,2017-07-20"}), testConfig())

	sum, err := interpolateAndExport(context.Background(), eng, registry.Default(), testConfig(), julyParams(), opts, "US Ne1")
	require.NoError(t, err)
	assert.Len(t, sum.Submitted, 2)
	assert.Empty(t, sum.Failed)

	exports := eng.Exports()
	require.Len(t, exports, 2)
	assert.Equal(t, root+"/US_Ne1_20170712", exports[0].Request.AssetID)
	assert.Equal(t, "US_Ne1_20170720", exports[1].Request.Description)
	assert.ElementsMatch(t, []string{"et", "et_reference", "et_fraction"}, exports[0].Image.BandNames())
}

func TestInterpolateAndExport_InvalidRequest(t *testing.T) {
	p := julyParams()
	p.Variables = []string{"lst"}

	_, err := interpolateAndExport(context.Background(), newEngine(t), registry.Default(), testConfig(), p, nil, "x")
	assert.Error(t, err)
}

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveExport(t *testing.T) {
	submitted := Exports(OutcomeSubmitted)
	failed := Exports(OutcomeFailed)

	ObserveExport(time.Second, OutcomeSubmitted)
	ObserveExport(-time.Second, "bogus")

	assert.Equal(t, submitted+1, Exports(OutcomeSubmitted))
	assert.Equal(t, failed+1, Exports(OutcomeFailed))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	ObserveExport(time.Millisecond, OutcomeRetried)
	AddScenes(3)

	path := filepath.Join(t.TempDir(), "ptjpl.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ptjpl_exports_total{outcome="retried"}`)
	assert.Contains(t, string(data), "ptjpl_scenes_listed_total")
	assert.Contains(t, string(data), "ptjpl_export_seconds_bucket")

	assert.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), reg))
}

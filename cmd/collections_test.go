//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgketchum/openet-ptjpl/internal/registry"
)

func TestFormatCollections(t *testing.T) {
	var buf bytes.Buffer
	formatCollections(&buf, registry.Default())

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "PLATFORM")
	assert.Contains(t, output, "EXCLUSIONS")
	assert.Contains(t, output, "LANDSAT/LC08/C02/T1_L2")
	assert.Contains(t, output, "LANDSAT/LT04/C02/T1_L2")
	assert.Contains(t, output, "LANDSAT_8")
	assert.Contains(t, output, "1982-08-22")
	assert.Contains(t, output, "2022-01-01/..")

	// header, rule and one row per collection
	lines := strings.Split(strings.TrimSpace(output), "\n")
	assert.Len(t, lines, 7)
	for _, line := range lines[2:] {
		if strings.HasPrefix(line, "LANDSAT/LC09") {
			assert.Contains(t, line, "..")
		}
	}
}

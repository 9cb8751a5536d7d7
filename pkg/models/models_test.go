//go:build test || unit

package models_test

import (
	"encoding/json"
	"testing"

	"github.com/solo-io/cluster-stats/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddContainer(t *testing.T) {
	report := models.NewClusterReport("cluster")
	report.AddContainer("team-a", models.Bucket("Small"))
	report.AddContainer("team-a", models.Bucket("Small"))
	report.AddContainer("team-b", models.Bucket("other"))

	assert.Equal(t, map[models.Bucket]int{"Small": 2, "other": 1}, report.Buckets)
	assert.Equal(t, map[string]map[models.Bucket]int{
		"team-a": {"Small": 2},
		"team-b": {"other": 1},
	}, report.Namespaces)
}

// TestDecodeReport reads a report the way a consumer outside this module would
func TestDecodeReport(t *testing.T) {
	data := []byte(`{"name":"c","buckets":{"x-Large":2},"namespaces":{"default":{"x-Large":2}},"nodes":{"count":1,"cpu_percent":200,"memory_percent":200}}`)

	var report models.ClusterReport
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, 2, report.Buckets[models.Bucket("x-Large")])
	assert.Equal(t, 2, report.Namespaces["default"][models.Bucket("x-Large")])
	assert.Equal(t, 1, report.NodeSummary.Count)
	assert.Nil(t, report.Usage)
}

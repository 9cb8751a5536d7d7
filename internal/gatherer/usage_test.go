//go:build test || unit

package gatherer

import (
	"context"
	"errors"
	"testing"

	"github.com/solo-io/cluster-stats/internal/allocation"
	testutils "github.com/solo-io/cluster-stats/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	clienttesting "k8s.io/client-go/testing"
	v1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
)

func TestCollectUsage(t *testing.T) {
	result := &allocation.Result{TotalCPU: 4000, TotalMemory: 32 * 1024 * 1024 * 1024}

	tests := []struct {
		name          string
		metrics       []*v1beta1.NodeMetrics
		listErr       error
		result        *allocation.Result
		cpuPercent    float64
		memoryPercent float64
		expectError   error
	}{
		{
			name: "usage summed over nodes",
			metrics: []*v1beta1.NodeMetrics{
				testutils.NewNodeMetrics("n1", "500m", "4Gi"),
				testutils.NewNodeMetrics("n2", "500m", "4Gi"),
			},
			result:        result,
			cpuPercent:    25,
			memoryPercent: 25,
		},
		{
			name:          "no metrics reported",
			result:        result,
			cpuPercent:    0,
			memoryPercent: 0,
		},
		{
			name:        "metrics api fails",
			listErr:     errors.New("the server could not find the requested resource"),
			result:      result,
			expectError: errors.New("any"),
		},
		{
			name:        "no capacity",
			metrics:     []*v1beta1.NodeMetrics{testutils.NewNodeMetrics("n1", "1", "1Gi")},
			result:      &allocation.Result{},
			expectError: allocation.ErrNoCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := &v1beta1.NodeMetricsList{}
			for _, m := range tt.metrics {
				list.Items = append(list.Items, *m)
			}

			fakeMetricsClient := metricsfake.NewSimpleClientset()
			fakeMetricsClient.PrependReactor("list", "nodes", func(action clienttesting.Action) (handled bool, ret runtime.Object, err error) {
				if tt.listErr != nil {
					return true, nil, tt.listErr
				}
				return true, list, nil
			})

			usage, err := collectUsage(context.Background(), fakeMetricsClient, tt.result)
			if tt.expectError != nil {
				assert.Error(t, err)
				if errors.Is(tt.expectError, allocation.ErrNoCapacity) {
					assert.ErrorIs(t, err, allocation.ErrNoCapacity)
				}
				assert.Nil(t, usage)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tt.cpuPercent, usage.CPUPercent, 1e-9)
			assert.InDelta(t, tt.memoryPercent, usage.MemoryPercent, 1e-9)
		})
	}
}

func TestCollectUsageCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collectUsage(ctx, metricsfake.NewSimpleClientset(), &allocation.Result{TotalCPU: 1, TotalMemory: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

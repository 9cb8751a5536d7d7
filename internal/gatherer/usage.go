package gatherer

import (
	"context"
	"fmt"

	"github.com/solo-io/cluster-stats/internal/allocation"
	"github.com/solo-io/cluster-stats/internal/logging"
	"github.com/solo-io/cluster-stats/pkg/models"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// collectUsage sums the measured usage of every node and relates it to the allocatable totals of the scan
func collectUsage(ctx context.Context, metricsClient metricsv.Interface, result *allocation.Result) (*models.UsageSummary, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	nodeMetrics, err := metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list node metrics: %w", err)
	}

	var cpuMillis, memoryBytes int64
	for _, nm := range nodeMetrics.Items {
		cpuMillis += nm.Usage.Cpu().MilliValue()
		memoryBytes += nm.Usage.Memory().Value()
		logging.Debug("Node %s uses %dm cpu and %d bytes of memory", nm.Name, nm.Usage.Cpu().MilliValue(), nm.Usage.Memory().Value())
	}

	if result.TotalCPU == 0 || result.TotalMemory == 0 {
		return nil, allocation.ErrNoCapacity
	}

	return &models.UsageSummary{
		CPUPercent:    allocation.Percent(cpuMillis, result.TotalCPU),
		MemoryPercent: allocation.Percent(memoryBytes, result.TotalMemory),
	}, nil
}

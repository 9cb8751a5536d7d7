package gatherer

import (
	"context"
	"strings"

	"github.com/solo-io/cluster-stats/internal/allocation"
	"github.com/solo-io/cluster-stats/internal/cluster"
	"github.com/solo-io/cluster-stats/internal/logging"
	"github.com/solo-io/cluster-stats/internal/sizing"
	"github.com/solo-io/cluster-stats/pkg/models"
)

// DataSource is the read-only view of the cluster a scan needs
type DataSource interface {
	ListPods(ctx context.Context) ([]cluster.PodDescriptor, error)
	ListNodes(ctx context.Context) ([]cluster.NodeDescriptor, error)
	ListPodsOnNode(ctx context.Context, nodeName string) ([]cluster.PodDescriptor, error)
}

// ScanOptions tunes a scan. The zero value classifies every pod and walks nodes sequentially.
type ScanOptions struct {
	// ExcludeNamespaces drops pods from classification when their namespace contains any entry
	ExcludeNamespaces []string

	// SkipTerminating drops pods with a deletion timestamp from classification
	SkipTerminating bool

	// ObfuscateNames hashes namespace names in the report
	ObfuscateNames bool

	// ShowProgress renders a progress bar while nodes are aggregated
	ShowProgress bool

	// Aggregator options, e.g. concurrency and rate limiting
	AggregatorOptions []allocation.Option
}

// Scan classifies every container with limits, aggregates node allocation and returns the combined report.
// Errors from the source abort the scan and are returned unchanged.
func Scan(ctx context.Context, source DataSource, opts ScanOptions) (*models.ClusterReport, *allocation.Result, error) {
	report := models.NewClusterReport("")

	logging.Info("Gathering pod information")
	pods, err := source.ListPods(ctx)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("Found %d pods", len(pods))

	for _, pod := range pods {
		if skipPod(pod, opts) {
			logging.Debug("Skipping pod %s/%s from classification", pod.Namespace, pod.Name)
			continue
		}

		namespace := displayName(pod.Namespace, opts.ObfuscateNames)

		for _, container := range pod.Containers {
			// containers without limits are not classified, not even as "other"
			if !container.Limits.Present() {
				continue
			}
			bucket := sizing.Classify(container.Limits.Get("cpu", ""), container.Limits.Get("memory", ""))
			report.AddContainer(namespace, bucket)
		}
	}

	logging.Info("Gathering node information")
	nodes, err := source.ListNodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("Found %d nodes", len(nodes))

	aggOpts := opts.AggregatorOptions
	var progress *logging.Progress
	if opts.ShowProgress && len(nodes) > 0 {
		progress = logging.NewProgress("Processing nodes", len(nodes))
		aggOpts = append(aggOpts[:len(aggOpts):len(aggOpts)], allocation.WithNodeCallback(func(allocation.NodeAllocation) {
			progress.Increment()
		}))
	}

	aggregator := allocation.NewAggregator(source.ListPodsOnNode, aggOpts...)
	result, err := aggregator.Aggregate(ctx, nodes)
	if progress != nil {
		progress.Complete()
	}
	if err != nil {
		return nil, nil, err
	}

	report.NodeSummary = models.NodeSummary{
		Count:         len(nodes),
		CPUPercent:    result.CPUPercent,
		MemoryPercent: result.MemoryPercent,
		Nodes:         make(map[string]models.NodeLimits, len(result.Nodes)),
	}
	for _, n := range result.Nodes {
		report.NodeSummary.Nodes[displayName(n.Name, opts.ObfuscateNames)] = models.NodeLimits{
			AllocatableMillicores: n.AllocatableCPU,
			AllocatableBytes:      n.AllocatableMemory,
			LimitMillicores:       n.CPULimits,
			LimitBytes:            n.MemoryLimits,
			Pods:                  n.Pods,
		}
	}

	return report, result, nil
}

func skipPod(pod cluster.PodDescriptor, opts ScanOptions) bool {
	if opts.SkipTerminating && pod.Terminating {
		return true
	}
	for _, substr := range opts.ExcludeNamespaces {
		if substr != "" && strings.Contains(pod.Namespace, substr) {
			return true
		}
	}
	return false
}

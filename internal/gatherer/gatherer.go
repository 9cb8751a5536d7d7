package gatherer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/solo-io/cluster-stats/internal/allocation"
	"github.com/solo-io/cluster-stats/internal/cluster"
	"github.com/solo-io/cluster-stats/internal/logging"
	"github.com/solo-io/cluster-stats/internal/metrics"
	"github.com/solo-io/cluster-stats/internal/utils"
	"github.com/solo-io/cluster-stats/pkg/models"
	"golang.org/x/time/rate"
	"k8s.io/client-go/dynamic"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

const defaultTimeout = 5 * time.Minute

// GatherClusterReport connects to the cluster described by cfg, scans it and writes the report
func GatherClusterReport(ctx context.Context, cfg *utils.Config) error {
	logging.Debug("Gathering cluster report for %s", cfg.KubeContext)

	resources, err := cluster.DefaultResourceTable().WithOverrides(cfg.APIVersions)
	if err != nil {
		return fmt.Errorf("invalid api version overrides: %w", err)
	}

	restConfig, err := utils.RestConfig(cfg.Kubeconfig, cfg.KubeContext)
	if err != nil {
		return err
	}

	clients, err := utils.CreateKubernetesClients(ctx, restConfig, cfg.WithUsage)
	if err != nil {
		// a missing metrics client only disables usage, anything else is fatal
		if clients == nil {
			return fmt.Errorf("failed to create Kubernetes clients: %w", err)
		}
		logging.Warn("Failed to create metrics client: %v", err)
	}

	if cfg.WithUsage {
		if clients.HasMetrics {
			logging.Info("Metrics API available")
		} else {
			logging.Warn("Metrics API not available, usage will not be reported")
		}
	}

	var metricsClient metricsv.Interface
	if clients.HasMetrics {
		metricsClient = clients.Metrics
	}

	return run(ctx, cfg, clients.Dynamic, resources, metricsClient)
}

// run scans through the dynamic client and writes every configured output. Nothing is written if the scan fails.
func run(ctx context.Context, cfg *utils.Config, client dynamic.Interface, resources cluster.ResourceTable, metricsClient metricsv.Interface) error {
	outputFile := ReportPath(cfg.OutputDir, cfg.OutputFile, cfg.OutputFormat)

	// Create a context with a timeout so an unresponsive API server can not block forever
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	source := cluster.NewDynamicSource(client, resources)

	report, result, err := Scan(scanCtx, source, scanOptions(cfg))
	if err != nil {
		if scanCtx.Err() != nil {
			return fmt.Errorf("cluster scan cancelled: %w", scanCtx.Err())
		}
		return fmt.Errorf("failed to scan cluster: %w", err)
	}
	report.Name = displayName(cfg.KubeContext, cfg.ObfuscateNames)

	if metricsClient != nil {
		usage, err := collectUsage(scanCtx, metricsClient, result)
		if err != nil {
			logging.Warn("Failed to collect node usage: %v", err)
		} else {
			report.Usage = usage
		}
	}

	logReport(report)

	if err := saveReport(report, outputFile, cfg.OutputFormat); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		recorder := metrics.NewRecorder()
		recorder.Record(report)
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
		logging.Info("Saved metrics to file: %s", cfg.MetricsFile)
	}

	return nil
}

func scanOptions(cfg *utils.Config) ScanOptions {
	concurrency := cfg.MaxProcessors
	if concurrency <= 0 {
		concurrency = runtime.NumCPU() * 2
	}
	logging.Debug("Listing pods per node with up to %d concurrent requests", concurrency)

	aggOpts := []allocation.Option{allocation.WithConcurrency(concurrency)}
	if cfg.QPS > 0 {
		aggOpts = append(aggOpts, allocation.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.QPS), 1)))
	}

	return ScanOptions{
		ExcludeNamespaces: cfg.ExcludeNamespaces,
		SkipTerminating:   cfg.SkipTerminating,
		ObfuscateNames:    cfg.ObfuscateNames,
		ShowProgress:      !cfg.NoProgress,
		AggregatorOptions: aggOpts,
	}
}

func logReport(report *models.ClusterReport) {
	for _, b := range observedBuckets(report.Buckets) {
		logging.Debug("Size %s: %d containers", b, report.Buckets[b])
	}
	logging.Info("Number of nodes %d, average of CPU limits on nodes: %s%%, average of memory limits on nodes: %s%%",
		report.NodeSummary.Count, formatPercent(report.NodeSummary.CPUPercent), formatPercent(report.NodeSummary.MemoryPercent))
}

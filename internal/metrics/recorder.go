// Package metrics exposes a scan result as prometheus gauges that can be
// written in the text exposition format, e.g. for the node exporter textfile
// collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/solo-io/cluster-stats/pkg/models"
)

// Recorder holds the gauges for one report on its own registry.
type Recorder struct {
	registry        *prometheus.Registry
	bucketSize      *prometheus.GaugeVec
	nodes           prometheus.Gauge
	limitsPercent   *prometheus.GaugeVec
	usagePercent    *prometheus.GaugeVec
	namespaceBucket *prometheus.GaugeVec
}

// NewRecorder constructs a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		bucketSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cluster_stats_size_bucket_containers",
			Help: "Number of containers whose limits match a size bucket",
		}, []string{"bucket"}),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cluster_stats_nodes",
			Help: "Number of nodes in the cluster",
		}),
		limitsPercent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cluster_stats_limits_allocation_percent",
			Help: "Summed container limits as a percentage of total node allocatable",
		}, []string{"resource"}),
		usagePercent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cluster_stats_usage_percent",
			Help: "Measured node usage as a percentage of total node allocatable",
		}, []string{"resource"}),
		namespaceBucket: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cluster_stats_namespace_size_bucket_containers",
			Help: "Number of containers per namespace whose limits match a size bucket",
		}, []string{"namespace", "bucket"}),
	}
}

// Record publishes report on the recorder's gauges.
func (r *Recorder) Record(report *models.ClusterReport) {
	for bucket, count := range report.Buckets {
		r.bucketSize.WithLabelValues(string(bucket)).Set(float64(count))
	}
	for ns, buckets := range report.Namespaces {
		for bucket, count := range buckets {
			r.namespaceBucket.WithLabelValues(ns, string(bucket)).Set(float64(count))
		}
	}

	r.nodes.Set(float64(report.NodeSummary.Count))
	r.limitsPercent.WithLabelValues("cpu").Set(report.NodeSummary.CPUPercent)
	r.limitsPercent.WithLabelValues("memory").Set(report.NodeSummary.MemoryPercent)

	if report.Usage != nil {
		r.usagePercent.WithLabelValues("cpu").Set(report.Usage.CPUPercent)
		r.usagePercent.WithLabelValues("memory").Set(report.Usage.MemoryPercent)
	}
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the recorded metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

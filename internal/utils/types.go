package utils

import "time"

// Config represents the configuration for a single cluster scan
type Config struct {
	// KubeContext is the name of the Kubernetes context to use
	KubeContext string

	// Kubeconfig is an explicit kubeconfig path; empty uses KUBECONFIG or ~/.kube/config
	Kubeconfig string

	// ObfuscateNames indicates whether to obfuscate names of the cluster and namespaces
	ObfuscateNames bool

	// OutputDir is the directory the report is written to
	OutputDir string

	// OutputFormat is one of csv, json, yaml or yml
	OutputFormat string

	// OutputFile is the report file name without extension
	OutputFile string

	// MetricsFile, if set, receives the report in prometheus text format
	MetricsFile string

	// NoProgress disables the progress bar
	NoProgress bool

	// MaxProcessors bounds concurrent per-node pod listings, <= 0 means 2 x NumCPU
	MaxProcessors int

	// QPS limits per-node pod listings per second, 0 means unlimited
	QPS float64

	// Timeout is the deadline for the whole scan
	Timeout time.Duration

	// APIVersions overrides the default API version of a resource kind
	APIVersions map[string]string

	// ExcludeNamespaces skips pods from classification whose namespace contains any of these substrings
	ExcludeNamespaces []string

	// SkipTerminating skips pods with a deletion timestamp from classification
	SkipTerminating bool

	// WithUsage also gathers node usage from the metrics API
	WithUsage bool
}

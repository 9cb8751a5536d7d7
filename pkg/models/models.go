package models

// Bucket is the name of a size class, e.g. "Small" or "x-Large". Containers
// that match no class are counted as "other".
type Bucket string

// ClusterReport represents the top level structure of a scan
type ClusterReport struct {
	Name string `json:"name" yaml:"name"`

	// Buckets only holds buckets that were observed at least once
	Buckets map[Bucket]int `json:"buckets" yaml:"buckets"`

	// Namespaces breaks the bucket counts down per namespace
	Namespaces map[string]map[Bucket]int `json:"namespaces" yaml:"namespaces"`

	NodeSummary NodeSummary   `json:"nodes" yaml:"nodes"`
	Usage       *UsageSummary `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// NodeSummary represents the node count and the average allocation of limits
type NodeSummary struct {
	Count         int                   `json:"count" yaml:"count"`
	CPUPercent    float64               `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryPercent float64               `json:"memory_percent" yaml:"memory_percent"`
	Nodes         map[string]NodeLimits `json:"details,omitempty" yaml:"details,omitempty"`
}

// NodeLimits represents the canonical totals of a single node
type NodeLimits struct {
	AllocatableMillicores int64 `json:"allocatable_millicores" yaml:"allocatable_millicores"`
	AllocatableBytes      int64 `json:"allocatable_bytes" yaml:"allocatable_bytes"`
	LimitMillicores       int64 `json:"limit_millicores" yaml:"limit_millicores"`
	LimitBytes            int64 `json:"limit_bytes" yaml:"limit_bytes"`
	Pods                  int   `json:"pods" yaml:"pods"`
}

// UsageSummary represents measured node usage against allocatable capacity
type UsageSummary struct {
	CPUPercent    float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent" yaml:"memory_percent"`
}

// NewClusterReport creates a new ClusterReport with initialized maps
func NewClusterReport(name string) *ClusterReport {
	return &ClusterReport{
		Name:       name,
		Buckets:    make(map[Bucket]int),
		Namespaces: make(map[string]map[Bucket]int),
	}
}

// AddContainer counts one container of the given namespace in bucket
func (r *ClusterReport) AddContainer(namespace string, bucket Bucket) {
	r.Buckets[bucket]++
	ns, ok := r.Namespaces[namespace]
	if !ok {
		ns = make(map[Bucket]int)
		r.Namespaces[namespace] = ns
	}
	ns[bucket]++
}

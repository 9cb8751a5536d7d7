//go:build test || unit

package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solo-io/cluster-stats/internal/cluster"
	"github.com/solo-io/cluster-stats/internal/quantity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func node(name, cpu, memory string) cluster.NodeDescriptor {
	return cluster.NodeDescriptor{Name: name, Allocatable: map[string]string{"cpu": cpu, "memory": memory}}
}

func pod(name, nodeName string, limits ...cluster.ContainerLimits) cluster.PodDescriptor {
	p := cluster.PodDescriptor{Namespace: "default", Name: name, NodeName: nodeName}
	for i, l := range limits {
		p.Containers = append(p.Containers, cluster.Container{Name: fmt.Sprintf("c%d", i), Limits: l})
	}
	return p
}

// staticLister serves pods by node name, the way a field selector would.
func staticLister(pods ...cluster.PodDescriptor) PodLister {
	return func(_ context.Context, nodeName string) ([]cluster.PodDescriptor, error) {
		var out []cluster.PodDescriptor
		for _, p := range pods {
			if p.NodeName == nodeName {
				out = append(out, p)
			}
		}
		return out, nil
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name          string
		nodes         []cluster.NodeDescriptor
		pods          []cluster.PodDescriptor
		cpuPercent    float64
		memoryPercent float64
	}{
		{
			name:          "Two nodes without pods",
			nodes:         []cluster.NodeDescriptor{node("a", "2", "8Gi"), node("b", "2", "8Gi")},
			cpuPercent:    0,
			memoryPercent: 0,
		},
		{
			name:          "Half of one core",
			nodes:         []cluster.NodeDescriptor{node("a", "1", "1Gi")},
			pods:          []cluster.PodDescriptor{pod("p", "a", cluster.ContainerLimits{"cpu": "500m", "memory": "512Mi"})},
			cpuPercent:    50,
			memoryPercent: 50,
		},
		{
			name:  "Limits above allocatable are not clamped",
			nodes: []cluster.NodeDescriptor{node("a", "4", "32Gi")},
			pods: []cluster.PodDescriptor{
				pod("p1", "a", cluster.ContainerLimits{"cpu": "4", "memory": "32Gi"}),
				pod("p2", "a", cluster.ContainerLimits{"cpu": "4", "memory": "32Gi"}),
			},
			cpuPercent:    200,
			memoryPercent: 200,
		},
		{
			name:  "Missing limit key counts as zero",
			nodes: []cluster.NodeDescriptor{node("a", "2", "4Gi")},
			pods: []cluster.PodDescriptor{
				pod("p", "a", cluster.ContainerLimits{"memory": "1Gi"}),
			},
			cpuPercent:    0,
			memoryPercent: 25,
		},
		{
			name:  "Containers without limits are skipped",
			nodes: []cluster.NodeDescriptor{node("a", "1", "1Gi")},
			pods: []cluster.PodDescriptor{
				pod("p", "a", nil, cluster.ContainerLimits{}, cluster.ContainerLimits{"cpu": "250m"}),
			},
			cpuPercent:    25,
			memoryPercent: 0,
		},
		{
			name:  "Totals are summed across nodes before dividing",
			nodes: []cluster.NodeDescriptor{node("a", "1", "1Gi"), node("b", "3", "3Gi")},
			pods: []cluster.PodDescriptor{
				pod("p", "a", cluster.ContainerLimits{"cpu": "1", "memory": "1Gi"}),
			},
			cpuPercent:    25,
			memoryPercent: 25,
		},
		{
			name:  "Ratio is rounded to three decimals",
			nodes: []cluster.NodeDescriptor{node("a", "3", "3Gi")},
			pods: []cluster.PodDescriptor{
				pod("p", "a", cluster.ContainerLimits{"cpu": "1", "memory": "2Gi"}),
			},
			cpuPercent:    33.3,
			memoryPercent: 66.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Aggregate(context.Background(), tt.nodes, staticLister(tt.pods...))
			require.NoError(t, err)
			assert.InDelta(t, tt.cpuPercent, result.CPUPercent, 1e-9)
			assert.InDelta(t, tt.memoryPercent, result.MemoryPercent, 1e-9)
			assert.Len(t, result.Nodes, len(tt.nodes))
		})
	}
}

func TestAggregateNodeTotals(t *testing.T) {
	nodes := []cluster.NodeDescriptor{node("a", "1", "1Gi"), node("b", "2", "2Gi")}
	pods := []cluster.PodDescriptor{
		pod("p1", "b", cluster.ContainerLimits{"cpu": "500m", "memory": "100M"}),
		pod("p2", "b", cluster.ContainerLimits{"cpu": "1", "memory": "100Mi"}),
	}

	result, err := Aggregate(context.Background(), nodes, staticLister(pods...))
	require.NoError(t, err)

	assert.Equal(t, NodeAllocation{Name: "a", AllocatableCPU: 1000, AllocatableMemory: 1 << 30}, result.Nodes[0])
	assert.Equal(t, NodeAllocation{
		Name:              "b",
		AllocatableCPU:    2000,
		AllocatableMemory: 2 << 30,
		CPULimits:         1500,
		MemoryLimits:      200 << 20,
		Pods:              2,
	}, result.Nodes[1])
	assert.Equal(t, int64(3000), result.TotalCPU)
	assert.Equal(t, int64(3<<30), result.TotalMemory)
	assert.Equal(t, int64(1500), result.TotalCPULimits)
	assert.Equal(t, int64(200<<20), result.TotalMemoryLimits)
}

func TestAggregateNoCapacity(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []cluster.NodeDescriptor
		resource quantity.Family
	}{
		{name: "No nodes", nodes: nil, resource: quantity.CPU},
		{name: "Zero cpu", nodes: []cluster.NodeDescriptor{node("a", "0", "1Gi")}, resource: quantity.CPU},
		{name: "Zero memory", nodes: []cluster.NodeDescriptor{node("a", "1", "0")}, resource: quantity.Memory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Aggregate(context.Background(), tt.nodes, staticLister())
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoCapacity))

			var noCapacity *NoCapacityError
			require.ErrorAs(t, err, &noCapacity)
			assert.Equal(t, tt.resource, noCapacity.Resource)
		})
	}
}

func TestAggregateErrors(t *testing.T) {
	t.Run("Malformed container limit", func(t *testing.T) {
		nodes := []cluster.NodeDescriptor{node("a", "1", "1Gi")}
		pods := []cluster.PodDescriptor{pod("p", "a", cluster.ContainerLimits{"cpu": "lots"})}

		_, err := Aggregate(context.Background(), nodes, staticLister(pods...))
		var parseErr *quantity.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "lots", parseErr.Raw)
	})

	t.Run("Malformed allocatable", func(t *testing.T) {
		_, err := Aggregate(context.Background(), []cluster.NodeDescriptor{node("a", "1", "1G")}, staticLister())
		var parseErr *quantity.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, quantity.Memory, parseErr.Family)
	})

	t.Run("Missing allocatable", func(t *testing.T) {
		_, err := Aggregate(context.Background(), []cluster.NodeDescriptor{{Name: "a"}}, staticLister())
		assert.ErrorIs(t, err, ErrMissingAllocatable)
	})

	t.Run("Lister errors are returned unchanged", func(t *testing.T) {
		boom := errors.New("forbidden")
		lister := func(context.Context, string) ([]cluster.PodDescriptor, error) { return nil, boom }

		_, err := Aggregate(context.Background(), []cluster.NodeDescriptor{node("a", "1", "1Gi")}, lister)
		assert.Equal(t, boom, err)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Aggregate(ctx, []cluster.NodeDescriptor{node("a", "1", "1Gi")}, staticLister())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAggregatorConcurrency(t *testing.T) {
	var nodes []cluster.NodeDescriptor
	var pods []cluster.PodDescriptor
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("node-%d", i)
		nodes = append(nodes, node(name, "1", "1Gi"))
		pods = append(pods, pod("p-"+name, name, cluster.ContainerLimits{"cpu": "100m", "memory": "256Mi"}))
	}

	var inFlight, maxInFlight int32
	base := staticLister(pods...)
	lister := func(ctx context.Context, nodeName string) ([]cluster.PodDescriptor, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return base(ctx, nodeName)
	}

	var mu sync.Mutex
	var seen []string
	aggregator := NewAggregator(lister,
		WithConcurrency(4),
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithNodeCallback(func(n NodeAllocation) {
			mu.Lock()
			seen = append(seen, n.Name)
			mu.Unlock()
		}),
	)

	result, err := aggregator.Aggregate(context.Background(), nodes)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(4))
	assert.Len(t, seen, 20)
	assert.InDelta(t, 10.0, result.CPUPercent, 1e-9)
	assert.InDelta(t, 25.0, result.MemoryPercent, 1e-9)
	for i, n := range result.Nodes {
		assert.Equal(t, nodes[i].Name, n.Name)
	}

	sequential, err := Aggregate(context.Background(), nodes, staticLister(pods...))
	require.NoError(t, err)
	assert.Equal(t, sequential.TotalCPULimits, result.TotalCPULimits)
	assert.Equal(t, sequential.TotalMemoryLimits, result.TotalMemoryLimits)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name     string
		limits   int64
		total    int64
		expected float64
	}{
		{name: "half", limits: 500, total: 1000, expected: 50.0},
		{name: "over committed", limits: 2, total: 1, expected: 200.0},
		{name: "nothing", limits: 0, total: 7, expected: 0.0},
		{name: "truncated fraction", limits: 1234, total: 10000, expected: 12.3},
		{name: "third", limits: 1, total: 3, expected: 33.3},
		// ratios whose decimal spelling ends in 5 round by their binary value
		{name: "0.0005 rounds up", limits: 1, total: 2000, expected: 0.1},
		{name: "0.0025 rounds up", limits: 5, total: 2000, expected: 0.3},
		{name: "0.0055 rounds down", limits: 11, total: 2000, expected: 0.5},
		{name: "25m on a 2 core node", limits: 25, total: 2000, expected: 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Percent(tt.limits, tt.total), 1e-9)
		})
	}
}

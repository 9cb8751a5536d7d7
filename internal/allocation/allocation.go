// Package allocation sums node allocatable capacity and the limits of the pods
// scheduled to each node, and turns the totals into cluster-wide percentages.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/solo-io/cluster-stats/internal/cluster"
	"github.com/solo-io/cluster-stats/internal/quantity"
	"golang.org/x/time/rate"
)

var (
	// ErrNoCapacity is matched by every NoCapacityError.
	ErrNoCapacity = errors.New("no allocatable capacity")

	ErrMissingAllocatable = errors.New("node reports no allocatable value")
)

// NoCapacityError is returned when the nodes report zero total allocatable
// capacity for a resource, so no percentage can be computed.
type NoCapacityError struct {
	Resource quantity.Family
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("%v: total allocatable %s across all nodes is zero", ErrNoCapacity, e.Resource)
}

func (e *NoCapacityError) Unwrap() error {
	return ErrNoCapacity
}

// PodLister returns the pods scheduled to a node.
type PodLister func(ctx context.Context, nodeName string) ([]cluster.PodDescriptor, error)

// NodeAllocation holds the canonical totals for one node.
type NodeAllocation struct {
	Name              string
	AllocatableCPU    int64
	AllocatableMemory int64
	CPULimits         int64
	MemoryLimits      int64
	Pods              int
}

// Result is the cluster-wide aggregate.
type Result struct {
	// Nodes is in the order the nodes were passed in.
	Nodes []NodeAllocation

	TotalCPU          int64
	TotalMemory       int64
	TotalCPULimits    int64
	TotalMemoryLimits int64

	CPUPercent    float64
	MemoryPercent float64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds how many nodes are listed at once. Values below 1
// mean sequential.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

// WithRateLimiter throttles the per-node pod listings.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(a *Aggregator) {
		a.limiter = l
	}
}

// WithNodeCallback registers fn to be called after each node is summed.
// fn may be called from several goroutines.
func WithNodeCallback(fn func(NodeAllocation)) Option {
	return func(a *Aggregator) {
		a.onNode = fn
	}
}

// Aggregator computes a Result from a node list and a pod lister.
type Aggregator struct {
	lister      PodLister
	concurrency int
	limiter     *rate.Limiter
	onNode      func(NodeAllocation)
}

// NewAggregator creates an Aggregator. Without options nodes are processed
// sequentially and listings are not throttled.
func NewAggregator(lister PodLister, opts ...Option) *Aggregator {
	a := &Aggregator{
		lister:      lister,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate is a sequential NewAggregator(lister).Aggregate(ctx, nodes).
func Aggregate(ctx context.Context, nodes []cluster.NodeDescriptor, lister PodLister) (*Result, error) {
	return NewAggregator(lister).Aggregate(ctx, nodes)
}

// Aggregate sums every node and its pods. The first error aborts the whole
// aggregation; errors from the lister are returned unchanged.
func (a *Aggregator) Aggregate(ctx context.Context, nodes []cluster.NodeDescriptor) (*Result, error) {
	allocations := make([]NodeAllocation, len(nodes))

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	semaphore := make(chan struct{}, a.concurrency)

	for i := range nodes {
		if workerCtx.Err() != nil {
			break
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if workerCtx.Err() != nil {
				return
			}

			alloc, err := a.allocateNode(workerCtx, nodes[i])
			if err != nil {
				fail(err)
				return
			}
			allocations[i] = alloc

			if a.onNode != nil {
				a.onNode(alloc)
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Nodes: allocations}
	for _, n := range allocations {
		result.TotalCPU += n.AllocatableCPU
		result.TotalMemory += n.AllocatableMemory
		result.TotalCPULimits += n.CPULimits
		result.TotalMemoryLimits += n.MemoryLimits
	}

	if result.TotalCPU == 0 {
		return nil, &NoCapacityError{Resource: quantity.CPU}
	}
	if result.TotalMemory == 0 {
		return nil, &NoCapacityError{Resource: quantity.Memory}
	}
	result.CPUPercent = Percent(result.TotalCPULimits, result.TotalCPU)
	result.MemoryPercent = Percent(result.TotalMemoryLimits, result.TotalMemory)

	return result, nil
}

func (a *Aggregator) allocateNode(ctx context.Context, node cluster.NodeDescriptor) (NodeAllocation, error) {
	alloc := NodeAllocation{Name: node.Name}

	cpuRaw := node.Allocatable["cpu"]
	if cpuRaw == "" {
		return alloc, fmt.Errorf("node %s: %w: cpu", node.Name, ErrMissingAllocatable)
	}
	memRaw := node.Allocatable["memory"]
	if memRaw == "" {
		return alloc, fmt.Errorf("node %s: %w: memory", node.Name, ErrMissingAllocatable)
	}

	cpu, err := quantity.New(quantity.CPU, cpuRaw)
	if err != nil {
		return alloc, fmt.Errorf("node %s allocatable: %w", node.Name, err)
	}
	mem, err := quantity.New(quantity.Memory, memRaw)
	if err != nil {
		return alloc, fmt.Errorf("node %s allocatable: %w", node.Name, err)
	}
	alloc.AllocatableCPU, alloc.AllocatableMemory = cpu.Value, mem.Value

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return alloc, err
		}
	}

	pods, err := a.lister(ctx, node.Name)
	if err != nil {
		return alloc, err
	}
	alloc.Pods = len(pods)

	for _, pod := range pods {
		for _, c := range pod.Containers {
			if !c.Limits.Present() {
				continue
			}
			cpu, err := quantity.New(quantity.CPU, c.Limits.Get("cpu", "0"))
			if err != nil {
				return alloc, fmt.Errorf("pod %s/%s container %s: %w", pod.Namespace, pod.Name, c.Name, err)
			}
			mem, err := quantity.New(quantity.Memory, c.Limits.Get("memory", "0"))
			if err != nil {
				return alloc, fmt.Errorf("pod %s/%s container %s: %w", pod.Namespace, pod.Name, c.Name, err)
			}
			alloc.CPULimits += cpu.Value
			alloc.MemoryLimits += mem.Value
		}
	}
	return alloc, nil
}

// Percent rounds limits/total to three decimals and scales it to a
// percentage. Values above 100 are kept. total must not be zero.
func Percent(limits, total int64) float64 {
	ratio := float64(limits) / float64(total)
	// decimal formatting rounds the exact binary value of ratio
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(ratio, 'f', 3, 64), 64)
	if err != nil {
		return ratio * 100
	}
	return rounded * 100
}

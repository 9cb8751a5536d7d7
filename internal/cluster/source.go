// Package cluster lists resources from the cluster through the dynamic client
// and reduces pods and nodes to the descriptors used by the scanner.
package cluster

import (
	"context"
	"fmt"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/dynamic"
)

const defaultPageSize = 500

// ListOptions scopes a ListResources call.
type ListOptions struct {
	// Namespace is ignored for cluster scoped kinds. Empty means all namespaces.
	Namespace string

	FieldSelector string
}

// DynamicSource is a read-only view of the cluster backed by a dynamic client.
type DynamicSource struct {
	client    dynamic.Interface
	resources ResourceTable
	pageSize  int64
}

// NewDynamicSource creates a source that resolves kinds through resources.
func NewDynamicSource(client dynamic.Interface, resources ResourceTable) *DynamicSource {
	return &DynamicSource{
		client:    client,
		resources: resources,
		pageSize:  defaultPageSize,
	}
}

// ListResources lists every object of kind, following continue tokens.
// Errors from the API server are returned as is.
func (s *DynamicSource) ListResources(ctx context.Context, kind Kind, opts ListOptions) ([]unstructured.Unstructured, error) {
	gvr, info, err := s.resources.Lookup(kind)
	if err != nil {
		return nil, err
	}

	var ri dynamic.ResourceInterface = s.client.Resource(gvr)
	if info.Namespaced {
		ri = s.client.Resource(gvr).Namespace(opts.Namespace)
	}

	var items []unstructured.Unstructured
	listOpts := metav1.ListOptions{FieldSelector: opts.FieldSelector, Limit: s.pageSize}
	for {
		list, err := ri.List(ctx, listOpts)
		if err != nil {
			return nil, err
		}
		items = append(items, list.Items...)

		if list.GetContinue() == "" {
			return items, nil
		}
		listOpts.Continue = list.GetContinue()
	}
}

// ListPods lists pods in all namespaces.
func (s *DynamicSource) ListPods(ctx context.Context) ([]PodDescriptor, error) {
	return s.listPods(ctx, ListOptions{})
}

// ListPodsOnNode lists the pods scheduled to nodeName. Filtering is done by
// the API server.
func (s *DynamicSource) ListPodsOnNode(ctx context.Context, nodeName string) ([]PodDescriptor, error) {
	return s.listPods(ctx, ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", nodeName).String(),
	})
}

// ListNodes lists all nodes.
func (s *DynamicSource) ListNodes(ctx context.Context) ([]NodeDescriptor, error) {
	items, err := s.ListResources(ctx, Node, ListOptions{})
	if err != nil {
		return nil, err
	}

	nodes := make([]NodeDescriptor, 0, len(items))
	for i := range items {
		node, err := DecodeNode(&items[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *DynamicSource) listPods(ctx context.Context, opts ListOptions) ([]PodDescriptor, error) {
	items, err := s.ListResources(ctx, Pod, opts)
	if err != nil {
		return nil, err
	}

	pods := make([]PodDescriptor, 0, len(items))
	for i := range items {
		pod, err := DecodePod(&items[i])
		if err != nil {
			return nil, err
		}
		pods = append(pods, pod)
	}
	return pods, nil
}

// DecodePod extracts a PodDescriptor, keeping limit strings exactly as served.
func DecodePod(u *unstructured.Unstructured) (PodDescriptor, error) {
	pod := PodDescriptor{
		Namespace:   u.GetNamespace(),
		Name:        u.GetName(),
		Terminating: u.GetDeletionTimestamp() != nil,
	}

	nodeName, _, err := unstructured.NestedString(u.Object, "spec", "nodeName")
	if err != nil {
		return PodDescriptor{}, fmt.Errorf("pod %s/%s: %w", pod.Namespace, pod.Name, err)
	}
	pod.NodeName = nodeName

	containers, _, err := unstructured.NestedSlice(u.Object, "spec", "containers")
	if err != nil {
		return PodDescriptor{}, fmt.Errorf("pod %s/%s: %w", pod.Namespace, pod.Name, err)
	}

	for i, c := range containers {
		obj, ok := c.(map[string]interface{})
		if !ok {
			return PodDescriptor{}, fmt.Errorf("pod %s/%s: container %d is %T, not an object", pod.Namespace, pod.Name, i, c)
		}
		container, err := decodeContainer(obj)
		if err != nil {
			return PodDescriptor{}, fmt.Errorf("pod %s/%s: %w", pod.Namespace, pod.Name, err)
		}
		pod.Containers = append(pod.Containers, container)
	}
	return pod, nil
}

func decodeContainer(obj map[string]interface{}) (Container, error) {
	name, _, _ := unstructured.NestedString(obj, "name")
	container := Container{Name: name}

	raw, found, err := unstructured.NestedFieldNoCopy(obj, "resources", "limits")
	if err != nil {
		return Container{}, fmt.Errorf("container %s: %w", name, err)
	}
	if !found || raw == nil {
		return container, nil
	}

	limits, err := stringMap(raw)
	if err != nil {
		return Container{}, fmt.Errorf("container %s limits: %w", name, err)
	}
	container.Limits = limits
	return container, nil
}

// DecodeNode extracts a NodeDescriptor from status.allocatable.
func DecodeNode(u *unstructured.Unstructured) (NodeDescriptor, error) {
	node := NodeDescriptor{Name: u.GetName()}

	raw, found, err := unstructured.NestedFieldNoCopy(u.Object, "status", "allocatable")
	if err != nil {
		return NodeDescriptor{}, fmt.Errorf("node %s: %w", node.Name, err)
	}
	if !found || raw == nil {
		return node, nil
	}

	allocatable, err := stringMap(raw)
	if err != nil {
		return NodeDescriptor{}, fmt.Errorf("node %s allocatable: %w", node.Name, err)
	}
	node.Allocatable = allocatable
	return node, nil
}

// stringMap converts a quantity map. Quantities are served as strings, but
// hand-written objects may carry bare numbers.
func stringMap(raw interface{}) (map[string]string, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case int:
			out[k] = strconv.Itoa(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("value of %q is %T", k, v)
		}
	}
	return out, nil
}

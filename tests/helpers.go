package tests

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	v1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
)

// Helper function to create a container; nil limits leaves resources.limits out entirely
func NewContainer(name string, limits map[string]string) map[string]interface{} {
	resources := map[string]interface{}{}
	if limits != nil {
		l := map[string]interface{}{}
		for k, v := range limits {
			l[k] = v
		}
		resources["limits"] = l
	}
	return map[string]interface{}{
		"name":      name,
		"image":     "registry.k8s.io/pause:3.9",
		"resources": resources,
	}
}

// Helper function to create a simple pod as an unstructured object
func NewPod(namespace, name, nodeName string, containers ...map[string]interface{}) *unstructured.Unstructured {
	cs := make([]interface{}, 0, len(containers))
	for _, c := range containers {
		cs = append(cs, c)
	}
	spec := map[string]interface{}{
		"containers": cs,
	}
	if nodeName != "" {
		spec["nodeName"] = nodeName
	}
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "v1",
			"kind":       "Pod",
			"metadata": map[string]interface{}{
				"name":      name,
				"namespace": namespace,
			},
			"spec": spec,
		},
	}
}

// Helper function to create a node with allocatable capacity as an unstructured object
func NewNode(name, cpuAllocatable, memAllocatable string) *unstructured.Unstructured {
	allocatable := map[string]interface{}{}
	if cpuAllocatable != "" {
		allocatable["cpu"] = cpuAllocatable
	}
	if memAllocatable != "" {
		allocatable["memory"] = memAllocatable
	}
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "v1",
			"kind":       "Node",
			"metadata": map[string]interface{}{
				"name": name,
			},
			"status": map[string]interface{}{
				"allocatable": allocatable,
			},
		},
	}
}

// Helper function to create node metrics
func NewNodeMetrics(name, cpuUsage, memUsage string) *v1beta1.NodeMetrics {
	return &v1beta1.NodeMetrics{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
		Usage: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(cpuUsage),
			corev1.ResourceMemory: resource.MustParse(memUsage),
		},
	}
}

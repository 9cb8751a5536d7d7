package cluster

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Kind is a resource kind the data source knows how to list.
type Kind string

const (
	Pod              Kind = "Pod"
	Node             Kind = "Node"
	Deployment       Kind = "Deployment"
	DeploymentConfig Kind = "DeploymentConfig"
	StatefulSet      Kind = "StatefulSet"
	Namespace        Kind = "Namespace"
)

// ResourceInfo binds a kind to the API that serves it.
type ResourceInfo struct {
	APIVersion string
	Resource   string
	Namespaced bool
}

// ResourceTable maps kinds to their API version and resource name.
type ResourceTable map[Kind]ResourceInfo

// UnknownKindError is returned for kinds missing from a ResourceTable.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown resource kind %q", e.Kind)
}

// DefaultResourceTable returns the table used when no overrides are given.
func DefaultResourceTable() ResourceTable {
	return ResourceTable{
		Deployment:       {APIVersion: "apps/v1", Resource: "deployments", Namespaced: true},
		DeploymentConfig: {APIVersion: "apps.openshift.io/v1", Resource: "deploymentconfigs", Namespaced: true},
		StatefulSet:      {APIVersion: "apps/v1", Resource: "statefulsets", Namespaced: true},
		Pod:              {APIVersion: "v1", Resource: "pods", Namespaced: true},
		Namespace:        {APIVersion: "v1", Resource: "namespaces"},
		Node:             {APIVersion: "v1", Resource: "nodes"},
	}
}

// WithOverrides returns a copy of t whose API versions are replaced by the
// given kind to API version pairs.
func (t ResourceTable) WithOverrides(apiVersions map[string]string) (ResourceTable, error) {
	out := make(ResourceTable, len(t))
	for k, v := range t {
		out[k] = v
	}

	for kind, apiVersion := range apiVersions {
		info, ok := out[Kind(kind)]
		if !ok {
			return nil, fmt.Errorf("%w, known kinds: %v", &UnknownKindError{Kind: Kind(kind)}, t.Kinds())
		}
		if _, err := schema.ParseGroupVersion(apiVersion); err != nil || strings.TrimSpace(apiVersion) == "" {
			return nil, fmt.Errorf("invalid api version %q for kind %s", apiVersion, kind)
		}
		info.APIVersion = apiVersion
		out[Kind(kind)] = info
	}
	return out, nil
}

// Lookup resolves kind to its group/version/resource.
func (t ResourceTable) Lookup(kind Kind) (schema.GroupVersionResource, ResourceInfo, error) {
	info, ok := t[kind]
	if !ok {
		return schema.GroupVersionResource{}, ResourceInfo{}, &UnknownKindError{Kind: kind}
	}
	gv, err := schema.ParseGroupVersion(info.APIVersion)
	if err != nil {
		return schema.GroupVersionResource{}, ResourceInfo{}, fmt.Errorf("kind %s: %w", kind, err)
	}
	return gv.WithResource(info.Resource), info, nil
}

// Kinds returns the kinds in t sorted by name.
func (t ResourceTable) Kinds() []Kind {
	kinds := make([]Kind, 0, len(t))
	for k := range t {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

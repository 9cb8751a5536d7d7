package cluster

// ContainerLimits holds the raw limit strings of a container keyed by resource
// name. A nil map means the container declares no limits at all.
type ContainerLimits map[string]string

// Present reports whether the container has a non-empty limits object.
func (l ContainerLimits) Present() bool {
	return len(l) > 0
}

// Get returns the raw value for key, or def when the key is absent.
func (l ContainerLimits) Get(key, def string) string {
	if v, ok := l[key]; ok {
		return v
	}
	return def
}

// Container is the part of a container spec the scanner cares about.
type Container struct {
	Name   string
	Limits ContainerLimits
}

// PodDescriptor is a pod reduced to its placement and container limits.
type PodDescriptor struct {
	Namespace   string
	Name        string
	NodeName    string
	Terminating bool
	Containers  []Container
}

// NodeDescriptor is a node reduced to its allocatable capacity.
type NodeDescriptor struct {
	Name        string
	Allocatable map[string]string
}

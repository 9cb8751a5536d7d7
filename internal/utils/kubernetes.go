package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Clients bundles the clients used during a scan
type Clients struct {
	Dynamic    dynamic.Interface
	Kubernetes kubernetes.Interface
	Metrics    metricsv.Interface
	HasMetrics bool
}

func loadingRules(kubeconfig string) *clientcmd.ClientConfigLoadingRules {
	if kubeconfig != "" {
		return &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
	}
	// Use the default loading rules (which respect the KUBECONFIG env variable)
	return clientcmd.NewDefaultClientConfigLoadingRules()
}

// GetCurrentContext returns the current Kubernetes context from the kubeconfig
func GetCurrentContext(kubeconfig string) (string, error) {
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules(kubeconfig), &clientcmd.ConfigOverrides{})

	// Get the raw kubeconfig
	rawConfig, err := clientConfig.RawConfig()
	if err != nil {
		return "", err
	}

	if rawConfig.CurrentContext == "" {
		return "", ErrNoCurrentContext
	}

	return rawConfig.CurrentContext, nil
}

// DefaultKubeconfigPath returns KUBECONFIG, or ~/.kube/config
func DefaultKubeconfigPath() (string, error) {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", ErrHomeNotFound
	}
	return filepath.Join(home, ".kube", "config"), nil
}

// RestConfig builds the REST config for the given kubeconfig path and context
func RestConfig(kubeconfig, kubeContext string) (*rest.Config, error) {
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules(kubeconfig),
		&clientcmd.ConfigOverrides{CurrentContext: kubeContext}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes config: %w", err)
	}

	// Increase QPS and burst to avoid client-side throttling; per-node listings are limited separately
	config.QPS = 100
	config.Burst = 100
	return config, nil
}

// CreateKubernetesClients creates the clients for the specified context and verifies the connection.
// withMetrics controls whether the metrics API is probed at all.
func CreateKubernetesClients(ctx context.Context, config *rest.Config, withMetrics bool) (*Clients, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	// Verify the connection
	_, err = clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Kubernetes API server: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	clients := &Clients{
		Dynamic:    dynamicClient,
		Kubernetes: clientset,
	}
	if !withMetrics {
		return clients, nil
	}

	// Create metrics client
	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return clients, fmt.Errorf("failed to create metrics client: %w", err)
	}
	clients.Metrics = metricsClient
	clients.HasMetrics = HasMetricsAPI(ctx, metricsClient)

	return clients, nil
}

// HasMetricsAPI checks if the metrics API is available by calling it
func HasMetricsAPI(ctx context.Context, metricsClient metricsv.Interface) bool {
	if metricsClient == nil {
		return false
	}
	_, err := metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{Limit: 1})
	return err == nil
}

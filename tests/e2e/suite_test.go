//go:build test || e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// BaseTestSuite owns one kind cluster per suite, optionally with metrics-server and a workload manifest
type BaseTestSuite struct {
	suite.Suite
	kubeconfigPath string
}

func (b *BaseTestSuite) SetupBase(t *testing.T, clusterName string, metricsServer bool, manifests ...string) {
	checkForPrerequisites(t, metricsServer)

	b.kubeconfigPath = createKindCluster(t, clusterName, "")
	t.Logf("Using kubeconfig: %s", b.kubeconfigPath)

	if metricsServer {
		t.Log("Installing Kubernetes Metrics Server...")
		installMetricsServer(t, b.kubeconfigPath)
	}

	for _, manifest := range manifests {
		t.Logf("Applying input manifest: %s", manifest)
		applyKubectl(t, b.kubeconfigPath, manifest)
	}
}

func (b *BaseTestSuite) TearDownBase(t *testing.T, clusterName string) {
	t.Log("Tearing down base E2E test suite...")
	deleteKindCluster(t, clusterName, b.kubeconfigPath)
}

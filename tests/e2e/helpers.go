//go:build test || e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/solo-io/cluster-stats/pkg/models"
)

// systemNamespaces are excluded from classification so the expected output does not depend on the kind release
var systemNamespaces = []string{"kube-", "local-path-storage"}

// runCommand executes a shell command and returns its output or an error.
func runCommand(t *testing.T, name string, args ...string) string {
	cmd := exec.Command(name, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Command '%s %s' failed: %v\nOutput: %s", name, strings.Join(args, " "), err, string(output))
	}

	t.Logf("Command '%s %s' output: %s", name, strings.Join(args, " "), string(output))
	return string(output)
}

// createKindCluster creates a Kind cluster with the given name.
func createKindCluster(t *testing.T, clusterName string, kindConfigPath string) (kubeconfigPath string) {
	args := []string{"create", "cluster", "--name", clusterName}
	if kindConfigPath != "" {
		if _, statErr := os.Stat(kindConfigPath); os.IsNotExist(statErr) {
			t.Fatalf("kind configuration file not found at '%s'", kindConfigPath)
		}

		args = append(args, "--config", kindConfigPath)
	}
	args = append(args, "--wait", "5m")

	// Create the cluster
	_ = runCommand(t, "kind", args...)

	// Get the kubeconfig content
	kubeconfigContent := runCommand(t, "kind", "get", "kubeconfig", "--name", clusterName)

	// Create a temporary file for the kubeconfig
	tempFile, err := os.CreateTemp("", "kubeconfig-"+clusterName+"-*.yaml")
	if err != nil {
		deleteKindCluster(t, clusterName, "") // Ignore cleanup error
		t.Fatalf("failed to create temp kubeconfig file: %v", err)
	}
	defer tempFile.Close()

	kubeconfigPath = tempFile.Name()

	_, err = tempFile.WriteString(kubeconfigContent)
	if err != nil {
		deleteKindCluster(t, clusterName, kubeconfigPath)
		t.Fatalf("failed to write kubeconfig to temp file '%s': %v", kubeconfigPath, err)
	}

	return kubeconfigPath
}

// deleteKindCluster deletes the Kind cluster with the given name and removes the associated temp kubeconfig file.
func deleteKindCluster(t *testing.T, clusterName string, kubeconfigPath string) {
	_ = runCommand(t, "kind", "delete", "cluster", "--name", clusterName)

	if kubeconfigPath != "" {
		removeErr := os.Remove(kubeconfigPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			t.Fatalf("failed to remove kubeconfig file '%s': %v", kubeconfigPath, removeErr)
		}
	}
}

// installMetricsServer installs the Kubernetes Metrics Server.
func installMetricsServer(t *testing.T, kubeconfigPath string) {
	// Install the metrics-server chart
	_ = runCommand(t, "helm", "install", "metrics-server", "metrics-server/metrics-server", "-n", "kube-system", "--kubeconfig", kubeconfigPath, "--set", "args[0]=--kubelet-insecure-tls", "--wait")

	// Wait for metrics-server deployment to be ready
	_ = runCommand(t, "kubectl", "wait", "--for=condition=available", "deployment/metrics-server", "-n", "kube-system", "--timeout=2m", "--kubeconfig", kubeconfigPath)
}

// applyKubectl applies a Kubernetes manifest file.
func applyKubectl(t *testing.T, kubeconfigPath string, path string) {
	_ = runCommand(t, "kubectl", "apply", "-f", path, "--kubeconfig", kubeconfigPath)
}

// runOptions are the CLI options the e2e tests vary
type runOptions struct {
	OutputDir  string
	Format     string
	HideNames  bool
	WithUsage  bool
	OutputFile  string
	MetricsFile string
}

// runMainBinary runs the main application against the cluster behind kubeconfigPath and returns the report path.
func runMainBinary(t *testing.T, opts runOptions, kubeconfigPath string) string {
	err := os.MkdirAll(opts.OutputDir, 0755)
	if err != nil {
		t.Fatalf("failed to create output directory '%s': %v", opts.OutputDir, err)
	}

	// Construct command line arguments
	args := []string{"run", "main.go", "--kubeconfig", kubeconfigPath, "--no-progress"}
	if opts.HideNames {
		args = append(args, "--hide-names")
	}
	if opts.WithUsage {
		args = append(args, "--with-usage")
	}
	if opts.OutputDir != "" {
		args = append(args, "--output-dir", opts.OutputDir)
	}
	if opts.Format != "" {
		args = append(args, "--format", opts.Format)
	}
	if opts.OutputFile != "" {
		args = append(args, "--output-file", opts.OutputFile)
	}
	if opts.MetricsFile != "" {
		args = append(args, "--metrics-file", opts.MetricsFile)
	}
	for _, ns := range systemNamespaces {
		args = append(args, "--exclude-namespace", ns)
	}

	// Execute the command from the repository root
	cmd := exec.Command("go", args...)
	cmd.Dir = "../../" // tests/e2e is two levels down from root

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to run main binary: %v\nOutput: %s", err, string(output))
	}

	outputFilePath := filepath.Join(opts.OutputDir, fmt.Sprintf("%s.%s", opts.OutputFile, opts.Format))

	// Check if the output file was actually created
	if _, statErr := os.Stat(outputFilePath); os.IsNotExist(statErr) {
		t.Fatalf("main binary ran but output file '%s' was not found", outputFilePath)
	}

	return outputFilePath
}

// compareFiles compares two JSON reports using go-cmp. Node capacity depends on the host, so only the node count is compared.
func compareFiles(file1, file2 string) error {
	content1, err := os.ReadFile(file1)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %v", file1, err)
	}
	content2, err := os.ReadFile(file2)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %v", file2, err)
	}

	var data1, data2 models.ClusterReport

	err = json.Unmarshal(content1, &data1)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s as JSON: %v", file1, err)
	}

	err = json.Unmarshal(content2, &data2)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s as JSON: %v", file2, err)
	}

	opts := cmp.Options{
		cmpopts.IgnoreFields(models.NodeSummary{}, "CPUPercent", "MemoryPercent", "Nodes"),
		cmp.Transformer("UsagePresence", func(in *models.UsageSummary) bool {
			return in != nil
		}),
	}

	// Compare the unmarshalled data
	if diff := cmp.Diff(data1, data2, opts); diff != "" {
		return fmt.Errorf("JSON content mismatch between '%s' and '%s':\n--- Diff ---\n%s\n------------", file1, file2, diff)
	}

	return nil
}

// checkForPrerequisites checks if required CLIs are installed.
func checkForPrerequisites(t *testing.T, metricsServer bool) {
	requiredCmds := []string{"kind", "kubectl"}
	if metricsServer {
		requiredCmds = append(requiredCmds, "helm")
	}
	for _, cmd := range requiredCmds {
		_, err := exec.LookPath(cmd)
		if err != nil {
			t.Fatalf("Required command '%s' not found in PATH. Please install it.", cmd)
		}
	}

	// Check that required helm charts are available
	if metricsServer {
		checkHelmChartAvailable(t, "metrics-server", "https://kubernetes-sigs.github.io/metrics-server/")
	}
}

// checkHelmChartAvailable checks if the desired helm chart is available
func checkHelmChartAvailable(t *testing.T, chartName string, expectedURL string) {
	listOutput := runCommand(t, "helm", "repo", "list", "--output", "json")
	jsonOutput := []byte(listOutput)

	// parse the json
	var jsonOutputList []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	err := json.Unmarshal(jsonOutput, &jsonOutputList)
	if err != nil {
		t.Fatalf("Failed to unmarshal helm repo list output to json: %v", err)
	}

	repoFound, repoURL := false, ""
	for _, repo := range jsonOutputList {
		if repo.Name == chartName {
			repoFound = true
			repoURL = repo.URL
		}
	}
	if !repoFound {
		t.Fatalf("Helm chart %s not found", chartName)
	}
	if repoURL != expectedURL {
		t.Fatalf("Helm chart %s URL mismatch: expected %s, got %s", chartName, expectedURL, repoURL)
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/solo-io/cluster-stats/cmd/version"
	"github.com/solo-io/cluster-stats/internal/gatherer"
	"github.com/solo-io/cluster-stats/internal/logging"
	"github.com/solo-io/cluster-stats/internal/utils"
	"github.com/spf13/cobra"
)

type CommandFlags struct {
	HideNames         bool
	KubeContext       string
	Kubeconfig        string
	OutputDir         string
	OutputFormat      string
	OutputFile        string
	MetricsFile       string
	EnableDebug       bool
	NoProgress        bool
	MaxProcessors     int
	QPS               float64
	Timeout           time.Duration
	APIVersions       map[string]string
	ExcludeNamespaces []string
	SkipTerminating   bool
	WithUsage         bool
}

// DefaultFlags returns a CommandFlags struct initialized with default values
func DefaultFlags() *CommandFlags {
	return &CommandFlags{
		HideNames:         false,
		KubeContext:       "",
		Kubeconfig:        "",
		OutputDir:         ".",
		OutputFormat:      "csv",
		OutputFile:        gatherer.DefaultOutputFile,
		MetricsFile:       "",
		EnableDebug:       false,
		NoProgress:        false,
		MaxProcessors:     0,
		QPS:               0,
		Timeout:           5 * time.Minute,
		APIVersions:       map[string]string{},
		ExcludeNamespaces: nil,
		SkipTerminating:   false,
		WithUsage:         false,
	}
}

// internalFlags is used for standalone CLI usage
var internalFlags = DefaultFlags()

var supportedFormats = []string{"csv", "json", "yaml", "yml"}

func validateFormat(format string) error {
	for _, f := range supportedFormats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (expected one of %s)", utils.ErrUnsupportedFormat, format, strings.Join(supportedFormats, ", "))
}

// GetCommand returns the root command for cluster-stats
// This allows it to be used as a standalone command or as a subcommand in another CLI
// If customFlags is provided, those flags will be used instead of the default ones
func GetCommand(customFlags ...*CommandFlags) *cobra.Command {
	// Determine which flags to use
	var flags *CommandFlags
	if len(customFlags) > 0 && customFlags[0] != nil {
		flags = customFlags[0]
	} else {
		flags = internalFlags
	}

	cmd := &cobra.Command{
		Use:          "cluster-stats",
		Short:        "Summarize container sizing and node limit allocation of a Kubernetes cluster.",
		Long:         "cluster-stats classifies every container with resource limits into a size bucket and reports how much of the allocatable node capacity is committed by limits.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// log to the command's output so an embedding CLI can redirect it
			logging.SetOutput(cmd.OutOrStdout())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			// Run the signal handler in a goroutine
			go func() {
				sig := <-sigCh
				logging.Info("Received signal: %v, initiating shutdown...", sig)

				// Create a timeout context for shutdown
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()

				go func() {
					<-shutdownCtx.Done()
					if shutdownCtx.Err() == context.DeadlineExceeded {
						logging.Error("Shutdown timed out, forcing exit")
						os.Exit(1)
					}
				}()

				cancel()
			}()

			// defining the log level
			if flags.EnableDebug {
				logging.EnableDebugMessages()
			}

			if flags.OutputFormat == "" {
				flags.OutputFormat = "csv"
			}
			if err := validateFormat(flags.OutputFormat); err != nil {
				return err
			}
			flags.OutputFormat = strings.ToLower(flags.OutputFormat)

			if flags.Kubeconfig == "" {
				if path, err := utils.DefaultKubeconfigPath(); err == nil {
					logging.Debug("Using kubeconfig: %s", path)
				}
			}

			// If context is not specified, use current context
			if flags.KubeContext == "" {
				var err error
				flags.KubeContext, err = utils.GetCurrentContext(flags.Kubeconfig)
				if err != nil {
					logging.Error("No current Kubernetes context found: %v", err)
					return err
				}
				logging.Info("Using current Kubernetes context: %s", flags.KubeContext)
			} else {
				logging.Info("Using Kubernetes context from flags: %s", flags.KubeContext)
			}

			if flags.OutputDir == "" {
				flags.OutputDir = "."
			}

			// Create config
			cfg := &utils.Config{
				KubeContext:       flags.KubeContext,
				Kubeconfig:        flags.Kubeconfig,
				ObfuscateNames:    flags.HideNames,
				OutputDir:         flags.OutputDir,
				OutputFormat:      flags.OutputFormat,
				OutputFile:        flags.OutputFile,
				MetricsFile:       flags.MetricsFile,
				NoProgress:        flags.NoProgress,
				MaxProcessors:     flags.MaxProcessors,
				QPS:               flags.QPS,
				Timeout:           flags.Timeout,
				APIVersions:       flags.APIVersions,
				ExcludeNamespaces: flags.ExcludeNamespaces,
				SkipTerminating:   flags.SkipTerminating,
				WithUsage:         flags.WithUsage,
			}

			// Gather cluster information
			if err := gatherer.GatherClusterReport(ctx, cfg); err != nil {
				logging.Error("Error gathering cluster statistics: %v", err)
				return err
			}

			logging.Success("Cluster statistics gathered successfully")
			return nil
		},
	}

	// Define persistent flags for the command
	cmd.PersistentFlags().BoolVarP(&flags.HideNames, "hide-names", "n", false, "Hide the names of the cluster, namespaces and nodes by using a hash.")
	cmd.PersistentFlags().StringVarP(&flags.KubeContext, "context", "k", "", "Kubernetes context to use. If not set, uses the current context.")
	cmd.PersistentFlags().StringVar(&flags.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file. If not set, uses KUBECONFIG or ~/.kube/config.")
	cmd.PersistentFlags().StringVarP(&flags.OutputDir, "output-dir", "d", ".", "Directory to store the output file in.")
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "format", "f", "csv", "Format the output file in csv, json or yaml/yml.")
	cmd.PersistentFlags().StringVarP(&flags.OutputFile, "output-file", "o", gatherer.DefaultOutputFile, "Base name of the output file, the format is appended as extension.")
	cmd.PersistentFlags().StringVar(&flags.MetricsFile, "metrics-file", "", "Also write the report as Prometheus metrics in text format to this file.")
	cmd.PersistentFlags().BoolVar(&flags.EnableDebug, "debug", false, "Enable debug mode.")
	cmd.PersistentFlags().BoolVar(&flags.NoProgress, "no-progress", false, "Disable the progress bar while processing nodes.")
	cmd.PersistentFlags().IntVar(&flags.MaxProcessors, "max-processors", 0, "Maximum number of nodes processed concurrently. If not set, or <= 0, twice the number of CPUs is used.")
	cmd.PersistentFlags().Float64Var(&flags.QPS, "qps", 0, "Maximum rate of per-node pod listings per second. If not set, or <= 0, listings are not rate limited.")
	cmd.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 5*time.Minute, "Maximum duration of the whole scan.")
	cmd.PersistentFlags().StringToStringVar(&flags.APIVersions, "api-version", map[string]string{}, "Override the API version used for a kind, e.g. Deployment=apps/v1. Can be repeated.")
	cmd.PersistentFlags().StringSliceVar(&flags.ExcludeNamespaces, "exclude-namespace", nil, "Do not classify pods whose namespace contains this value. Can be repeated.")
	cmd.PersistentFlags().BoolVar(&flags.SkipTerminating, "skip-terminating", false, "Do not classify pods that are being deleted.")
	cmd.PersistentFlags().BoolVar(&flags.WithUsage, "with-usage", false, "Also report the measured node usage from the metrics API, if available.")

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main() when the CLI is used standalone.
func Execute() {
	cmd := GetCommand()

	cmd.Version = "n/a" // This needs to be set so that the --version flag works when setting the version template
	cmd.SetVersionTemplate(version.VersionTemplate())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package gatherer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/solo-io/cluster-stats/internal/logging"
	"github.com/solo-io/cluster-stats/internal/sizing"
	"github.com/solo-io/cluster-stats/internal/utils"
	"github.com/solo-io/cluster-stats/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultOutputFile is the report name used when none is configured
const DefaultOutputFile = "cluster_containers"

// ReportPath returns the report location for the given directory, base name and format
func ReportPath(dir, file, format string) string {
	if file == "" {
		file = DefaultOutputFile
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s", file, format))
}

// encodeReport renders the report in the requested format
func encodeReport(report *models.ClusterReport, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "csv":
		var buf bytes.Buffer
		if err := writeCSV(&buf, report); err != nil {
			return nil, fmt.Errorf("failed to render cluster report as CSV: %w", err)
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cluster report to JSON: %w", err)
		}
		return data, nil
	case "yaml", "yml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cluster report to YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", utils.ErrUnsupportedFormat, format)
	}
}

// saveReport writes the report to outputFile, creating parent directories as needed
func saveReport(report *models.ClusterReport, outputFile, format string) error {
	data, err := encodeReport(report, format)
	if err != nil {
		return err
	}

	// Ensure parent directories exist
	dir := filepath.Dir(outputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: failed to create output directory %s: %v", utils.ErrReportWrite, dir, err)
		}
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrReportWrite, err)
	}

	logging.Info("Saved cluster report to file: %s", outputFile)
	return nil
}

// writeCSV writes the flat layout: observed buckets, their counts, a gap and the node summary line.
// Every bucket and count is followed by a comma.
func writeCSV(w io.Writer, report *models.ClusterReport) error {
	buckets := observedBuckets(report.Buckets)

	header := make([]string, 0, len(buckets)+1)
	counts := make([]string, 0, len(buckets)+1)
	for _, b := range buckets {
		header = append(header, string(b))
		counts = append(counts, strconv.Itoa(report.Buckets[b]))
	}
	// the empty trailing field produces the trailing comma
	header = append(header, "")
	counts = append(counts, "")

	cw := csv.NewWriter(w)
	if len(buckets) > 0 {
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.Write(counts); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if len(buckets) == 0 {
		// keep the two row layout even when nothing was classified
		if _, err := io.WriteString(w, "\n\n"); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n\n\n\nNumber of nodes %d, Average of CPU limits on nodes: %s%%, Average of memory limits on nodes: %s%%\n",
		report.NodeSummary.Count,
		formatPercent(report.NodeSummary.CPUPercent),
		formatPercent(report.NodeSummary.MemoryPercent),
	)
	return err
}

// observedBuckets returns the buckets with a count, in classification table order
func observedBuckets(counts map[sizing.Bucket]int) []sizing.Bucket {
	out := make([]sizing.Bucket, 0, len(counts))
	for b, n := range counts {
		if n > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := sizing.Order(out[i]), sizing.Order(out[j])
		if oi != oj {
			return oi < oj
		}
		return out[i] < out[j]
	})
	return out
}

// formatPercent prints the shortest representation, always with a fraction ("50.0", "12.3")
func formatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

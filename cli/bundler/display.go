package bundler

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/denohooks/denohooks/cli/output"
)

// DisplayAnalysis prints the bundle analysis in a formatted way
func DisplayAnalysis(w io.Writer, result *AnalysisResult, showDetails bool) {
	_, _ = fmt.Fprintf(w, "\n=== Bundle Analysis: %s ===\n", result.FunctionID)
	_, _ = fmt.Fprintf(w, "Total bundle size: %s\n", formatBytesHuman(result.TotalBytes))

	if len(result.ExternalImports) > 0 {
		_, _ = fmt.Fprintln(w, "\nExternal imports (resolved by the deno runtime):")
		for _, imp := range result.ExternalImports {
			_, _ = fmt.Fprintf(w, "  - %s\n", imp)
		}
	}

	if len(result.RemoteModules) > 0 {
		_, _ = fmt.Fprintln(w, "\nRemote modules (inlined):")
		for _, mod := range result.RemoteModules {
			_, _ = fmt.Fprintf(w, "  - %s\n", mod)
		}
	}

	if len(result.InputFiles) > 0 {
		_, _ = fmt.Fprintln(w, "\nBundle breakdown:")

		// Determine how many files to show
		maxFiles := 10
		if showDetails {
			maxFiles = len(result.InputFiles)
		}

		// Calculate max path length for alignment
		maxPathLen := 0
		for i, file := range result.InputFiles {
			if i >= maxFiles {
				break
			}
			displayPath := truncatePath(file.Path, 50)
			if len(displayPath) > maxPathLen {
				maxPathLen = len(displayPath)
			}
		}

		// Print file breakdown
		for i, file := range result.InputFiles {
			if i >= maxFiles {
				remaining := len(result.InputFiles) - maxFiles
				_, _ = fmt.Fprintf(w, "  ... and %d more files\n", remaining)
				break
			}

			displayPath := truncatePath(file.Path, 50)
			padding := strings.Repeat(" ", maxPathLen-len(displayPath))
			_, _ = fmt.Fprintf(w, "  %s%s  %8s  %5.1f%%\n",
				displayPath,
				padding,
				formatBytesHuman(file.BytesInOutput),
				file.Percentage,
			)
		}
	}

	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range result.Warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", warn)
		}
	}

	_, _ = fmt.Fprintln(w)
}

// SummaryTable returns one row per function, largest bundle first, plus a
// TOTAL row
func SummaryTable(results []*AnalysisResult) output.TableData {
	sorted := make([]*AnalysisResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalBytes > sorted[j].TotalBytes
	})

	data := output.TableData{
		Headers: []string{"FUNCTION", "BUNDLE SIZE", "FILES", "REMOTE", "EXTERNALS"},
	}

	var totalSize int
	for _, r := range sorted {
		totalSize += r.TotalBytes
		data.Rows = append(data.Rows, []string{
			r.FunctionID,
			formatBytesHuman(r.TotalBytes),
			strconv.Itoa(len(r.InputFiles)),
			strconv.Itoa(len(r.RemoteModules)),
			strconv.Itoa(len(r.ExternalImports)),
		})
	}
	if len(sorted) > 0 {
		data.Rows = append(data.Rows, []string{"TOTAL", formatBytesHuman(totalSize), "", "", ""})
	}

	return data
}

// formatBytesHuman formats bytes in human-readable format
func formatBytesHuman(bytes int) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// truncatePath shortens a path if it's too long
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

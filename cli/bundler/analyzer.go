package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/denohooks/denohooks/internal/bundler"
	"github.com/denohooks/denohooks/internal/denoloader"
	"github.com/denohooks/denohooks/internal/manifest"
)

// largeInputBytes is the output contribution above which a warning is added
const largeInputBytes = 256 * 1024

// Analyzer provides bundle analysis using esbuild metafile
type Analyzer struct {
	esbuild   *bundler.EsbuildBundler
	sourceDir string
}

// NewAnalyzer creates a new bundle analyzer for the project in sourceDir
func NewAnalyzer(esbuild *bundler.EsbuildBundler, sourceDir string) *Analyzer {
	return &Analyzer{esbuild: esbuild, sourceDir: sourceDir}
}

// AnalyzeManifest analyzes every non-API function of the manifest in ID order
func (a *Analyzer) AnalyzeManifest(ctx context.Context, m manifest.Manifest, configPath string) ([]*AnalysisResult, error) {
	fns, err := m.Functions()
	if err != nil {
		return nil, err
	}

	var results []*AnalysisResult
	for _, fn := range fns {
		if fn.IsAPI() {
			continue
		}
		if fn.SourceFile == "" {
			return nil, fmt.Errorf("function %q has no source_file", fn.ID)
		}
		result, err := a.AnalyzeFunction(ctx, bundler.Job{
			FunctionID: fn.ID,
			Entrypoint: filepath.Join(a.sourceDir, filepath.FromSlash(fn.SourceFile)),
			WorkingDir: a.sourceDir,
			ConfigPath: configPath,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// AnalyzeFunction bundles one function with esbuild and returns analysis
func (a *Analyzer) AnalyzeFunction(ctx context.Context, job bundler.Job) (*AnalysisResult, error) {
	raw, err := a.esbuild.Metafile(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("bundle analysis failed for %s: %w", job.FunctionID, err)
	}

	var metafile Metafile
	if err := json.Unmarshal([]byte(raw), &metafile); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}

	entry, err := filepath.Rel(a.sourceDir, job.Entrypoint)
	if err != nil {
		entry = job.Entrypoint
	}
	return a.analyzeMetafile(&metafile, job.FunctionID, filepath.ToSlash(entry))
}

// analyzeMetafile processes the metafile and returns analysis
func (a *Analyzer) analyzeMetafile(meta *Metafile, functionID string, entry string) (*AnalysisResult, error) {
	result := &AnalysisResult{
		FunctionID:      functionID,
		InputFiles:      []FileAnalysis{},
		ExternalImports: []string{},
	}

	// Only one entry point is built, so there is a single JS output
	outputs := make([]string, 0, len(meta.Outputs))
	for path := range meta.Outputs {
		if strings.HasSuffix(path, ".js") {
			outputs = append(outputs, path)
		}
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("metafile for %s has no JavaScript output", functionID)
	}
	sort.Strings(outputs)
	output := meta.Outputs[outputs[0]]
	result.TotalBytes = output.Bytes

	for _, imp := range output.Imports {
		if imp.External {
			result.ExternalImports = append(result.ExternalImports, imp.Path)
		}
	}

	for inputPath, contrib := range output.Inputs {
		inputInfo, ok := meta.Inputs[inputPath]
		if !ok {
			continue
		}

		displayPath := inputPath
		remote := strings.HasPrefix(inputPath, denoloader.RemoteNamespace+":")
		if remote {
			displayPath = strings.TrimPrefix(inputPath, denoloader.RemoteNamespace+":")
			result.RemoteModules = append(result.RemoteModules, displayPath)
		} else if displayPath == entry {
			displayPath = "<entry>"
		}

		percentage := 0.0
		if result.TotalBytes > 0 {
			percentage = float64(contrib.BytesInOutput) / float64(result.TotalBytes) * 100
		}

		if contrib.BytesInOutput > largeInputBytes {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s contributes %s to the bundle", displayPath, formatBytesHuman(contrib.BytesInOutput)))
		}

		result.InputFiles = append(result.InputFiles, FileAnalysis{
			Path:          displayPath,
			Bytes:         inputInfo.Bytes,
			BytesInOutput: contrib.BytesInOutput,
			Percentage:    percentage,
			ImportCount:   len(inputInfo.Imports),
			IsRemote:      remote,
		})
	}

	// Sort by bytes in output (largest first)
	sort.Slice(result.InputFiles, func(i, j int) bool {
		if result.InputFiles[i].BytesInOutput != result.InputFiles[j].BytesInOutput {
			return result.InputFiles[i].BytesInOutput > result.InputFiles[j].BytesInOutput
		}
		return result.InputFiles[i].Path < result.InputFiles[j].Path
	})

	sort.Strings(result.ExternalImports)
	sort.Strings(result.RemoteModules)
	sort.Strings(result.Warnings)

	return result, nil
}

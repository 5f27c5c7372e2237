package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KevinDz11/nopro/internal/ingest"
	"github.com/KevinDz11/nopro/internal/pipeline"
	"github.com/KevinDz11/nopro/internal/report"
	"github.com/KevinDz11/nopro/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	docTimeout   time.Duration
	sourcesFile  string
	layoutRoot   string
	writeXLSX    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [pattern...]",
	Short: "Analyze many documents in parallel",
	Long: `Batch analyzes documents concurrently and writes one report per document:
- Sources are paths, glob patterns (with ** support) or URLs
- Additional sources can be read from a file (one per line)
- Category and type come from the flags, or from the directory layout
  <root>/<category>/<type>/<file> when --root is given

Example:
  nopro batch 'docs/**/*.pdf' --category Laptop --type Manual
  nopro batch --root inbox 'inbox/**/*' --output-dir ./reports --xlsx
  nopro batch --from sources.txt -c Luminaire -t TechnicalSheet --concurrency 8`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&category, "category", "c", "", "product category for every document")
	batchCmd.Flags().StringVarP(&docType, "type", "t", "", "document type for every document")
	batchCmd.Flags().StringVar(&brand, "brand", "", "expected brand, reported as a hint")
	batchCmd.Flags().StringVar(&layoutRoot, "root", "", "infer category and type from <root>/<category>/<type>/<file>")
	batchCmd.Flags().StringVar(&sourcesFile, "from", "", "read sources from file (one per line, # comments)")

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./nopro-reports", "output directory for reports")
	batchCmd.Flags().BoolVar(&writeXLSX, "xlsx", false, "also write a checklist workbook per document")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().DurationVar(&docTimeout, "doc-timeout", 0, "timeout for each document (default: concurrency.analysis_timeout)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	patterns := append([]string(nil), args...)
	if sourcesFile != "" {
		fromFile, err := worker.ReadSourcesFromFile(sourcesFile)
		if err != nil {
			return err
		}
		patterns = append(patterns, fromFile...)
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no sources given: pass patterns or --from")
	}
	if layoutRoot == "" && (category == "" || docType == "") {
		return fmt.Errorf("--category and --type are required unless --root is given")
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if docTimeout <= 0 {
		docTimeout = cfg.Concurrency.AnalysisTimeout
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  nopro Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	fmt.Fprintf(os.Stderr, "⚙️  Expanding sources...\n")
	sources, err := worker.ExpandSources(patterns)
	if err != nil {
		return err
	}
	reqs := buildRequests(sources)
	fmt.Fprintf(os.Stderr, "✓ %d document(s) to analyze\n\n", len(reqs))
	if len(reqs) == 0 {
		return fmt.Errorf("no document could be classified under %s", layoutRoot)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.close()

	processor := worker.NewBatchProcessor(a.pipeline, concurrency, docTimeout)
	fmt.Fprintf(os.Stderr, "⚙️  Processing with %d workers...\n\n", concurrency)
	results := processor.Process(ctx, reqs)

	successCount := 0
	failureCount := 0
	for i, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", pipeline.Describe(result.Request), result.Error)
			continue
		}

		base := fmt.Sprintf("%03d-%s", i+1, sanitizeFilename(result.Request.Source))
		jsonPath := filepath.Join(outputDir, base+".json")
		if err := report.WriteJSONFile(jsonPath, result.Report); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Request.Source, err)
			continue
		}
		if writeXLSX {
			if err := report.WriteXLSXFile(filepath.Join(outputDir, base+".xlsx"), result.Report); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write workbook: %v\n", result.Request.Source, err)
				continue
			}
		}

		successCount++
		s := result.Report.Summary
		fmt.Fprintf(os.Stderr, "✓ %s (%d/%d compliant, %v)\n",
			pipeline.Describe(result.Request), s.Compliant, s.Standards, result.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if successCount == 0 && failureCount > 0 {
		return fmt.Errorf("all %d document(s) failed", failureCount)
	}
	return nil
}

// buildRequests attaches category and type to each source. With a layout
// root, sources outside the layout fall back to the flags or are skipped.
func buildRequests(sources []string) []pipeline.Request {
	reqs := make([]pipeline.Request, 0, len(sources))
	for _, src := range sources {
		req := pipeline.Request{Source: src, Category: category, DocType: docType, Brand: brand}
		if layoutRoot != "" {
			if cat, typ, ok := ingest.Classify(layoutRoot, src); ok {
				req.Category, req.DocType = cat, typ
			} else if category == "" || docType == "" {
				fmt.Fprintf(os.Stderr, "✗ %s: not under <root>/<category>/<type>/, skipped\n", src)
				continue
			}
		}
		reqs = append(reqs, req)
	}
	return reqs
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename derives a report file name from a document source
func sanitizeFilename(s string) string {
	s = strings.TrimSuffix(s, "/")
	if i := strings.IndexAny(s, "?#"); i >= 0 && strings.Contains(s, "://") {
		s = s[:i]
	}
	s = filepath.Base(filepath.FromSlash(s))
	s = strings.TrimSuffix(s, filepath.Ext(s))
	s = filenameReplacer.Replace(s)
	if s == "" || s == "." {
		s = "document"
	}

	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}

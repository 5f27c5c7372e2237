package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KevinDz11/nopro/internal/pipeline"
	"github.com/KevinDz11/nopro/internal/report"
)

var (
	category  string
	docType   string
	brand     string
	outJSON   string
	outXLSX   string
	timeout   time.Duration
	quietMode bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <path|url>",
	Short: "Analyze one product document and print its checklist",
	Long: `Analyze reads a technical sheet, user manual or label and builds the
checklist of standards applicable to the product category:
- Extract the text of every page (PDF, HTML, text, OCR for images)
- Skip index and table-of-contents pages
- Match catalog rules sentence by sentence
- Inspect labels for certification marks and symbols
- Resolve one COMPLIANT / NOT_DETECTED entry per standard

Category and document type accept the usual spellings
(laptop, "Smart TV", luminaria; ficha técnica, manual, etiqueta).

Example:
  nopro analyze ficha.pdf --category Laptop --type TechnicalSheet
  nopro analyze etiqueta.jpg --category SmartTV --type Label --brand Acme
  nopro analyze https://example.com/manual.pdf -c Luminaire -t Manual --json out.json --xlsx out.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&category, "category", "c", "", "product category (Laptop, SmartTV, Luminaire)")
	analyzeCmd.Flags().StringVarP(&docType, "type", "t", "", "document type (TechnicalSheet, Manual, Label)")
	analyzeCmd.Flags().StringVar(&brand, "brand", "", "expected brand, reported as a hint")
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "write the JSON report to this path (- for stdout)")
	analyzeCmd.Flags().StringVar(&outXLSX, "xlsx", "", "write the checklist workbook to this path")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "analysis timeout")
	analyzeCmd.Flags().BoolVarP(&quietMode, "quiet", "q", false, "do not print the summary")

	_ = analyzeCmd.MarkFlagRequired("category")
	_ = analyzeCmd.MarkFlagRequired("type")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.close()

	req := pipeline.Request{
		Source:   args[0],
		Category: category,
		DocType:  docType,
		Brand:    brand,
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Analyzing %s\n", pipeline.Describe(req))
	}

	r, err := a.pipeline.Analyze(ctx, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Extracted %d page(s)\n", r.Pages)
		fmt.Fprintf(os.Stderr, "✓ Found %d textual and %d visual evidence item(s)\n", r.Summary.Textual, r.Summary.Visual)
		fmt.Fprintf(os.Stderr, "✓ %d/%d standards compliant\n", r.Summary.Compliant, r.Summary.Standards)
		fmt.Fprintln(os.Stderr)
	}

	switch outJSON {
	case "":
	case "-":
		if err := report.WriteJSON(os.Stdout, r); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	default:
		if err := report.WriteJSONFile(outJSON, r); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}

	if outXLSX != "" {
		if err := report.WriteXLSXFile(outXLSX, r); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Checklist workbook: %s\n", outXLSX)
	}

	if !quietMode && outJSON != "-" {
		report.PrintSummary(os.Stdout, r)
	}
	return nil
}

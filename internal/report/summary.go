package report

import (
	"fmt"
	"io"

	"github.com/KevinDz11/nopro/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

// PrintSummary writes a human-readable checklist summary
func PrintSummary(w io.Writer, r *model.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s · %s · %s\n", r.Category, r.DocType, r.Source)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	if len(r.Checklist) == 0 {
		fmt.Fprintln(w, "  No standards evaluated")
	}
	for _, e := range r.Checklist {
		mark := "✗"
		if e.State == model.StateCompliant {
			mark = "✓"
		}
		forced := ""
		if e.Forced {
			forced = " (label)"
		}
		fmt.Fprintf(w, "  %s %-28s %-13s %6.2f%s\n", mark, e.Standard, e.State, e.Score, forced)
		for _, ev := range e.Evidence {
			fmt.Fprintf(w, "      p.%d [%s] %s\n", ev.Page, ev.Subcategory, ev.Pattern)
		}
	}

	s := r.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Compliant:    %d/%d\n", s.Compliant, s.Standards)
	fmt.Fprintf(w, "  Evidence:     %d textual, %d visual\n", s.Textual, s.Visual)
	fmt.Fprintf(w, "  Mean score:   %.2f\n", s.MeanScore)
	if len(r.SkippedPages) > 0 {
		fmt.Fprintf(w, "  Index pages:  %v\n", r.SkippedPages)
	}

	if len(r.Signals) > 0 {
		fmt.Fprintln(w)
		for _, sig := range r.Signals {
			icon := "ℹ"
			switch sig.Severity {
			case model.SeverityWarning:
				icon = "⚠"
			case model.SeverityCritical:
				icon = "✗"
			}
			fmt.Fprintf(w, "  %s %s\n", icon, sig.Description)
		}
	}

	if len(r.Labs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Recommended laboratories:")
		for _, l := range r.Labs {
			fmt.Fprintf(w, "    - %s (%s): %s\n", l.Name, l.Phone, l.Reason)
		}
	}
	fmt.Fprintln(w)
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KevinDz11/nopro/internal/catalog"
	"github.com/KevinDz11/nopro/internal/model"
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate the standards catalog",
	Long: `The catalog holds the standards of each product category, the textual
rules used for sheets and manuals, and the visual predicates used for labels.

The catalog is compiled into the binary; a directory given with
--catalog-dir (or catalog.dir) overrides individual files.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the standards evaluated per category and document type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		cat, err := catalog.LoadDir(cfg.Catalog.Dir)
		if err != nil {
			return err
		}
		return printCatalog(os.Stdout, cat, category)
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate catalog files against their schemas",
	Long: `Validate checks standards.yaml, rules.yaml and visual.yaml in dir (or the
built-in catalog when no dir is given) against their JSON schemas, then
loads them and reports semantic issues such as rules referring to unknown
standards or patterns that do not compile.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		return validateCatalog(os.Stdout, dir)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogValidateCmd)

	catalogListCmd.Flags().StringVarP(&category, "category", "c", "", "only this category")
}

func printCatalog(w io.Writer, cat *catalog.Catalog, only string) error {
	cats := cat.Categories()
	if only != "" {
		c, err := model.ParseCategory(only)
		if err != nil {
			return err
		}
		cats = []model.Category{c}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\n", c)
		for _, doc := range model.DocTypes() {
			entries, ok := cat.Applicable(c, doc)
			if !ok {
				fmt.Fprintf(tw, "  (no catalog data)\n")
				break
			}
			fmt.Fprintf(tw, "  %s\t%d standard(s)\t%d rule(s)\n", doc, len(entries), len(cat.Rules(c, doc)))
			for _, e := range entries {
				mark := ""
				if e.Forced {
					mark = "forced"
				}
				fmt.Fprintf(tw, "    %s\t%s\t%s\n", e.ID, e.Name, mark)
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func validateCatalog(w io.Writer, dir string) error {
	var failed []string

	if dir != "" {
		for _, name := range []string{catalog.StandardsFile, catalog.RulesFile, catalog.VisualFile} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(w, "-  %s (not present, built-in copy used)\n", name)
				continue
			}
			if err == nil {
				err = catalog.Validate(name, data)
			}
			if err != nil {
				fmt.Fprintf(w, "✗  %s: %v\n", name, err)
				failed = append(failed, name)
				continue
			}
			fmt.Fprintf(w, "✓  %s\n", name)
		}
		if len(failed) > 0 {
			return fmt.Errorf("invalid catalog files: %s", strings.Join(failed, ", "))
		}
	}

	cat, err := catalog.LoadDir(dir)
	if err != nil {
		fmt.Fprintf(w, "✗  load: %v\n", err)
		return err
	}
	issues := cat.Issues()
	for _, issue := range issues {
		fmt.Fprintf(w, "!  %s\n", issue)
	}
	fmt.Fprintf(w, "✓  catalog loaded: %d categories, %d issue(s)\n", len(cat.Categories()), len(issues))
	return nil
}

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KevinDz11/nopro/internal/labs"
	"github.com/KevinDz11/nopro/internal/model"
)

var (
	labStandards []string
	labLimit     int
	labsFile     string
)

// labsCmd represents the labs command
var labsCmd = &cobra.Command{
	Use:   "labs",
	Short: "Recommend accredited testing laboratories",
	Long: `Labs ranks the laboratory directory for a product category and the
standards it complies with: 3 points for experience with the category and
2 for each shared accredited standard.

Example:
  nopro labs --category Laptop --standard NOM-001-SCFI-2018 --standard NOM-019-SCFI-1998`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := model.ParseCategory(category)
		if err != nil {
			return err
		}

		var dir *labs.Directory
		if labsFile != "" {
			dir, err = labs.LoadFile(labsFile)
		} else {
			dir, err = labs.Default()
		}
		if err != nil {
			return err
		}
		return printLabs(os.Stdout, dir.Recommend(cat, labStandards, labLimit))
	},
}

func init() {
	rootCmd.AddCommand(labsCmd)

	labsCmd.Flags().StringVarP(&category, "category", "c", "", "product category")
	labsCmd.Flags().StringSliceVarP(&labStandards, "standard", "s", nil, "standard the product complies with (repeatable)")
	labsCmd.Flags().IntVar(&labLimit, "limit", 3, "maximum laboratories (0 for all)")
	labsCmd.Flags().StringVar(&labsFile, "file", "", "laboratory directory YAML (default: built-in)")
	_ = labsCmd.MarkFlagRequired("category")
}

func printLabs(w io.Writer, recs []model.LabRecommendation) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No laboratories found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tLABORATORY\tPHONE\tSTANDARDS\n")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Score, r.Name, r.Phone, strings.Join(r.Standards, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, r := range recs {
		fmt.Fprintf(w, "%s\n  %s\n  %s\n", r.Name, r.Address, r.Reason)
		if r.Website != "" {
			fmt.Fprintf(w, "  %s\n", r.Website)
		}
	}
	return nil
}

// -- cmd/taxes.go --
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nlavaggi/retex/internal/arca"
)

// newTaxesCmd lists the tax-kind catalogue and the queries each kind expands to.
func newTaxesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxes",
		Short: "Lists the available tax kinds and their operation modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tCATEGORY\tMODE\tNAME")
			for _, kind := range arca.TaxKinds {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind.Code, kind.Category, kind.Mode, kind.Name)
			}
			return w.Flush()
		},
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the supported image collections",
	Long:  "Prints every registered collection with its sensor, validity window and exclusion windows.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("collections"); err != nil {
			return err
		}
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		formatCollections(os.Stdout, reg)
		return nil
	},
}

func formatCollections(out io.Writer, reg *registry.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPLATFORM\tSTART\tEND\tEXCLUSIONS")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----\t---\t----------")

	for _, c := range reg.All() {
		start, end := "-", "-"
		if !c.Validity.Start.IsZero() {
			start = dateutil.Format(c.Validity.Start)
		}
		if !c.Validity.End.IsZero() {
			end = dateutil.Format(c.Validity.End)
		}

		ex := make([]string, len(c.Exclusions))
		for i, e := range c.Exclusions {
			ex[i] = e.Window.String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			c.Platform(),
			start,
			end,
			strings.Join(ex, ","),
		)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}

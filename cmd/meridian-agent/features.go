package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the assistant features and their tools",
	RunE:  runFeatures,
}

func runFeatures(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tROUNDS\tTOOLS\tDESCRIPTION")
	for _, name := range a.features.Names() {
		p, err := a.features.Get(name)
		if err != nil {
			return err
		}
		var toolNames []string
		for _, t := range p.Catalog() {
			toolNames = append(toolNames, t.Name())
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, p.MaxRounds(), strings.Join(toolNames, ","), p.Description())
	}
	return w.Flush()
}

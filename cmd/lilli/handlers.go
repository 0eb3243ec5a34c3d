package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ryanmello/lilli/internal/registry"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List registered handlers and their dependencies",
	Long: `List the handlers from the configured catalog in registration order,
with their required and optional dependencies and the lookup tools they
may call, followed by the execution
waves used when every handler runs in one turn.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		// Listing never calls a model.
		reg, err := registry.Build(catalog.Build(newOfflineCompleter()))
		if err != nil {
			return fmt.Errorf("build registry: %w", err)
		}
		return printHandlers(cmd.OutOrStdout(), reg)
	},
}

func printHandlers(out io.Writer, reg *registry.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tDEPENDS ON\tOPTIONAL\tREMEMBERS\tTOOLS\n")
	fmt.Fprintf(w, "----\t----------\t--------\t---------\t-----\n")
	for _, name := range reg.Names() {
		def, err := reg.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, listOrDash(def.DependsOn), listOrDash(def.OptionalDependsOn), listOrDash(def.Remember), listOrDash(def.Tools))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	plan, err := reg.TopologicalOrder(reg.Names())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nExecution waves:")
	for i, wave := range reg.Waves(plan) {
		fmt.Fprintf(out, "  %d. %s\n", i+1, strings.Join(wave, ", "))
	}
	return nil
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scancart/internal/cart"
	"scancart/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the products and prices the kiosk will load",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.FromConfig(cfg)
			if err != nil {
				return err
			}
			entries := cat.Entries()
			if ctx.jsonOutput() {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Label, cart.FormatAmount(cfg.Payment.CurrencySymbol, e.Price)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Label", "Price"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
				nil,
			))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scancart/internal/cart"
)

const receiptTimeLayout = "2006-01-02 15:04:05"

func newReceiptsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "receipts [ID]",
		Short: "List completed payments, or show one receipt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				receipt, err := client.Receipt(cmd.Context(), args[0])
				if err != nil {
					return ctx.wrapAPIError(err)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, receipt)
				}
				fmt.Fprintf(out, "Receipt %s\nPaid %s\n", receipt.ID, receipt.PaidAt.Local().Format(receiptTimeLayout))
				fmt.Fprintln(out, renderCart(receipt.Lines, receipt.Total, receipt.Currency))
				return nil
			}

			list, err := client.Receipts(cmd.Context(), limit)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No receipts")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, r := range list {
				currency := r.Currency
				if currency == "" {
					currency = cfg.Payment.CurrencySymbol
				}
				rows = append(rows, []string{
					r.ID,
					r.PaidAt.Local().Format(receiptTimeLayout),
					strconv.Itoa(r.Items),
					cart.FormatAmount(currency, r.Total),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Paid", "Items", "Total"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				nil,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum receipts to list")
	return cmd
}

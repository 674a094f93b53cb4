package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCartCommand(ctx *commandContext) *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the current cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Cart(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if resp.Empty() {
				fmt.Fprintln(out, "Cart is empty")
				return nil
			}
			cfg, _ := ctx.ensureConfig()
			fmt.Fprintln(out, renderCart(resp.Lines, resp.Total, cfg.Payment.CurrencySymbol))
			return nil
		},
	}
	cartCmd.AddCommand(newCartAddCommand(ctx))
	return cartCmd
}

func newCartAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add LABEL",
		Short: "Add one item by catalog label without scanning it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.AddItem(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (qty %d); total %s\n", resp.Line.Name, resp.Line.Quantity, resp.Cart.TotalText)
			return nil
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every line from the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.ClearCart(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			switch resp.Removed {
			case 0:
				fmt.Fprintln(cmd.OutOrStdout(), "Cart was already empty")
			case 1:
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared 1 line")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d lines\n", resp.Removed)
			}
			return nil
		},
	}
}

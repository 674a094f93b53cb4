package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scancart/internal/api"
	"scancart/internal/kiosk"
	"scancart/internal/payment"
)

const checkoutPollInterval = 500 * time.Millisecond

func newCheckoutCommand(ctx *commandContext) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
		status  bool
		cancel  bool
		qrPath  string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Start, inspect, or cancel a payment for the current cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status && cancel {
				return errors.New("--status and --cancel are mutually exclusive")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var co *kiosk.Checkout
			switch {
			case cancel:
				co, err = client.CancelCheckout(cmd.Context())
			case status:
				co, err = client.CheckoutStatus(cmd.Context())
			default:
				co, err = client.Checkout(cmd.Context())
			}
			if err != nil {
				return ctx.wrapAPIError(err)
			}

			if qrPath != "" && co.State == payment.StatePending {
				png, err := client.CheckoutQRCode(cmd.Context())
				if err != nil {
					return ctx.wrapAPIError(err)
				}
				if err := os.WriteFile(qrPath, png, 0o644); err != nil {
					return fmt.Errorf("write qr code: %w", err)
				}
			}

			if wait && co.State == payment.StatePending {
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "Waiting for payment of %s...\n", co.AmountText)
				}
				co, err = waitForCheckout(cmd.Context(), client, timeout)
				if err != nil {
					return ctx.wrapAPIError(err)
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, co)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Checkout", checkoutKind(co.State), checkoutLine(co), colorize))
			fmt.Fprintln(out, renderStatusLine("Payload", statusInfo, co.Payload, colorize))
			if qrPath != "" && co.State != payment.StateCancelled {
				fmt.Fprintln(out, renderStatusLine("QR code", statusInfo, qrPath, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the payment completes or is cancelled")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Maximum time to wait with --wait")
	cmd.Flags().BoolVar(&status, "status", false, "Show the current checkout instead of starting one")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "Cancel the pending checkout")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Write the payment QR code PNG to this path")
	return cmd
}

func waitForCheckout(ctx context.Context, client *api.Client, timeout time.Duration) (*kiosk.Checkout, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(checkoutPollInterval)
	defer ticker.Stop()
	for {
		co, err := client.CheckoutStatus(waitCtx)
		if err != nil {
			return nil, err
		}
		if co.State != payment.StatePending {
			return co, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("payment still pending after %s", timeout)
		case <-ticker.C:
		}
	}
}

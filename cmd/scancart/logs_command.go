package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scancart/internal/api"
	"scancart/internal/logging"
)

const followPollTimeout = 30 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		limit     int
		component string
		level     string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent kiosk log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			resp, err := client.Logs(cmd.Context(), api.LogQuery{
				Tail:      true,
				Limit:     limit,
				Component: component,
				Level:     level,
			})
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if err := printLogEvents(cmd, out, resp.Events, ctx.jsonOutput(), colorize); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			cursor := resp.Next
			for {
				pollCtx, cancel := context.WithTimeout(cmd.Context(), followPollTimeout)
				page, err := client.Logs(pollCtx, api.LogQuery{
					Since:     cursor,
					Follow:    true,
					Component: component,
					Level:     level,
				})
				cancel()
				switch {
				case cmd.Context().Err() != nil:
					return nil
				case errors.Is(err, context.DeadlineExceeded):
					continue
				case err != nil:
					return ctx.wrapAPIError(err)
				}
				if err := printLogEvents(cmd, out, page.Events, ctx.jsonOutput(), colorize); err != nil {
					return err
				}
				if page.Next > cursor {
					cursor = page.Next
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&limit, "lines", "n", 50, "Number of recent events to show")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&level, "level", "", "Only show events at this level")
	return cmd
}

func printLogEvents(cmd *cobra.Command, out io.Writer, events []logging.LogEvent, asJSON, colorize bool) error {
	for _, evt := range events {
		if asJSON {
			if err := writeJSON(cmd, evt); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, formatLogEvent(evt, colorize))
	}
	return nil
}

// formatLogEvent renders an event the way the console log handler does.
func formatLogEvent(evt logging.LogEvent, colorize bool) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format(time.DateTime))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(evt.Level)))
	b.WriteByte(' ')
	if evt.Component != "" {
		b.WriteString(evt.Component)
		b.WriteString(": ")
	}
	b.WriteString(evt.Message)
	if evt.Label != "" {
		b.WriteString(" label=")
		b.WriteString(evt.Label)
	}
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(evt.Fields[key])
	}
	line := b.String()
	if colorize {
		if color := statusKindColor(levelKind(evt.Level)); color != "" && levelKind(evt.Level) != statusInfo {
			return color + line + ansiReset
		}
	}
	return line
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"scancart/internal/cart"
	"scancart/internal/classifier"
	"scancart/internal/detection"
	"scancart/internal/kiosk"
	"scancart/internal/logging"
	"scancart/internal/scanner"
)

type replayReport struct {
	File             string               `json:"file"`
	Frames           int                  `json:"frames"`
	CurrentDetection string               `json:"current_detection"`
	Cart             cart.Snapshot        `json:"cart"`
	Stats            scanner.Stats        `json:"stats"`
	Decisions        []detection.Decision `json:"decisions,omitempty"`
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var trace bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Run a recorded JSONL frame file through an offline kiosk",
		Long: "Replays classifier frames recorded as JSON lines ({\"at_ms\":0,\"predictions\":[...]})\n" +
			"through the same debouncer and cart the live kiosk uses. Time follows the\n" +
			"recorded at_ms values, so cooldowns behave exactly as they did on camera.\n" +
			"No camera, API, receipts, or notifications are involved.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			offline := *cfg
			offline.Camera.Monitor = false
			offline.Notifications.NtfyTopic = ""

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}

			mock := clock.NewMock()
			mock.Set(time.Now().UTC())
			start := mock.Now()
			replay, err := classifier.OpenReplay(args[0], mock)
			if err != nil {
				return err
			}

			k, err := kiosk.New(&offline, logger,
				kiosk.WithClock(mock),
				kiosk.WithClassifier(replay),
				kiosk.WithFrameInterval(0),
				kiosk.WithoutReceipts(),
			)
			if err != nil {
				return err
			}
			defer k.Close()

			report := replayReport{File: args[0], Frames: replay.Len()}
			out := cmd.OutOrStdout()
			k.OnDecision(func(d detection.Decision) {
				if !trace {
					return
				}
				if ctx.jsonOutput() {
					report.Decisions = append(report.Decisions, d)
					return
				}
				fmt.Fprintln(out, formatDecision(d, start))
			})

			if err := k.Scan(cmd.Context()); err != nil {
				return err
			}

			report.CurrentDetection = k.CurrentDetection()
			report.Cart = k.CartSnapshot()
			report.Stats = k.Stats()
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printReplayReport(out, report, offline.Payment.CurrencySymbol)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&trace, "trace", "t", false, "Print every frame decision")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on stderr")
	return cmd
}

func formatDecision(d detection.Decision, start time.Time) string {
	offset := d.At.Sub(start).Milliseconds()
	line := fmt.Sprintf("%7dms  %-15s", offset, d.Outcome)
	if d.Label != "" {
		line += fmt.Sprintf(" %s (%.4f)", d.Label, d.Probability)
	}
	if d.Outcome == detection.OutcomeScanned {
		line += fmt.Sprintf(" qty=%d", d.Line.Quantity)
	}
	return line
}

func printReplayReport(out io.Writer, report replayReport, currency string) {
	fmt.Fprintf(out, "Replayed %d frames from %s\n", report.Frames, report.File)
	detected := report.CurrentDetection
	if detected == "" {
		detected = "none"
	}
	fmt.Fprintf(out, "Last detection: %s\n\n", detected)
	if report.Cart.Empty() {
		fmt.Fprintln(out, "Cart is empty")
	} else {
		fmt.Fprintln(out, renderCart(report.Cart.Lines, report.Cart.Total, currency))
	}
	fmt.Fprintln(out)

	counts := map[detection.Outcome]int64{
		detection.OutcomeEmpty:          report.Stats.Empty,
		detection.OutcomeBelowThreshold: report.Stats.BelowThreshold,
		detection.OutcomeSentinel:       report.Stats.Sentinel,
		detection.OutcomeCooldown:       report.Stats.Cooldown,
		detection.OutcomeScanned:        report.Stats.Scanned,
		detection.OutcomeUnknown:        report.Stats.Unknown,
	}
	rows := make([][]string, 0, len(detection.Outcomes)+1)
	for _, outcome := range detection.Outcomes {
		rows = append(rows, []string{string(outcome), strconv.FormatInt(counts[outcome], 10)})
	}
	if report.Stats.ClassifyErrors > 0 {
		rows = append(rows, []string{"classify_error", strconv.FormatInt(report.Stats.ClassifyErrors, 10)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Outcome", "Frames"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
		[]string{"total", strconv.FormatInt(report.Stats.Frames, 10)},
	))
}

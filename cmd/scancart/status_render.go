package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"scancart/internal/cart"
	"scancart/internal/kiosk"
	"scancart/internal/payment"
	"scancart/internal/scanner"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func levelKind(level string) statusKind {
	switch strings.ToLower(level) {
	case "error":
		return statusError
	case "warn":
		return statusWarn
	default:
		return statusInfo
	}
}

func scannerKind(status scanner.Status) statusKind {
	switch status {
	case scanner.StatusRunning:
		return statusOK
	case scanner.StatusDegraded:
		return statusError
	case scanner.StatusStopped:
		return statusWarn
	default:
		return statusInfo
	}
}

func checkoutKind(state payment.State) statusKind {
	switch state {
	case payment.StateCompleted:
		return statusOK
	case payment.StateCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

func checkoutLine(co *kiosk.Checkout) string {
	msg := fmt.Sprintf("%s %s (%s)", co.State, co.AmountText, co.ID)
	if co.ReceiptID != "" {
		msg += " receipt recorded"
	}
	if co.Error != "" {
		msg += "; " + co.Error
	}
	return msg
}

// renderStatus formats the kiosk status report.
func renderStatus(st *kiosk.Status, currency string, colorize bool) string {
	var lines []string
	lines = append(lines, renderSectionHeader("Kiosk", colorize)...)

	if st.Running {
		lines = append(lines, renderStatusLine("Kiosk", statusOK, "running", colorize))
	} else {
		lines = append(lines, renderStatusLine("Kiosk", statusWarn, "not scanning", colorize))
	}
	scannerMsg := string(st.Scanner)
	if st.ScannerError != "" {
		scannerMsg += ": " + st.ScannerError
	}
	lines = append(lines, renderStatusLine("Scanner", scannerKind(st.Scanner), scannerMsg, colorize))
	if st.Camera != nil {
		kind, msg := statusOK, st.Camera.Device+" present"
		if !st.Camera.Present {
			kind, msg = statusError, st.Camera.Device+" missing"
		}
		if !st.Camera.Monitoring {
			msg += " (hotplug not tracked)"
		}
		lines = append(lines, renderStatusLine("Camera", kind, msg, colorize))
	}
	detection := st.CurrentDetection
	if detection == "" {
		detection = "none"
	}
	lines = append(lines, renderStatusLine("Detection", statusInfo, detection, colorize))
	lines = append(lines, renderStatusLine("Frames", statusInfo, fmt.Sprintf(
		"%d processed, %d scanned, %d unknown, %d errors",
		st.Stats.Frames, st.Stats.Scanned, st.Stats.Unknown, st.Stats.ClassifyErrors,
	), colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Cart", colorize)...)
	if st.Cart.Empty() {
		lines = append(lines, statusIndent+"Cart is empty")
	} else {
		lines = append(lines, renderCart(st.Cart.Lines, st.Cart.Total, currency))
	}
	if st.Checkout != nil {
		lines = append(lines, renderStatusLine("Checkout", checkoutKind(st.Checkout.State), checkoutLine(st.Checkout), colorize))
	}
	if st.Receipts != nil {
		lines = append(lines, renderStatusLine("Receipts", statusInfo, fmt.Sprintf(
			"%d paid, %s revenue", st.Receipts.Count, cart.FormatAmount(currency, st.Receipts.Revenue),
		), colorize))
	}
	if st.ReceiptsPath != "" {
		lines = append(lines, renderStatusLine("Journal", statusInfo, st.ReceiptsPath, colorize))
	}
	return strings.Join(lines, "\n")
}


// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/nsefi/policy-harvester/internal/pipeline"
)

// boxWidth is the default width for formatted output boxes
const boxWidth = 60

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunReport outputs a human-readable summary of a harvest run.
func (p *Printer) PrintRunReport(report *pipeline.RunReport) {
	if report == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:    %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Window: %s %d\n", report.Month, report.Year))
	sb.WriteString(fmt.Sprintf("State:  %s\n", report.State))
	sb.WriteString("\n")

	for _, sr := range report.Sources {
		if sr.Failure != "" {
			sb.WriteString(fmt.Sprintf("  • %-10s FAILED (%s)\n", sr.Source, sr.Failure))
			continue
		}
		sb.WriteString(fmt.Sprintf("  • %-10s %d rows, %d kept", sr.Source, sr.RowsExtracted, sr.RecordsKept))
		if sr.RowsDropped > 0 {
			sb.WriteString(fmt.Sprintf(", %d dropped", sr.RowsDropped))
		}
		if sr.OutOfWindow > 0 {
			sb.WriteString(fmt.Sprintf(", %d out of window", sr.OutOfWindow))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Published: %d\n", report.Published))
	if report.Revision != "" {
		sb.WriteString(fmt.Sprintf("Revision:  %s\n", report.Revision))
	}
	if report.PublishErr != "" {
		sb.WriteString(fmt.Sprintf("Publish error: %s\n", report.PublishErr))
	}

	p.printBox("HARVEST RUN REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

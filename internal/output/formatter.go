package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Formatter renders CallResults.
type Formatter struct {
	Format  Format
	Verbose bool
	colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(format Format, verbose, noColor bool) *Formatter {
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}
	if format == "" {
		format = FormatText
	}
	return &Formatter{Format: format, Verbose: verbose, colors: colors}
}

// FormatResult renders r in the formatter's format.
func (f *Formatter) FormatResult(r *CallResult) (string, error) {
	switch f.Format {
	case FormatJSON:
		return marshalJSON(r)
	case FormatYAML:
		return marshalYAML(r)
	default:
		return f.formatText(r), nil
	}
}

func (f *Formatter) formatText(r *CallResult) string {
	var buf strings.Builder

	icon := f.colors.SuccessIcon()
	if !r.Passed {
		icon = f.colors.ErrorIcon()
	}

	fmt.Fprintf(&buf, "%s %s: %s (%dms)\n",
		icon,
		f.colors.Name.Sprint(r.Name),
		f.colors.status(r.StatusCode).Sprint(r.Status),
		r.Timing.Total)

	if r.SessionID != "" {
		fmt.Fprintf(&buf, "  Session: %s\n", r.SessionID)
	}

	if f.Verbose {
		buf.WriteString("  Timing:\n")
		fmt.Fprintf(&buf, "    DNS Lookup:         %dms\n", r.Timing.DNSLookup)
		fmt.Fprintf(&buf, "    TCP Connection:     %dms\n", r.Timing.TCPConnection)
		fmt.Fprintf(&buf, "    TLS Handshake:      %dms\n", r.Timing.TLSHandshake)
		fmt.Fprintf(&buf, "    Time to First Byte: %dms\n", r.Timing.TimeToFirstByte)
		fmt.Fprintf(&buf, "    Content Transfer:   %dms\n", r.Timing.ContentTransfer)

		keys := make([]string, 0, len(r.Headers))
		for k := range r.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString("  Headers:\n")
		for _, k := range keys {
			fmt.Fprintf(&buf, "    %s: %s\n", f.colors.HeaderKey.Sprint(k), r.Headers[k])
		}
	}

	if r.Body != nil {
		buf.WriteString("  Body:\n  ")
		buf.WriteString(formatBody(r.Body))
		buf.WriteString("\n")
	}

	return buf.String()
}

// formatBody pretty-prints a decoded JSON body, or returns a string body as is.
func formatBody(body interface{}) string {
	if s, ok := body.(string); ok {
		return s
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("%v", body)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "  ", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

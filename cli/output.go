package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/coder/serpent"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// outputFlag selects between a table and indented JSON.
type outputFlag struct {
	format string
}

func (o *outputFlag) option() serpent.Option {
	return serpent.Option{
		Flag:          "output",
		FlagShorthand: "o",
		Description:   "Output format. Available formats are: table, json.",
		Default:       formatTable,
		Value:         serpent.EnumOf(&o.format, formatTable, formatJSON),
	}
}

// write renders v as JSON, or calls render for a table.
func (o *outputFlag) write(w io.Writer, v any, render func() table.Writer) error {
	if o.format == formatJSON {
		return writeJSON(w, v)
	}
	_, err := fmt.Fprintln(w, render().Render())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateColumns = false
	tw.AppendHeader(header)
	return tw
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

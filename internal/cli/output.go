// Shared helpers for stowage CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// withSession opens a session, runs fn, and saves the state afterwards when
// mutate is set and fn succeeded.
func withSession(cmd *cobra.Command, flags *rootFlags, mutate bool, fn func(s *session) error) error {
	s, err := openSession(cmd, flags)
	if err != nil {
		return err
	}
	defer s.close()

	if err := fn(s); err != nil {
		return err
	}
	if mutate {
		return s.save()
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError("marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printTable writes rows under header, aligned in columns, trimming
// trailing padding from every line.
func printTable(w io.Writer, header []string, rows [][]string) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	// Underline each header to its column width.
	dashes := make([]string, len(header))
	for i, h := range header {
		width := utf8.RuneCountInString(h)
		for _, row := range rows {
			if i < len(row) {
				width = max(width, utf8.RuneCountInString(row[i]))
			}
		}
		dashes[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// readJSONFile decodes the JSON document at path into v; "-" reads stdin.
func readJSONFile(cmd *cobra.Command, path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPosition(p types.Position) string {
	s, e := p.StartCoordinates, p.EndCoordinates
	return fmt.Sprintf("(%s,%s,%s)-(%s,%s,%s)",
		formatFloat(s.Width), formatFloat(s.Depth), formatFloat(s.Height),
		formatFloat(e.Width), formatFloat(e.Depth), formatFloat(e.Height))
}

func formatDims(w, d, h float64) string {
	return formatFloat(w) + "x" + formatFloat(d) + "x" + formatFloat(h)
}

// printRetrievalSteps writes one line per retrieval step.
func printRetrievalSteps(w io.Writer, steps []types.RetrievalStep) {
	for _, st := range steps {
		fmt.Fprintf(w, "  %d. %s %s (%s)\n", st.Step, st.Action, st.ItemID, st.ItemName)
	}
}

// coordinatesValue is a pflag.Value for "w,d,h" flags.
type coordinatesValue types.Coordinates

var _ pflag.Value = (*coordinatesValue)(nil)

// coordinatesVar registers a "w,d,h" flag on fs bound to p.
func coordinatesVar(fs *pflag.FlagSet, p *types.Coordinates, name string, value types.Coordinates, usage string) {
	*p = value
	fs.Var((*coordinatesValue)(p), name, usage)
}

func (c *coordinatesValue) String() string {
	return formatFloat(c.Width) + "," + formatFloat(c.Depth) + "," + formatFloat(c.Height)
}

func (c *coordinatesValue) Set(s string) error {
	parsed, err := parseCoordinates(s)
	if err != nil {
		return err
	}
	*c = coordinatesValue(parsed)
	return nil
}

func (c *coordinatesValue) Type() string { return "w,d,h" }

// parseCoordinates parses "w,d,h".
func parseCoordinates(s string) (types.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return types.Coordinates{}, fmt.Errorf("coordinates %q: want width,depth,height", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Coordinates{}, fmt.Errorf("coordinates %q: %w", s, err)
		}
		vals[i] = v
	}
	return types.Coordinates{Width: vals[0], Depth: vals[1], Height: vals[2]}, nil
}

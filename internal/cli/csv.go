// CSV manifests for containers and items.
package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/multierr"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// csvTable is a parsed CSV file addressed by normalised header names.
type csvTable struct {
	columns map[string]int
	rows    [][]string
}

// normalizeHeader lowercases a header and drops units in parentheses and
// any non-alphanumeric characters, so "Width (cm)" becomes "width".
func normalizeHeader(h string) string {
	if i := strings.IndexByte(h, '('); i >= 0 {
		h = h[:i]
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func readCSV(r io.Reader, required ...string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header")
	}
	t := &csvTable{columns: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		t.columns[normalizeHeader(h)] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, fmt.Errorf("read csv: missing column %q", col)
		}
	}
	return t, nil
}

// get returns the trimmed cell of row for column, or "" when absent.
func (t *csvTable) get(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// absent reports whether a cell holds no value.
func absent(v string) bool {
	switch strings.ToLower(v) {
	case "", "n/a", "na", "none", "-":
		return true
	}
	return false
}

func parseFloatCell(v, column string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", column, v, err)
	}
	return f, nil
}

// parseContainersCSV reads "Zone,Container ID,Width,Depth,Height" rows.
func parseContainersCSV(r io.Reader) ([]types.Container, error) {
	t, err := readCSV(r, "containerid", "width", "depth", "height")
	if err != nil {
		return nil, err
	}
	var (
		out  []types.Container
		errs error
	)
	for n, row := range t.rows {
		c := types.Container{ContainerID: t.get(row, "containerid"), Zone: t.get(row, "zone")}
		var rowErr error
		for _, f := range []struct {
			col string
			dst *float64
		}{{"width", &c.Width}, {"depth", &c.Depth}, {"height", &c.Height}} {
			v, err := parseFloatCell(t.get(row, f.col), f.col)
			rowErr = multierr.Append(rowErr, err)
			*f.dst = v
		}
		if rowErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("row %d: %w", n+2, rowErr))
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

// parseItemsCSV reads item manifest rows. Expiry date and usage limit may
// be empty or "N/A".
func parseItemsCSV(r io.Reader) ([]types.Item, error) {
	t, err := readCSV(r, "itemid", "name", "width", "depth", "height")
	if err != nil {
		return nil, err
	}
	var (
		out  []types.Item
		errs error
	)
	for n, row := range t.rows {
		it, err := parseItemRow(t, row)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("row %d: %w", n+2, err))
			continue
		}
		out = append(out, it)
	}
	return out, errs
}

func parseItemRow(t *csvTable, row []string) (types.Item, error) {
	it := types.Item{
		ItemID:        t.get(row, "itemid"),
		Name:          t.get(row, "name"),
		PreferredZone: t.get(row, "preferredzone"),
	}
	var errs error
	for _, f := range []struct {
		col string
		dst *float64
	}{{"width", &it.Width}, {"depth", &it.Depth}, {"height", &it.Height}} {
		v, err := parseFloatCell(t.get(row, f.col), f.col)
		errs = multierr.Append(errs, err)
		*f.dst = v
	}
	if v := t.get(row, "mass"); !absent(v) {
		m, err := parseFloatCell(v, "mass")
		errs = multierr.Append(errs, err)
		it.Mass = m
	}
	if v := t.get(row, "priority"); !absent(v) {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("priority %q: %w", v, err))
		}
		it.Priority = p
	}
	if v := t.get(row, "expirydate"); !absent(v) {
		d, err := types.ParseDate(v)
		errs = multierr.Append(errs, err)
		if err == nil {
			it.ExpiryDate = types.DatePtr(d)
		}
	}
	if v := t.get(row, "usagelimit"); !absent(v) {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("usage limit %q: %w", v, err))
		} else {
			it.UsageLimit = types.IntPtr(n)
		}
	}
	return it, errs
}

// openManifest opens path for reading; "-" is stdin.
func openManifest(stdin io.Reader, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

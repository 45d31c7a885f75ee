package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func TestCoordinatesFlag(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    types.Coordinates
		wantErr bool
	}{
		{"default", nil, types.Coordinates{}, false},
		{"integers", []string{"--start", "1,2,3"}, types.Coordinates{Width: 1, Depth: 2, Height: 3}, false},
		{"spaces and fractions", []string{"--start", " 0.5, 2 ,10"}, types.Coordinates{Width: 0.5, Depth: 2, Height: 10}, false},
		{"too few", []string{"--start", "1,2"}, types.Coordinates{}, true},
		{"not a number", []string{"--start", "1,x,3"}, types.Coordinates{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			fs.SetOutput(&bytes.Buffer{})
			var got types.Coordinates
			coordinatesVar(fs, &got, "start", types.Coordinates{}, "start corner")

			err := fs.Parse(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoordinatesFlagString(t *testing.T) {
	c := coordinatesValue(types.Coordinates{Width: 1.5, Depth: 0, Height: 20})
	assert.Equal(t, "1.5,0,20", c.String())
	assert.Equal(t, "w,d,h", c.Type())
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{"ID", "NAME"}, [][]string{{"001", "Food Packet"}, {"2", "Wipes"}})
	assert.Equal(t, "ID   NAME\n---  -----------\n001  Food Packet\n2    Wipes\n", buf.String())
}

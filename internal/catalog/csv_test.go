package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhafen/ship/internal/buyin"
)

func TestParseSegmentsCSV(t *testing.T) {
	input := "Name,Weight,Default Compatibility\n" +
		"researchers,3,0.5\n" +
		"students,1,0.4\n"

	segments, err := ParseSegmentsCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []buyin.Segment{
		{ID: "researchers", Value: 3, DefaultFit: 0.5},
		{ID: "students", Value: 1, DefaultFit: 0.4},
	}, segments)
}

func TestParseSegmentsCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		row     int
		column  string
	}{
		{
			name:   "missing weight column",
			input:  "Name,Default Compatibility\nresearchers,0.5\n",
			row:    1,
			column: "Weight",
		},
		{
			name:   "invalid weight",
			input:  "Name,Weight,Default Compatibility\nresearchers,heavy,0.5\n",
			row:    2,
			column: "Weight",
		},
		{
			name:   "negative compatibility",
			input:  "Name,Weight,Default Compatibility\nresearchers,3,-0.5\n",
			row:    2,
			column: "Default Compatibility",
		},
		{
			name:   "empty name",
			input:  "Name,Weight,Default Compatibility\n ,3,0.5\n",
			row:    2,
			column: "Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSegmentsCSV(strings.NewReader(tt.input))
			require.Error(t, err)

			var perr ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "segments", perr.Kind)
			assert.Equal(t, tt.row, perr.Row)
			assert.Equal(t, tt.column, perr.Column)
		})
	}
}

func TestParseMarketsCSV(t *testing.T) {
	input := "Market Name,researchers,students\n" +
		"academia,200,1500\n" +
		"industry,50,\n"

	markets, err := ParseMarketsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "academia", markets[0].ID)
	assert.Equal(t, 200.0, markets[0].Members("researchers"))
	assert.Equal(t, 1500.0, markets[0].Members("students"))

	// Empty cell means no membership, not a zero count.
	assert.Equal(t, "industry", markets[1].ID)
	assert.True(t, markets[1].Contains("researchers"))
	assert.False(t, markets[1].Contains("students"))
}

func TestParseMarketsCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		row   int
	}{
		{
			name:  "wrong first column",
			input: "Name,researchers\nacademia,200\n",
			row:   1,
		},
		{
			name:  "invalid count",
			input: "Market Name,researchers\nacademia,many\n",
			row:   2,
		},
		{
			name:  "empty market name",
			input: "Market Name,researchers\n,200\n",
			row:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMarketsCSV(strings.NewReader(tt.input))
			require.Error(t, err)

			var perr ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "markets", perr.Kind)
			assert.Equal(t, tt.row, perr.Row)
		})
	}
}

func TestCSVImportBuildsCatalog(t *testing.T) {
	segments, err := ParseSegmentsCSV(strings.NewReader(
		"Name,Weight,Default Compatibility\nresearchers,3,0.5\nstudents,1,0.4\n"))
	require.NoError(t, err)

	markets, err := ParseMarketsCSV(strings.NewReader(
		"Market Name,researchers,students\nacademia,200,1500\n"))
	require.NoError(t, err)

	c, err := New([]string{"functionality"}, 8, segments, markets)
	require.NoError(t, err)

	market, ok := c.Market("academia")
	require.True(t, ok)
	assert.Equal(t, 3.0, market.Memberships[0].Segment.Value)
}

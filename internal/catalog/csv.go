package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zhafen/ship/internal/buyin"
)

// Segment CSV column layout. Markets CSV carries a "Market Name" column
// followed by one column per segment holding the member count.
const (
	segmentNameColumn    = "Name"
	segmentWeightColumn  = "Weight"
	segmentDefaultColumn = "Default Compatibility"
	marketNameColumn     = "Market Name"
)

// ParseError reports a malformed catalog upload with its position. Row 1 is
// the header.
type ParseError struct {
	Kind   string
	Row    int
	Column string
	Msg    string
}

func (e ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s csv: row %d, column %q: %s", e.Kind, e.Row, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s csv: row %d: %s", e.Kind, e.Row, e.Msg)
}

// ParseSegmentsCSV reads segment definitions in the Name / Weight / Default
// Compatibility layout.
func ParseSegmentsCSV(r io.Reader) ([]buyin.Segment, error) {
	rows, err := readAll("segments", r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ParseError{Kind: "segments", Row: 1, Msg: "missing header"}
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{segmentNameColumn, segmentWeightColumn, segmentDefaultColumn} {
		if _, ok := cols[required]; !ok {
			return nil, ParseError{Kind: "segments", Row: 1, Column: required, Msg: "missing column"}
		}
	}

	segments := make([]buyin.Segment, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		name := strings.TrimSpace(row[cols[segmentNameColumn]])
		if name == "" {
			return nil, ParseError{Kind: "segments", Row: rowNum, Column: segmentNameColumn, Msg: "empty name"}
		}
		weight, err := parseCell("segments", rowNum, segmentWeightColumn, row[cols[segmentWeightColumn]])
		if err != nil {
			return nil, err
		}
		defaultFit, err := parseCell("segments", rowNum, segmentDefaultColumn, row[cols[segmentDefaultColumn]])
		if err != nil {
			return nil, err
		}
		segments = append(segments, buyin.Segment{ID: name, Value: weight, DefaultFit: defaultFit})
	}
	return segments, nil
}

// ParseMarketsCSV reads market definitions: one row per market, one column
// per segment, cells holding member counts. Empty cells mean the market has
// no membership for that segment.
func ParseMarketsCSV(r io.Reader) ([]buyin.Market, error) {
	rows, err := readAll("markets", r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ParseError{Kind: "markets", Row: 1, Msg: "missing header"}
	}

	header := rows[0]
	if len(header) == 0 || strings.TrimSpace(header[0]) != marketNameColumn {
		return nil, ParseError{Kind: "markets", Row: 1, Column: marketNameColumn, Msg: "missing column"}
	}
	segmentNames := make([]string, len(header)-1)
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ParseError{Kind: "markets", Row: 1, Msg: fmt.Sprintf("empty segment name in column %d", i+2)}
		}
		segmentNames[i] = name
	}

	markets := make([]buyin.Market, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		name := strings.TrimSpace(row[0])
		if name == "" {
			return nil, ParseError{Kind: "markets", Row: rowNum, Column: marketNameColumn, Msg: "empty name"}
		}
		market := buyin.Market{ID: name}
		for j, segName := range segmentNames {
			cell := strings.TrimSpace(row[j+1])
			if cell == "" {
				continue
			}
			members, err := parseCell("markets", rowNum, segName, cell)
			if err != nil {
				return nil, err
			}
			market.Memberships = append(market.Memberships, buyin.Membership{
				Segment: buyin.Segment{ID: segName},
				Members: members,
			})
		}
		markets = append(markets, market)
	}
	return markets, nil
}

func readAll(kind string, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		row := 0
		if perr, ok := err.(*csv.ParseError); ok {
			row = perr.Line
		}
		return nil, ParseError{Kind: kind, Row: row, Msg: err.Error()}
	}
	return rows, nil
}

func parseCell(kind string, row int, column, cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, ParseError{Kind: kind, Row: row, Column: column, Msg: fmt.Sprintf("invalid number %q", strings.TrimSpace(cell))}
	}
	if v < 0 {
		return 0, ParseError{Kind: kind, Row: row, Column: column, Msg: fmt.Sprintf("negative value %g", v)}
	}
	return v, nil
}

package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by header label. Every header is present; an
// empty cell is "".
type Row map[string]string

// ParseResult is the outcome of Parse. On failure Error is always
// MsgInvalidFormat.
type ParseResult struct {
	Success bool
	Rows    []Row
	Headers []string
	Error   string
}

// Format is the detected workbook container.
type Format int

const (
	FormatUnknown Format = iota
	FormatXLSX
	FormatXLS
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "unknown"
	}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat sniffs the container from its leading bytes.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	default:
		return FormatUnknown
	}
}

const emptyHeader = "__EMPTY"

// defaultUnzipLimit caps the decompressed size of an .xlsx archive.
const defaultUnzipLimit int64 = 256 << 20

var errNoSheets = errors.New("workbook has no sheets")

// Parser decodes workbooks. Only sheet index 0, by position, is read; later
// sheets are ignored.
type Parser struct {
	unzipLimit int64
	logger     *slog.Logger
}

// NewParser creates a parser. A nil logger uses slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{unzipLimit: defaultUnzipLimit, logger: logger}
}

// Parse decodes data. It never panics and never returns decoder
// diagnostics: every structural failure becomes MsgInvalidFormat.
func (p *Parser) Parse(data []byte) (res ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("sheet: decoder panic", "panic", fmt.Sprint(r))
			res = ParseResult{Error: MsgInvalidFormat}
		}
	}()

	format := DetectFormat(data)

	var (
		grid [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		grid, err = p.readXLSX(data)
	case FormatXLS:
		grid, err = readXLS(data)
	default:
		err = errors.New("unrecognised container")
	}
	if err != nil {
		p.logger.Debug("sheet: parse failed", "format", format.String(), "error", err)
		return ParseResult{Error: MsgInvalidFormat}
	}

	headers, rows := toRecords(grid)
	return ParseResult{Success: true, Rows: rows, Headers: headers}
}

func (p *Parser) readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{
		UnzipSizeLimit: p.unzipLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, errNoSheets
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errNoSheets
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		// LastCol is one past the last defined column.
		last := row.LastCol()
		cells := make([]string, last)
		for c := row.FirstCol(); c < last; c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// xlsRow returns row i, or nil when the sheet stores nothing for it.
// WorkSheet.Row dereferences a missing row instead of returning nil.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// toRecords turns a cell grid into header-keyed rows. The grid is cropped
// to its used range first; the first remaining row is the header row.
func toRecords(grid [][]string) ([]string, []Row) {
	top, left, width := usedRange(grid)
	if top < 0 {
		return []string{}, []Row{}
	}

	headers := headerLabels(cellsAt(grid[top], left, width))

	rows := make([]Row, 0, len(grid)-top-1)
	for _, raw := range grid[top+1:] {
		cells := cellsAt(raw, left, width)
		if isBlank(cells) {
			continue
		}
		row := make(Row, width)
		for c, h := range headers {
			row[h] = cells[c]
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// usedRange finds the first non-empty row, the leftmost non-empty column
// and the width up to the rightmost non-empty column. top is -1 for an
// empty sheet.
func usedRange(grid [][]string) (top, left, width int) {
	top, left = -1, -1
	right := -1
	for r, cells := range grid {
		for c, v := range cells {
			if v == "" {
				continue
			}
			if top < 0 {
				top = r
			}
			if left < 0 || c < left {
				left = c
			}
			if c > right {
				right = c
			}
		}
	}
	if top < 0 {
		return -1, 0, 0
	}
	return top, left, right - left + 1
}

// cellsAt returns exactly width cells starting at left, padding with "".
func cellsAt(raw []string, left, width int) []string {
	out := make([]string, width)
	for c := 0; c < width; c++ {
		if i := left + c; i < len(raw) {
			out[c] = raw[i]
		}
	}
	return out
}

// isBlank reports whether every cell is empty. A cell holding only
// whitespace still has a value.
func isBlank(cells []string) bool {
	for _, v := range cells {
		if v != "" {
			return false
		}
	}
	return true
}

// headerLabels names every column. Empty labels become __EMPTY, and any
// repeated label gets a _N suffix: __EMPTY, __EMPTY_1, Name, Name_1.
func headerLabels(cells []string) []string {
	seen := make(map[string]int, len(cells))
	labels := make([]string, len(cells))
	for i, v := range cells {
		base := strings.TrimSpace(v)
		if base == "" {
			base = emptyHeader
		}

		label := base
		if n, dup := seen[base]; dup {
			for {
				label = base + "_" + strconv.Itoa(n)
				n++
				if _, taken := seen[label]; !taken {
					break
				}
			}
			seen[base] = n
			seen[label] = 1
		} else {
			seen[base] = 1
		}
		labels[i] = label
	}
	return labels
}

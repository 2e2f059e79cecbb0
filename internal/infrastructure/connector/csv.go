package connector

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// CSV parsing errors
var (
	ErrEmptyFile       = errors.New("connector: file is empty")
	ErrInvalidEncoding = errors.New("connector: file is not valid UTF-8")
	ErrMissingHeader   = errors.New("connector: file has no header row")
)

// csvParser reads a UTF-8 CSV stream with a header row. It strips a
// leading BOM, which supplier exports written on Windows routinely carry.
type csvParser struct {
	headers    []string
	headerMap  map[string]int
	reader     *csv.Reader
	currentRow int
}

// newCSVParser creates a parser and consumes the header row
func newCSVParser(r io.Reader, comma rune) (*csvParser, error) {
	buf := bufio.NewReader(r)

	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("connector: failed to read file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	if err := validateUTF8(buf); err != nil {
		return nil, err
	}

	parser := &csvParser{
		headerMap: make(map[string]int),
		reader:    csv.NewReader(buf),
	}
	parser.reader.Comma = comma
	parser.reader.LazyQuotes = true
	parser.reader.TrimLeadingSpace = true
	parser.reader.FieldsPerRecord = -1

	record, err := parser.reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("connector: failed to read header: %w", err)
	}
	for i, h := range record {
		header := strings.TrimSpace(h)
		parser.headers = append(parser.headers, header)
		parser.headerMap[header] = i
	}
	parser.currentRow = 1

	return parser, nil
}

func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("connector: failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	// A full window may end mid-rune; drop at most a partial trailing rune
	// before validating
	if len(content) == checkSize {
		for i := 0; i < utf8.UTFMax && len(content) > 0; i++ {
			if utf8.Valid(content) {
				return nil
			}
			content = content[:len(content)-1]
		}
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}

// missingHeaders reports which of the required headers are absent
func (p *csvParser) missingHeaders(required []string) []string {
	var missing []string
	for _, h := range required {
		if _, ok := p.headerMap[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}

// csvRow is one parsed data row keyed by header name
type csvRow struct {
	lineNumber int
	data       map[string]string
	rawFields  []string
}

func (r *csvRow) get(header string) string {
	return r.data[header]
}

func (r *csvRow) isEmpty() bool {
	for _, v := range r.data {
		if v != "" {
			return false
		}
	}
	return true
}

// readRow reads the next data row, skipping nothing
func (p *csvParser) readRow() (*csvRow, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		p.currentRow++
		return nil, fmt.Errorf("connector: error reading row %d: %w", p.currentRow, err)
	}
	p.currentRow++

	row := &csvRow{
		lineNumber: p.currentRow,
		data:       make(map[string]string, len(p.headers)),
		rawFields:  record,
	}
	for i, header := range p.headers {
		if i < len(record) {
			row.data[header] = strings.TrimSpace(record[i])
		} else {
			row.data[header] = ""
		}
	}
	return row, nil
}

// readAllRows reads every remaining non-empty data row
func (p *csvParser) readAllRows() ([]*csvRow, error) {
	var rows []*csvRow
	for {
		row, err := p.readRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		if row.isEmpty() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

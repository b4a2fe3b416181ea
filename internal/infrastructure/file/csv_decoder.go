package file

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type MalformedRowError struct {
	Line    int
	Index   int
	Columns int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("line %d: column %d requested but row has %d columns", e.Line, e.Index, e.Columns)
}

func (e *MalformedRowError) Unwrap() error {
	return domain.ErrMalformedRow
}

type CSVDecoder struct {
	reader        *csv.Reader
	mapping       domain.ColumnMapping
	headerSkipped bool
}

func NewCSVDecoder(r io.Reader, mapping domain.ColumnMapping) *CSVDecoder {
	return &CSVDecoder{
		reader:  newCSVReader(r),
		mapping: mapping,
	}
}

func (d *CSVDecoder) Next() (domain.RawProspect, error) {
	if d.mapping.HasHeaders && !d.headerSkipped {
		d.headerSkipped = true
		if _, err := d.reader.Read(); err != nil {
			return domain.RawProspect{}, err
		}
	}

	record, err := d.reader.Read()
	if err != nil {
		return domain.RawProspect{}, err
	}
	line, _ := d.reader.FieldPos(0)

	email, err := field(record, d.mapping.EmailIndex, line)
	if err != nil {
		return domain.RawProspect{}, err
	}
	firstName, err := optionalField(record, d.mapping.FirstNameIndex, line)
	if err != nil {
		return domain.RawProspect{}, err
	}
	lastName, err := optionalField(record, d.mapping.LastNameIndex, line)
	if err != nil {
		return domain.RawProspect{}, err
	}

	return domain.RawProspect{
		Line:      line,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}

// CountRows is the pre-scan: it counts data rows, excluding the header when
// hasHeaders is set.
func CountRows(r io.Reader, hasHeaders bool) (int, error) {
	reader := newCSVReader(r)

	total := 0
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("count rows: %w", err)
		}
		total++
	}

	if hasHeaders && total > 0 {
		total--
	}
	return total, nil
}

type CSVCodec struct{}

func (CSVCodec) NewDecoder(r io.Reader, mapping domain.ColumnMapping) domain.RowDecoder {
	return NewCSVDecoder(r, mapping)
}

func (CSVCodec) CountRows(r io.Reader, hasHeaders bool) (int, error) {
	return CountRows(r, hasHeaders)
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true
	return reader
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func field(record []string, index, line int) (string, error) {
	if index < 0 || index >= len(record) {
		return "", &MalformedRowError{Line: line, Index: index, Columns: len(record)}
	}
	return record[index], nil
}

func optionalField(record []string, index, line int) (string, error) {
	if index == -1 {
		return "", nil
	}
	return field(record, index, line)
}

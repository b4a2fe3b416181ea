package prospect

import "io"

// RawProspect is one decoded CSV record before validation. Line is the
// 1-based line in the source file where the record starts.
type RawProspect struct {
	Line      int
	Email     string
	FirstName string
	LastName  string
}

// RowDecoder yields raw records in file order and returns io.EOF once the
// input is exhausted.
type RowDecoder interface {
	Next() (RawProspect, error)
}

type RowCodec interface {
	NewDecoder(r io.Reader, mapping ColumnMapping) RowDecoder
	CountRows(r io.Reader, hasHeaders bool) (int, error)
}

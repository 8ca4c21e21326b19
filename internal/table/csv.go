package table

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
)

// ReadCSV reads a CSV document with a header row. Every column is read as
// utf8 and empty fields are null; callers cast to the types they expect.
func ReadCSV(r io.ReadSeeker) (*Table, error) {
	header, err := stdcsv.NewReader(r).Read()
	if errors.Is(err, io.EOF) {
		return MustFromColumns(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, len(header))
	for k, name := range header {
		fields[k] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	rdr := csv.NewReader(r, schema,
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
		csv.WithAllocator(Allocator),
		csv.WithChunk(4096),
	)
	defer rdr.Release()

	chunks := make([][]arrow.Array, len(fields))
	for rdr.Next() {
		rec := rdr.Record()
		for k := range fields {
			col := rec.Column(k)
			col.Retain()
			chunks[k] = append(chunks[k], col)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(chunks) == 0 || len(chunks[0]) == 0 {
		return Empty(schema), nil
	}

	cols := make([]arrow.Array, len(fields))
	for k := range fields {
		if cols[k], err = Concatenate(chunks[k]...); err != nil {
			return nil, fmt.Errorf("column %q: %w", fields[k].Name, err)
		}
	}
	return New(fields, cols)
}

// WriteCSV writes t with a header row; nulls are empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w, t.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	rec := t.Record()
	defer rec.Release()
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return err
	}
	return cw.Error()
}

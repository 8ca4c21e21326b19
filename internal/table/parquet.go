package table

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// WriteParquet writes t as a single row group. md is stored as file
// key-value metadata.
func WriteParquet(w io.Writer, t *Table, md arrow.Metadata) error {
	schema := arrow.NewSchema(t.Fields(), &md)

	fw, err := pqarrow.NewFileWriter(schema, w, parquet.NewWriterProperties(),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	rec := array.NewRecord(schema, t.cols, int64(t.NumRows()))
	defer rec.Release()
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	return fw.Close()
}

// ReadParquet reads a whole Parquet file. It also returns the values of
// the requested key-value metadata keys that are present.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker, keys ...string) (*Table, map[string]string, error) {
	rdr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	defer rdr.Close()

	md := make(map[string]string, len(keys))
	kv := rdr.MetaData().KeyValueMetadata()
	for _, k := range keys {
		if v := kv.FindValue(k); v != nil {
			md[k] = *v
		}
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, Allocator)
	if err != nil {
		return nil, nil, fmt.Errorf("open arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()

	t, err := FromArrowTable(tbl)
	if err != nil {
		return nil, nil, err
	}
	return t, md, nil
}

// FromArrowTable flattens the chunked columns of an arrow table.
func FromArrowTable(tbl arrow.Table) (*Table, error) {
	fields := tbl.Schema().Fields()
	cols := make([]arrow.Array, len(fields))
	for k, f := range fields {
		chunks := tbl.Column(k).Data().Chunks()
		if len(chunks) == 0 {
			cols[k] = Nulls(f.Type, 0)
			continue
		}
		arr, err := Concatenate(chunks...)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		cols[k] = arr
	}
	// Field metadata written by pqarrow is not part of a table's identity.
	plain := make([]arrow.Field, len(fields))
	for k, f := range fields {
		plain[k] = arrow.Field{Name: f.Name, Type: f.Type, Nullable: f.Nullable}
	}
	return New(plain, cols)
}

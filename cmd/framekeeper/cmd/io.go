package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/solatis/framekeeper/internal/table"
)

type format string

const (
	formatCSV     format = "csv"
	formatParquet format = "parquet"
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return formatCSV, nil
	case ".parquet", ".pq":
		return formatParquet, nil
	default:
		return "", fmt.Errorf("cannot tell the format of %s (want .csv or .parquet)", path)
	}
}

// readTable loads a CSV or Parquet file. CSV columns are text.
func readTable(ctx context.Context, path string) (*table.Table, format, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	switch f {
	case formatCSV:
		t, err := table.ReadCSV(file)
		return t, f, err
	default:
		t, _, err := table.ReadParquet(ctx, file)
		return t, f, err
	}
}

// writeTable writes t to path in the format its extension names, or as
// CSV to w when path is "-".
func writeTable(w io.Writer, path string, t *table.Table) error {
	if path == "-" {
		return table.WriteCSV(w, t)
	}
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if f == formatCSV {
		err = table.WriteCSV(file, t)
	} else {
		err = table.WriteParquet(file, t, arrow.Metadata{})
	}
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

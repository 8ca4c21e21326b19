package failure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/solatis/framekeeper/internal/table"
	"github.com/solatis/framekeeper/internal/types"
)

// Parquet key-value metadata written alongside the failing rows.
const (
	RuleColumnsKey = "framekeeper.rule_columns"
	SchemaKey      = "framekeeper.schema"
)

// Write stores the failing rows as Parquet. extra adds user metadata; it
// must not use the reserved keys.
func (i *Info) Write(w io.Writer, extra map[string]string) error {
	rules, err := json.Marshal(i.ruleColumns)
	if err != nil {
		return fmt.Errorf("encode rule columns: %w", err)
	}
	keys := []string{RuleColumnsKey, SchemaKey}
	values := []string{string(rules), i.schemaName}
	for k, v := range extra {
		if k == RuleColumnsKey || k == SchemaKey {
			return fmt.Errorf("metadata key %q is reserved", k)
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	return table.WriteParquet(w, i.materialize(), arrow.NewMetadata(keys, values))
}

// WriteFile stores the failing rows in a Parquet file at path.
func (i *Info) WriteFile(path string, extra map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := i.Write(f, extra); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read loads an Info written by Write. It fails with ErrMissingMetadata
// when the rule column metadata is absent; a missing schema name reads as
// UnknownSchemaName.
func Read(ctx context.Context, r parquet.ReaderAtSeeker) (*Info, error) {
	failing, md, err := table.ReadParquet(ctx, r, RuleColumnsKey, SchemaKey)
	if err != nil {
		return nil, err
	}
	rulesJSON, ok := md[RuleColumnsKey]
	if !ok {
		return nil, fmt.Errorf("%w: key %q not found", types.ErrMissingMetadata, RuleColumnsKey)
	}
	var rules []string
	if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", types.ErrMissingMetadata, RuleColumnsKey, err)
	}
	schemaName := UnknownSchemaName
	if v := md[SchemaKey]; v != "" {
		schemaName = v
	}
	return fromFailing(failing, rules, schemaName), nil
}

// ReadFile loads an Info from a Parquet file at path.
func ReadFile(ctx context.Context, path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(ctx, f)
}

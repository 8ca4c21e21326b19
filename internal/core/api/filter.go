package api

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/solatis/framekeeper/internal/core/db"
	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Filter splits rows into the rows that pass a schema and failure
// statistics for the rest.
//
// Request:
//
//	{"schema": "orders", "rows": [{...}, ...], "cast": false,
//	 "record": false, "keep_failures": false}
//
// Response:
//
//	{"valid": [{...}], "valid_rows": 3, "failed_rows": 1,
//	 "counts": {"rule": 1}, "cooccurrences": [{"rules": [...], "rows": 1}],
//	 "run_id": "...", "failures_path": "..."}
//
// record persists the run's statistics in the run store; keep_failures
// writes the failing rows to a parquet file below the data directory. Both
// name their output by the same run id.
func (s *ValidationService) Filter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	resp, err := s.filter(ctx, req)
	err = toStatus(err)
	observe("Filter", start, err)
	return resp, err
}

func (s *ValidationService) filter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	name, _ := fields["schema"].(string)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "schema required")
	}
	rows, ok := fields["rows"].([]any)
	if !ok && fields["rows"] != nil {
		return nil, status.Error(codes.InvalidArgument, "rows must be a list")
	}
	if len(rows) > s.cfg.Service.MaxBatchSize {
		return nil, status.Error(codes.InvalidArgument,
			fmt.Sprintf("batch size exceeds maximum of %d rows", s.cfg.Service.MaxBatchSize))
	}
	cast, _ := fields["cast"].(bool)
	record, _ := fields["record"].(bool)
	keepFailures, _ := fields["keep_failures"].(bool)
	if record && s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "run store not configured")
	}

	sch, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	t := sch.CreateEmpty()
	if len(rows) > 0 {
		if t, err = rowsToTable(rows, sch); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valid, info, err := sch.Filter(t, cast)
	if err != nil {
		return nil, err
	}

	counts := info.Counts()
	rowsTotal.WithLabelValues(name, "valid").Add(float64(valid.NumRows()))
	rowsTotal.WithLabelValues(name, "failed").Add(float64(info.Len()))
	for rule, n := range counts {
		ruleFailuresTotal.WithLabelValues(name, rule).Add(float64(n))
	}

	validRows, err := tableToRows(valid)
	if err != nil {
		return nil, err
	}
	out := map[string]*structpb.Value{
		"valid":         validRows,
		"valid_rows":    structpb.NewNumberValue(float64(valid.NumRows())),
		"failed_rows":   structpb.NewNumberValue(float64(info.Len())),
		"counts":        countsValue(counts),
		"cooccurrences": cooccurrenceValue(info.CooccurrenceCounts()),
	}

	if record || keepFailures {
		id := types.NewRunID()
		source := "grpc"
		if keepFailures {
			path := filepath.Join(failuresDir(s.cfg), string(id)+".parquet")
			if err := info.WriteFile(path, map[string]string{"framekeeper.run_id": string(id)}); err != nil {
				return nil, status.Error(codes.Internal, fmt.Sprintf("write failures: %v", err))
			}
			source = path
			out["failures_path"] = structpb.NewStringValue(path)
		}
		if record {
			if _, err := s.store.RecordRun(ctx, db.RunRecord{
				ID:        id,
				Source:    source,
				ValidRows: valid.NumRows(),
				Cast:      cast,
				Failures:  info,
			}); err != nil {
				return nil, status.Error(codes.Unavailable, fmt.Sprintf("record run: %v", err))
			}
		}
		out["run_id"] = structpb.NewStringValue(string(id))
	}

	return &structpb.Struct{Fields: out}, nil
}

func countsValue(counts map[string]int) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(counts))
	for rule, n := range counts {
		fields[rule] = structpb.NewNumberValue(float64(n))
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

// cooccurrenceValue lists rule sets by descending row count.
func cooccurrenceValue(counts map[failure.RuleSet]int) *structpb.Value {
	sets := make([]failure.RuleSet, 0, len(counts))
	for set := range counts {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		if counts[sets[i]] != counts[sets[j]] {
			return counts[sets[i]] > counts[sets[j]]
		}
		return sets[i].String() < sets[j].String()
	})

	values := make([]*structpb.Value, len(sets))
	for i, set := range sets {
		rules := make([]*structpb.Value, 0, set.Len())
		for _, r := range set.Rules() {
			rules = append(rules, structpb.NewStringValue(r))
		}
		values[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"rules": structpb.NewListValue(&structpb.ListValue{Values: rules}),
			"rows":  structpb.NewNumberValue(float64(counts[set])),
		}})
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

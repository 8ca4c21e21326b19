package api

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/solatis/framekeeper/internal/column"
	"github.com/solatis/framekeeper/internal/core/catalog"
	"github.com/solatis/framekeeper/internal/core/config"
	"github.com/solatis/framekeeper/internal/core/db"
	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/schema"
	"github.com/solatis/framekeeper/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func ptr[T any](v T) *T { return &v }

type recorder struct {
	runs []db.RunRecord
	err  error
}

func (r *recorder) RecordRun(_ context.Context, rec db.RunRecord) (types.RunID, error) {
	if r.err != nil {
		return "", r.err
	}
	r.runs = append(r.runs, rec)
	return rec.ID, nil
}

func newService(t *testing.T, store RunRecorder) *ValidationService {
	t.Helper()
	users := schema.MustDefine("users", []schema.NamedColumn{
		{Name: "id", Column: column.Int64{Base: column.Base{Primary: true}, Min: ptr[int64](1)}},
		{Name: "name", Column: column.String{MaxLength: ptr(5)}},
		{Name: "score", Column: column.Float64{Base: column.Base{AllowNull: true}}},
	})
	cat, err := catalog.New(users)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	cfg.Service.MaxBatchSize = 10
	cfg.Sampling.MaxIterations = 100

	svc, err := NewValidationService(cat, store, cfg)
	require.NoError(t, err)
	return svc
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func userRows() []any {
	return []any{
		map[string]any{"id": 1, "name": "ann", "score": 1.5},
		map[string]any{"id": 2, "name": "bartholomew", "score": nil},
		map[string]any{"id": 2, "name": "cy", "score": 3},
		map[string]any{"id": 0, "name": "dee"},
	}
}

func TestFilter(t *testing.T) {
	svc := newService(t, nil)
	before := testutil.ToFloat64(rowsTotal.WithLabelValues("users", "valid"))

	resp, err := svc.Filter(context.Background(), request(t, map[string]any{
		"schema": "users",
		"rows":   userRows(),
	}))
	require.NoError(t, err)

	out := resp.AsMap()
	assert.Equal(t, float64(1), out["valid_rows"])
	assert.Equal(t, float64(3), out["failed_rows"])
	assert.Equal(t, []any{map[string]any{"id": float64(1), "name": "ann", "score": 1.5}}, out["valid"])
	assert.Equal(t, map[string]any{
		"primary_key":     float64(2),
		"name|max_length": float64(1),
		"id|min":          float64(1),
	}, out["counts"])
	assert.NotContains(t, out, "run_id")
	assert.Equal(t, before+1, testutil.ToFloat64(rowsTotal.WithLabelValues("users", "valid")))
}

func TestFilter_Cast(t *testing.T) {
	svc := newService(t, nil)
	resp, err := svc.Filter(context.Background(), request(t, map[string]any{
		"schema": "users",
		"cast":   true,
		"rows": []any{
			map[string]any{"id": "7", "name": 12, "score": "x"},
			map[string]any{"id": 8, "name": "ok", "score": "2.5"},
		},
	}))
	require.NoError(t, err)
	out := resp.AsMap()
	assert.Equal(t, float64(1), out["valid_rows"])
	assert.Equal(t, map[string]any{"score|dtype": float64(1)}, out["counts"])
	assert.Equal(t, []any{map[string]any{"id": float64(8), "name": "ok", "score": 2.5}}, out["valid"])
}

func TestFilter_Record(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, rec)

	resp, err := svc.Filter(context.Background(), request(t, map[string]any{
		"schema":        "users",
		"rows":          userRows(),
		"record":        true,
		"keep_failures": true,
	}))
	require.NoError(t, err)
	out := resp.AsMap()

	require.Len(t, rec.runs, 1)
	assert.Equal(t, string(rec.runs[0].ID), out["run_id"])
	assert.Equal(t, 1, rec.runs[0].ValidRows)
	assert.Equal(t, 3, rec.runs[0].Failures.Len())

	path, ok := out["failures_path"].(string)
	require.True(t, ok)
	assert.Equal(t, path, rec.runs[0].Source)

	info, err := failure.ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "users", info.SchemaName())
	assert.Equal(t, 3, info.Len())
}

func TestFilter_Errors(t *testing.T) {
	svc := newService(t, nil)
	tooMany := make([]any, 11)
	for i := range tooMany {
		tooMany[i] = map[string]any{"id": i + 1, "name": "x"}
	}

	tests := []struct {
		name   string
		fields map[string]any
		code   codes.Code
	}{
		{"missing schema", map[string]any{"rows": []any{}}, codes.InvalidArgument},
		{"unknown schema", map[string]any{"schema": "nope", "rows": []any{}}, codes.NotFound},
		{"rows not a list", map[string]any{"schema": "users", "rows": "x"}, codes.InvalidArgument},
		{"row not an object", map[string]any{"schema": "users", "rows": []any{1}}, codes.InvalidArgument},
		{"batch too large", map[string]any{"schema": "users", "rows": tooMany}, codes.InvalidArgument},
		{"missing column", map[string]any{"schema": "users", "rows": []any{map[string]any{"id": 1}}}, codes.InvalidArgument},
		{"wrong dtype", map[string]any{"schema": "users", "rows": []any{map[string]any{"id": "a", "name": "b", "score": 1}}}, codes.InvalidArgument},
		{"record without store", map[string]any{"schema": "users", "rows": []any{}, "record": true}, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Filter(context.Background(), request(t, tt.fields))
			if got := status.Code(err); got != tt.code {
				t.Errorf("Filter() code = %v, want %v (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestFilter_EmptyBatch(t *testing.T) {
	svc := newService(t, nil)
	resp, err := svc.Filter(context.Background(), request(t, map[string]any{"schema": "users", "rows": []any{}}))
	require.NoError(t, err)
	assert.Equal(t, float64(0), resp.AsMap()["valid_rows"])
}

func TestFilter_RecordFailure(t *testing.T) {
	svc := newService(t, &recorder{err: errors.New("database is down")})
	_, err := svc.Filter(context.Background(), request(t, map[string]any{
		"schema": "users", "rows": userRows(), "record": true,
	}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestSample(t *testing.T) {
	svc := newService(t, nil)
	req := request(t, map[string]any{"schema": "users", "rows": 5, "seed": 42})

	first, err := svc.Sample(context.Background(), req)
	require.NoError(t, err)
	rows := first.AsMap()["rows"].([]any)
	require.Len(t, rows, 5)
	for _, r := range rows {
		row := r.(map[string]any)
		assert.GreaterOrEqual(t, row["id"].(float64), float64(1))
		assert.LessOrEqual(t, len([]rune(row["name"].(string))), 5)
	}

	second, err := svc.Sample(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.AsMap(), second.AsMap())
}

func TestSample_Overrides(t *testing.T) {
	svc := newService(t, nil)
	resp, err := svc.Sample(context.Background(), request(t, map[string]any{
		"schema":    "users",
		"overrides": []any{map[string]any{"id": 10}, map[string]any{"id": 20}},
	}))
	require.NoError(t, err)
	rows := resp.AsMap()["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(10), rows[0].(map[string]any)["id"])
	assert.Equal(t, float64(20), rows[1].(map[string]any)["id"])
}

func TestSample_Errors(t *testing.T) {
	svc := newService(t, nil)
	tests := []struct {
		name   string
		fields map[string]any
		code   codes.Code
	}{
		{"unknown schema", map[string]any{"schema": "nope"}, codes.NotFound},
		{"too many rows", map[string]any{"schema": "users", "rows": 11}, codes.InvalidArgument},
		{"row count mismatch", map[string]any{"schema": "users", "rows": 3, "overrides": []any{map[string]any{"id": 1}}}, codes.InvalidArgument},
		{"unknown override column", map[string]any{"schema": "users", "overrides": []any{map[string]any{"zzz": 1}}}, codes.InvalidArgument},
		{"exhausted", map[string]any{"schema": "users", "overrides": []any{map[string]any{"id": 0}}}, codes.ResourceExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Sample(context.Background(), request(t, tt.fields))
			if got := status.Code(err); got != tt.code {
				t.Errorf("Sample() code = %v, want %v (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{nil, codes.OK},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{&types.SchemaError{Missing: []string{"a"}}, codes.InvalidArgument},
		{&types.ImplementationError{Message: "bad"}, codes.Internal},
		{status.Error(codes.Aborted, "x"), codes.Aborted},
	}
	for _, tt := range tests {
		if got := status.Code(toStatus(tt.err)); got != tt.code {
			t.Errorf("toStatus(%v) = %v, want %v", tt.err, got, tt.code)
		}
	}
}

func TestNewValidationService_CreatesFailuresDir(t *testing.T) {
	svc := newService(t, nil)
	info, err := os.Stat(failuresDir(svc.cfg))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

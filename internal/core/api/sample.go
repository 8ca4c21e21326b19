package api

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/framekeeper/internal/random"
	"github.com/solatis/framekeeper/internal/schema"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Sample generates rows that pass a schema.
//
// Request:
//
//	{"schema": "orders", "rows": 10, "seed": 42, "overrides": [{...}]}
//
// rows defaults to the number of overrides (1 without overrides); seed
// falls back to the configured sampling seed, then to a random one.
//
// Response:
//
//	{"rows": [{...}, ...]}
func (s *ValidationService) Sample(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	resp, err := s.sample(ctx, req)
	err = toStatus(err)
	observe("Sample", start, err)
	return resp, err
}

func (s *ValidationService) sample(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	name, _ := fields["schema"].(string)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "schema required")
	}

	n := -1
	if v, ok := fields["rows"].(float64); ok {
		n = int(v)
	}
	if n > s.cfg.Service.MaxBatchSize {
		return nil, status.Error(codes.InvalidArgument,
			fmt.Sprintf("batch size exceeds maximum of %d rows", s.cfg.Service.MaxBatchSize))
	}

	opts := schema.SampleOptions{MaxIterations: s.cfg.Sampling.MaxIterations}
	switch seed, ok := fields["seed"].(float64); {
	case ok:
		opts.Generator = random.New(uint64(seed))
	case s.cfg.Sampling.Seed != 0:
		opts.Generator = random.New(s.cfg.Sampling.Seed)
	}
	if raw, ok := fields["overrides"].([]any); ok {
		rows, err := overrideRows(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		opts.OverrideRows = rows
	}

	sch, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sampled, err := sch.Sample(n, opts)
	if err != nil {
		return nil, err
	}
	rowsTotal.WithLabelValues(name, "sampled").Add(float64(sampled.NumRows()))

	rows, err := tableToRows(sampled)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"rows": rows}}, nil
}

// Package api implements the FrameKeeper validation service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/solatis/framekeeper/internal/core/catalog"
	"github.com/solatis/framekeeper/internal/core/config"
	"github.com/solatis/framekeeper/internal/core/db"
	"github.com/solatis/framekeeper/internal/types"
	"google.golang.org/grpc/status"
)

// RunRecorder persists validation runs. *db.Store implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec db.RunRecord) (types.RunID, error)
}

// ValidationService implements ValidationServer on top of a schema
// catalog. The run store is optional; without it requests asking to
// record a run are rejected.
type ValidationService struct {
	catalog *catalog.Catalog
	store   RunRecorder
	cfg     *config.Config
}

// NewValidationService creates the service. store may be nil.
// Creates the failures directory below the data directory.
func NewValidationService(cat *catalog.Catalog, store RunRecorder, cfg *config.Config) (*ValidationService, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if err := os.MkdirAll(failuresDir(cfg), 0755); err != nil {
		return nil, err
	}
	return &ValidationService{catalog: cat, store: store, cfg: cfg}, nil
}

func failuresDir(cfg *config.Config) string {
	return filepath.Join(cfg.Service.DataDir, "failures")
}

// observe records metrics and a log line for one finished request.
func observe(method string, start time.Time, err error) {
	elapsed := time.Since(start)
	code := status.Code(err)
	requestsTotal.WithLabelValues(method, code.String()).Inc()
	requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		slog.Warn("Request failed", "method", method, "code", code.String(), "error", err)
		return
	}
	slog.Debug("Request served", "method", method, "duration_ms", elapsed.Milliseconds())
}

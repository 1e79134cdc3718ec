package graph

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"
)

// IndexManager ensures the lookup indexes the sync pipeline depends on.
// Without the identifier indexes, relationship writes degrade from indexed
// lookups to full scans and large syncs become infeasible.
type IndexManager struct {
	runner Runner
	logger ectologger.Logger
}

// NewIndexManager creates a new index manager
func NewIndexManager(runner Runner, logger ectologger.Logger) *IndexManager {
	return &IndexManager{
		runner: runner,
		logger: logger,
	}
}

// EnsureIndexes creates the identifier indexes. Idempotent, safe to call on
// every process start. A failed index creation is logged and never fatal;
// degraded performance is preferable to startup failure.
func (m *IndexManager) EnsureIndexes(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "graph.IndexManager.EnsureIndexes")
	defer span.End()

	statements := []string{
		// Cross-label join index. Relationship creation looks up either
		// endpoint by identifier alone via the catch-all label.
		"CREATE INDEX ON :" + CatchAllLabel + "(" + idProperty + ")",
		// The owner label is excluded from the catch-all, so it needs its own
		// identifier index.
		"CREATE INDEX ON :" + OwnerLabel + "(" + idProperty + ")",
		// Document-scoped cleanup deletes by document_id.
		"CREATE INDEX ON :" + CatchAllLabel + "(document_id)",
	}

	for _, stmt := range statements {
		if _, err := m.runner.Write(ctx, stmt, nil); err != nil {
			m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"statement": stmt,
			}).Warn("Failed to create graph index - continuing with degraded lookups")
		}
	}
}

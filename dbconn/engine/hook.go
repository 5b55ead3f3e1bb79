package engine

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/jakobkrein-pag/n8n/dbconn/options"
)

// Log categories recognized by the query-log hook. Unknown categories in the
// operator's list are carried but match nothing here.
const (
	logCategoryQuery = "query"
	logCategoryError = "error"
)

// queryLogHook emits structured query logs according to the resolved logging
// mode and flags queries slower than the configured threshold.
type queryLogHook struct {
	logger     *zap.Logger
	all        bool
	categories map[string]struct{}
	slow       time.Duration
}

var _ bun.QueryHook = (*queryLogHook)(nil)

func newQueryLogHook(logger *zap.Logger, mode options.QueryLog, slow time.Duration) *queryLogHook {
	categories := make(map[string]struct{}, len(mode.Categories))
	for _, category := range mode.Categories {
		categories[category] = struct{}{}
	}

	return &queryLogHook{
		logger:     logger,
		all:        mode.All,
		categories: categories,
		slow:       slow,
	}
}

func (h *queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	if event.Err != nil {
		if h.enabled(logCategoryError) {
			h.logger.Error("query failed",
				zap.String("query", event.Query),
				zap.Duration("duration", elapsed),
				zap.Error(event.Err),
			)
		}

		return
	}

	if h.slow > 0 && elapsed >= h.slow {
		h.logger.Warn("slow query",
			zap.String("query", event.Query),
			zap.Duration("duration", elapsed),
			zap.Duration("threshold", h.slow),
		)

		return
	}

	if h.enabled(logCategoryQuery) {
		h.logger.Debug("query",
			zap.String("query", event.Query),
			zap.Duration("duration", elapsed),
		)
	}
}

func (h *queryLogHook) enabled(category string) bool {
	if h.all {
		return true
	}

	_, ok := h.categories[category]

	return ok
}

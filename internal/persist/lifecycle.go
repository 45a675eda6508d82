package persist

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/gridx/internal/backend"
	"github.com/oakwood-commons/gridx/pkg/logger"
)

// Lifecycle creates and deletes rows against the remote store for one
// import. Hydration and merging into local state is the session's job; the
// lifecycle owns only the remote calls and their arithmetic.
type Lifecycle struct {
	client   backend.Client
	importID string
	log      *logr.Logger
}

// NewLifecycle builds a lifecycle manager for an import.
func NewLifecycle(client backend.Client, importID string, log *logr.Logger) *Lifecycle {
	if log == nil {
		log = logger.GetNoopLogger()
	}
	return &Lifecycle{client: client, importID: importID, log: log}
}

// EnsureRowCount creates exactly the shortfall between current and minCount
// and returns the created records in backend order. No shortfall, no call.
func (l *Lifecycle) EnsureRowCount(ctx context.Context, current, minCount int) ([]backend.RowRecord, error) {
	shortfall := minCount - current
	if shortfall <= 0 {
		return nil, nil
	}
	created, err := l.client.BulkCreate(ctx, l.importID, shortfall)
	if err != nil {
		return nil, fmt.Errorf("create %d rows: %w", shortfall, err)
	}
	if len(created) < shortfall {
		// Partial creation is fatal to the caller's operation; the rows
		// that did get created remain (no compensating delete).
		return created, fmt.Errorf("created %d of %d rows", len(created), shortfall)
	}
	l.log.V(1).Info("rows created", "import", l.importID, "count", len(created))
	return created, nil
}

// BulkDelete removes a de-duplicated, trimmed id set from the remote store.
// The caller removes them from local state and selection afterward.
func (l *Lifecycle) BulkDelete(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return nil
	}
	if err := l.client.BulkDelete(ctx, cleaned); err != nil {
		return fmt.Errorf("delete %d rows: %w", len(cleaned), err)
	}
	l.log.V(1).Info("rows deleted", "import", l.importID, "count", len(cleaned))
	return nil
}

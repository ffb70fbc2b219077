package act

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevehiehn/acttest/internal/artifact"
)

// runContext holds the state of a single run.
type runContext struct {
	RunID string
	Cwd   string
	log   *zap.Logger
	store *artifact.Store
}

// newRunContext creates the context for one run. When root is non-empty the
// run's artifacts are stored under it.
func newRunContext(cwd, root string, log *zap.Logger) (*runContext, error) {
	id := uuid.New().String()
	rc := &runContext{RunID: id, Cwd: cwd, log: log.With(zap.String("run_id", id))}
	if root != "" {
		store, err := artifact.New(id, root)
		if err != nil {
			return nil, err
		}
		rc.store = store
	}
	return rc, nil
}

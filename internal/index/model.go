package index

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handle is an open file registered with the index.
type Handle interface {
	CloseContext(ctx context.Context) error
}

// Index keeps the open handles of an engine keyed by file name, so the engine
// can report and close whatever callers left open when it shuts down.
type Index struct {
	mu      sync.RWMutex
	log     *zap.SugaredLogger
	handles map[string]map[Handle]struct{}
}

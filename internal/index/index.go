package index

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func New(log *zap.SugaredLogger) *Index {
	return &Index{
		log:     log,
		handles: make(map[string]map[Handle]struct{}),
	}
}

func (idx *Index) Add(name string, h Handle) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.handles[name]
	if !ok {
		set = make(map[Handle]struct{})
		idx.handles[name] = set
	}
	set[h] = struct{}{}
}

// Remove drops h and reports whether it was registered.
func (idx *Index) Remove(name string, h Handle) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	set, ok := idx.handles[name]
	if !ok {
		return false
	}
	if _, ok := set[h]; !ok {
		return false
	}

	delete(set, h)
	if len(set) == 0 {
		delete(idx.handles, name)
	}
	return true
}

// Open returns the number of open handles on name.
func (idx *Index) Open(name string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.handles[name])
}

// Len returns the number of open handles across all names.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, set := range idx.handles {
		n += len(set)
	}
	return n
}

// Close closes every handle still registered. Handles are closed outside the
// index lock, since closing one removes it from the index.
func (idx *Index) Close(ctx context.Context) error {
	idx.mu.Lock()
	var open []Handle
	names := make(map[Handle]string)
	for name, set := range idx.handles {
		for h := range set {
			open = append(open, h)
			names[h] = name
		}
	}
	idx.mu.Unlock()

	var err error
	for _, h := range open {
		idx.log.Warnw("Closing handle left open", "fileName", names[h])
		if closeErr := h.CloseContext(ctx); closeErr != nil {
			err = multierr.Append(err, closeErr)
		}
	}

	idx.mu.Lock()
	clear(idx.handles)
	idx.mu.Unlock()
	return err
}

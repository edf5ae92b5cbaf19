package lifecycle

import (
	"sort"
	"sync"

	"github.com/cuemby/sahara/pkg/mapr/domain"
	"github.com/cuemby/sahara/pkg/types"
)

// restartTracker collects the services whose configuration changed on
// running instances while config files are written concurrently
type restartTracker struct {
	mu      sync.Mutex
	pending map[string]*restartEntry
}

type restartEntry struct {
	service   *domain.Service
	instances map[string]*types.Instance
}

func newRestartTracker() *restartTracker {
	return &restartTracker{pending: make(map[string]*restartEntry)}
}

func (t *restartTracker) mark(s *domain.Service, instance *types.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := s.Key().String()
	e, ok := t.pending[key]
	if !ok {
		e = &restartEntry{service: s, instances: make(map[string]*types.Instance)}
		t.pending[key] = e
	}
	e.instances[instance.ID] = instance
}

type restart struct {
	service  *domain.Service
	instance *types.Instance
}

// drain returns every pending restart once, ordered by service and
// instance, and empties the tracker
func (t *restartTracker) drain() []restart {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.pending))
	for k := range t.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []restart
	for _, k := range keys {
		e := t.pending[k]
		ids := make([]string, 0, len(e.instances))
		for id := range e.instances {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, restart{service: e.service, instance: e.instances[id]})
		}
	}
	t.pending = make(map[string]*restartEntry)
	return out
}

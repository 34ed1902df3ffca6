package actions

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Candidate is one action definition offered to the registry. New may fail;
// a failing candidate is skipped without affecting the rest of the load.
type Candidate struct {
	ID  string
	New func() (Action, error)
}

// Entry is a loaded action together with its capabilities, resolved once at
// load time.
type Entry struct {
	ID     string
	Action Action
	Tick   TickHandler
	Packet PacketHandler
}

// Registry holds the set of loaded actions keyed by identifier. Load order
// is preserved for listing and dispatch iteration.
type Registry struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		logger: logger,
		index:  make(map[string]int),
	}
}

// Load instantiates and validates each candidate. Candidates that fail to
// construct or expose neither eligibility capability are skipped; the
// registry always ends up in a valid state.
func (r *Registry) Load(candidates []Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, candidate := range candidates {
		log := r.logger.WithField("action", candidate.ID)

		if _, exists := r.index[candidate.ID]; exists {
			log.Warn("Skipping duplicate action id")
			continue
		}

		action, err := candidate.New()
		if err != nil {
			log.WithError(err).Error("Failed to load action")
			continue
		}

		tick, _ := action.(TickHandler)
		packet, _ := action.(PacketHandler)
		if tick == nil && packet == nil {
			log.Warn("Skipping action: exposes neither time nor event eligibility")
			continue
		}

		r.index[candidate.ID] = len(r.entries)
		r.entries = append(r.entries, Entry{
			ID:     candidate.ID,
			Action: action,
			Tick:   tick,
			Packet: packet,
		})
		log.Info("Loaded action")
	}
}

// Reload clears the held set and loads the candidates again. Callers must
// not run Reload concurrently with another Reload.
func (r *Registry) Reload(candidates []Candidate) {
	r.mu.Lock()
	r.entries = nil
	r.index = make(map[string]int)
	r.mu.Unlock()

	r.logger.Info("Reloading actions")
	r.Load(candidates)
}

// Entries returns the loaded actions in load order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// ListAll returns the current id to action mapping.
func (r *Registry) ListAll() map[string]Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make(map[string]Action, len(r.entries))
	for _, entry := range r.entries {
		all[entry.ID] = entry.Action
	}
	return all
}

// Describe returns id to metadata for every loaded action, substituting a
// minimal description for actions that provide none.
func (r *Registry) Describe() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make(map[string]Info, len(r.entries))
	for _, entry := range r.entries {
		if describer, ok := entry.Action.(Describer); ok {
			infos[entry.ID] = describer.Info()
			continue
		}
		infos[entry.ID] = Info{Name: entry.ID, Description: "none"}
	}
	return infos
}

// Len returns the number of loaded actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/events/bus"
)

// envPrefix scopes the environment layer: RADBOT_<SECTION>_<KEY>=value.
const envPrefix = "RADBOT_"

// credentialRefPrefix marks a string value that should be resolved through
// the credential store at snapshot build time, e.g. "credential:openai_api_key".
const credentialRefPrefix = "credential:"

// CredentialSource reveals secret values by name. Satisfied by
// *credentials.Service.
type CredentialSource interface {
	Reveal(ctx context.Context, name string) (string, error)
}

// Resolver merges the configuration layers into section snapshots.
//
// Priority, high to low: DB config_entries rows, the boot file layer,
// credential references (resolved in place), environment variables. Objects
// merge deep; arrays and scalars replace. Writes to a section are serialized
// and publish config.changed.<section> on the event bus.
type Resolver struct {
	store     Store
	fileLayer map[string]map[string]any
	creds     CredentialSource
	bus       bus.EventBus
	logger    *logger.Logger

	snapshot atomic.Pointer[Snapshot]

	mu       sync.Mutex
	sections map[string]*sync.Mutex
}

// NewResolver builds a resolver and loads the initial snapshot.
func NewResolver(ctx context.Context, store Store, fileLayer map[string]map[string]any, creds CredentialSource, eventBus bus.EventBus, log *logger.Logger) (*Resolver, error) {
	r := &Resolver{
		store:     store,
		fileLayer: fileLayer,
		creds:     creds,
		bus:       eventBus,
		logger:    log,
		sections:  make(map[string]*sync.Mutex),
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the current immutable configuration view. Callers must
// not mutate the returned maps.
func (r *Resolver) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Section is shorthand for Snapshot().Section(name).
func (r *Resolver) Section(name string) map[string]any {
	return r.Snapshot().Section(name)
}

// Put writes a section document to the DB layer, rebuilds the snapshot, and
// notifies subscribers.
func (r *Resolver) Put(ctx context.Context, section string, value json.RawMessage) error {
	lock := r.sectionLock(section)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.Put(ctx, section, value); err != nil {
		return err
	}
	if err := r.Reload(ctx); err != nil {
		return err
	}
	r.notifyChanged(ctx, section)
	return nil
}

// Delete removes a section's DB row, falling back to the lower layers.
func (r *Resolver) Delete(ctx context.Context, section string) error {
	lock := r.sectionLock(section)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.Delete(ctx, section); err != nil {
		return err
	}
	if err := r.Reload(ctx); err != nil {
		return err
	}
	r.notifyChanged(ctx, section)
	return nil
}

// Reload rebuilds the snapshot from all layers and swaps it in atomically.
func (r *Resolver) Reload(ctx context.Context) error {
	entries, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load config entries: %w", err)
	}

	dbLayer := make(map[string]map[string]any, len(entries))
	for _, e := range entries {
		var doc map[string]any
		if err := json.Unmarshal(e.Value, &doc); err != nil {
			r.logger.Warn("skipping malformed config section",
				zap.String("section", e.Section), zap.Error(err))
			continue
		}
		dbLayer[e.Section] = doc
	}

	names := make(map[string]bool)
	for name := range r.fileLayer {
		names[name] = true
	}
	for name := range dbLayer {
		names[name] = true
	}

	sections := make(map[string]map[string]any, len(names))
	for name := range names {
		merged := envLayer(name)
		merged = deepMerge(merged, r.fileLayer[name])
		merged = deepMerge(merged, dbLayer[name])
		r.resolveCredentialRefs(ctx, name, merged)
		sections[name] = merged
	}

	r.snapshot.Store(&Snapshot{sections: sections})
	return nil
}

func (r *Resolver) sectionLock(section string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.sections[section]
	if !ok {
		lock = &sync.Mutex{}
		r.sections[section] = lock
	}
	return lock
}

func (r *Resolver) notifyChanged(ctx context.Context, section string) {
	if r.bus == nil {
		return
	}
	event := bus.NewEvent("config.changed", "configstore", map[string]interface{}{
		"section": section,
	})
	if err := r.bus.Publish(ctx, "config.changed."+section, event); err != nil {
		r.logger.Warn("failed to publish config change",
			zap.String("section", section), zap.Error(err))
	}
}

// resolveCredentialRefs replaces "credential:<name>" string values with the
// revealed secret, in place. Missing credentials leave the reference literal
// so the failure shows up at use time as credential-missing.
func (r *Resolver) resolveCredentialRefs(ctx context.Context, section string, doc map[string]any) {
	if r.creds == nil {
		return
	}
	for key, value := range doc {
		switch v := value.(type) {
		case string:
			if !strings.HasPrefix(v, credentialRefPrefix) {
				continue
			}
			name := strings.TrimPrefix(v, credentialRefPrefix)
			secret, err := r.creds.Reveal(ctx, name)
			if err != nil {
				r.logger.Warn("unresolved credential reference",
					zap.String("section", section),
					zap.String("key", key),
					zap.String("credential", name))
				continue
			}
			doc[key] = secret
		case map[string]any:
			r.resolveCredentialRefs(ctx, section, v)
		}
	}
}

// envLayer collects RADBOT_<SECTION>_<KEY> environment variables into a map
// with lowercased keys. It is the lowest-priority layer.
func envLayer(section string) map[string]any {
	prefix := envPrefix + strings.ToUpper(section) + "_"
	out := make(map[string]any)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(kv[len(prefix):eq])
		if key == "" {
			continue
		}
		out[key] = kv[eq+1:]
	}
	return out
}

// deepMerge merges src over dst: nested objects merge recursively, arrays
// and scalars replace. dst is mutated and returned.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[key].(map[string]any); ok {
				dst[key] = deepMerge(dm, sm)
				continue
			}
			dst[key] = deepMerge(make(map[string]any), sm)
			continue
		}
		dst[key] = sv
	}
	return dst
}

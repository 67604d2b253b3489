package modeling

import (
	"fmt"
	"sort"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/models"
)

// DefaultRegistryTTL bounds how long a constructed model instance is served
// before it is rebuilt.
const DefaultRegistryTTL = 300 * time.Second

// Factory constructs a model instance. The registry stores factories rather
// than instances so expensive construction (provider wiring, warm-up) only
// happens on cache miss.
type Factory func() (Model, error)

// Registry tracks registered model versions and the per-prop-type defaults,
// serving instances through a TTL cache. Lookups are read-through: misses
// construct under the registry mutex so concurrent callers never build
// duplicate instances.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	defaults  map[models.PropType]string
	instances *cache.Cache
	log       *logrus.Entry
}

// NewRegistry creates a registry with the given instance TTL.
func NewRegistry(ttl time.Duration, logger *logrus.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	return &Registry{
		factories: make(map[string]Factory),
		defaults:  make(map[models.PropType]string),
		instances: cache.New(ttl, ttl*2),
		log:       logger.WithField("component", "model_registry"),
	}
}

// RegisterModel makes a model version available for lookup. Re-registering a
// version replaces its factory and drops any cached instance.
func (r *Registry) RegisterModel(versionID string, factory Factory) error {
	if versionID == "" {
		return fmt.Errorf("model version id must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("model factory must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[versionID] = factory
	r.instances.Delete(versionID)
	r.log.WithField("model_version_id", versionID).Info("registered model")
	return nil
}

// SetDefaultForPropType routes predictions for a prop type to the given
// model version when callers do not name one explicitly.
func (r *Registry) SetDefaultForPropType(propType models.PropType, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[versionID]; !ok {
		return fmt.Errorf("model version %q is not registered", versionID)
	}
	r.defaults[propType] = versionID
	return nil
}

// GetModel returns the cached instance for a version, constructing it under
// lock on miss.
func (r *Registry) GetModel(versionID string) (Model, error) {
	if cached, ok := r.instances.Get(versionID); ok {
		return cached.(Model), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have constructed it while we waited on the lock
	if cached, ok := r.instances.Get(versionID); ok {
		return cached.(Model), nil
	}

	factory, ok := r.factories[versionID]
	if !ok {
		return nil, fmt.Errorf("model version %q: %w", versionID, models.ErrNotFound)
	}
	instance, err := factory()
	if err != nil {
		return nil, fmt.Errorf("constructing model %q: %w", versionID, err)
	}
	r.instances.SetDefault(versionID, instance)
	return instance, nil
}

// GetDefaultModel resolves the default model for a prop type.
func (r *Registry) GetDefaultModel(propType models.PropType) (Model, error) {
	r.mu.Lock()
	versionID, ok := r.defaults[propType]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("prop type %s: %w", propType, models.ErrNoDefaultModel)
	}
	return r.GetModel(versionID)
}

// ListModels returns the registered version ids in sorted order.
func (r *Registry) ListModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := make([]string, 0, len(r.factories))
	for v := range r.factories {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

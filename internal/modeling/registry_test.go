package modeling

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/prop-edge/internal/models"
)

func poissonFactory(versionID string) Factory {
	return func() (Model, error) {
		return NewPoissonModel(versionID, emptyProvider(), ModelParams{}), nil
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	require.NoError(t, registry.RegisterModel("baseline_poisson_v1", poissonFactory("baseline_poisson_v1")))

	model, err := registry.GetModel("baseline_poisson_v1")
	require.NoError(t, err)
	assert.Equal(t, "baseline_poisson_v1", model.VersionID())
}

func TestRegistryGetUnknownModel(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	_, err := registry.GetModel("no_such_model")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRegistryDefaultForPropType(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	require.NoError(t, registry.RegisterModel("baseline_poisson_v1", poissonFactory("baseline_poisson_v1")))
	require.NoError(t, registry.SetDefaultForPropType(models.PropTypeAssists, "baseline_poisson_v1"))

	model, err := registry.GetDefaultModel(models.PropTypeAssists)
	require.NoError(t, err)
	assert.Equal(t, "baseline_poisson_v1", model.VersionID())
}

func TestRegistryNoDefaultModel(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	_, err := registry.GetDefaultModel(models.PropTypePoints)
	assert.True(t, errors.Is(err, models.ErrNoDefaultModel))
}

func TestRegistrySetDefaultRequiresRegistration(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	err := registry.SetDefaultForPropType(models.PropTypePoints, "unregistered_v1")
	assert.Error(t, err)
}

func TestRegistryCachesInstances(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	var constructions int64
	require.NoError(t, registry.RegisterModel("baseline_poisson_v1", func() (Model, error) {
		atomic.AddInt64(&constructions, 1)
		return NewPoissonModel("baseline_poisson_v1", emptyProvider(), ModelParams{}), nil
	}))

	first, err := registry.GetModel("baseline_poisson_v1")
	require.NoError(t, err)
	second, err := registry.GetModel("baseline_poisson_v1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&constructions))
}

func TestRegistryConcurrentLookupConstructsOnce(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	var constructions int64
	require.NoError(t, registry.RegisterModel("baseline_poisson_v1", func() (Model, error) {
		atomic.AddInt64(&constructions, 1)
		return NewPoissonModel("baseline_poisson_v1", emptyProvider(), ModelParams{}), nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.GetModel("baseline_poisson_v1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&constructions))
}

func TestRegistryListModels(t *testing.T) {
	registry := NewRegistry(time.Minute, testLogger())
	require.NoError(t, registry.RegisterModel("baseline_poisson_v1", poissonFactory("baseline_poisson_v1")))
	require.NoError(t, registry.RegisterModel("baseline_normal_v1", func() (Model, error) {
		return NewNormalModel("baseline_normal_v1", emptyProvider(), ModelParams{}), nil
	}))

	assert.Equal(t, []string{"baseline_normal_v1", "baseline_poisson_v1"}, registry.ListModels())
}

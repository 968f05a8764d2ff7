package forecast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildDefaults(t *testing.T) {
	r := NewRegistry()

	strategies, err := r.Build(DefaultStrategies)
	require.NoError(t, err)
	require.Len(t, strategies, len(DefaultStrategies))
	for i, s := range strategies {
		assert.Equal(t, DefaultStrategies[i], s.Name())
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	_, err := NewRegistry().Build([]string{"linear", "lstm"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRegistry_DeduplicatesNames(t *testing.T) {
	strategies, err := NewRegistry().Build([]string{"holt", "holt", "linear"})
	require.NoError(t, err)
	assert.Len(t, strategies, 2)
}

func TestRegistry_ConfigureParams(t *testing.T) {
	r := NewRegistry()
	r.Configure("moving_average", map[string]float64{"window": 2})

	strategies, err := r.Build([]string{"moving_average"})
	require.NoError(t, err)

	got, err := strategies[0].Predict(context.Background(), []float64{10, 20, 30, 50}, 1)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got)
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()
	r.Register("constant", func(p map[string]float64) (Strategy, error) {
		return fixedStrategy{name: "constant", value: p["value"]}, nil
	})
	r.Configure("constant", map[string]float64{"value": 33})

	assert.Contains(t, r.Names(), "constant")
	strategies, err := r.Build([]string{"constant"})
	require.NoError(t, err)
	got, err := strategies[0].Predict(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 33.0, got)
}

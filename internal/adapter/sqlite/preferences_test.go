package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Preferences, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "state.db")
	p, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, path
}

func TestPreferences_AlertActiveDefaultsToFalse(t *testing.T) {
	p, _ := openTemp(t)

	active, err := p.AlertActive(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestPreferences_SetAlertActive(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)

	require.NoError(t, p.SetAlertActive(ctx, true))
	active, err := p.AlertActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, p.SetAlertActive(ctx, false))
	active, err = p.AlertActive(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestPreferences_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	p, path := openTemp(t)
	require.NoError(t, p.SetAlertActive(ctx, true))
	require.NoError(t, p.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	active, err := reopened.AlertActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestPreferences_GetSet(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)

	_, ok, err := p.Get(ctx, "units")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "units", "metric"))
	require.NoError(t, p.Set(ctx, "units", "imperial"))

	v, ok, err := p.Get(ctx, "units")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "imperial", v)
}

func TestPreferences_CorruptFlagIsAnError(t *testing.T) {
	ctx := context.Background()
	p, _ := openTemp(t)
	require.NoError(t, p.Set(ctx, alertStateKey, "sometimes"))

	_, err := p.AlertActive(ctx)
	assert.Error(t, err)
}

func TestPreferences_CheckReadiness(t *testing.T) {
	p, _ := openTemp(t)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

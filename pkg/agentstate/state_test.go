package agentstate

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerceiveDecrementsEnergyExactly(t *testing.T) {
	s := New()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 150; i++ {
		before := s.Temperature
		s.Perceive(rng)
		assert.InDelta(t, before, s.Temperature, MaxDrift)
	}
	assert.Equal(t, DefaultEnergy-150, s.Energy)
	assert.Less(t, s.Energy, 0.0)
	assert.Equal(t, 0, s.Step)
}

func TestRechargeBoundaries(t *testing.T) {
	cases := []struct {
		start, want float64
	}{
		{50, 80},
		{95, 100},
		{100, 100},
		{130, 100},
	}
	for _, tc := range cases {
		s := New()
		s.Energy = tc.start
		require.True(t, s.Act(ActionRecharge))
		assert.Equal(t, tc.want, s.Energy, "start=%v", tc.start)
		assert.LessOrEqual(t, s.Energy, MaxEnergy)
	}
}

func TestActDeltas(t *testing.T) {
	s := New()
	require.True(t, s.Act(ActionSeekHeat))
	assert.Equal(t, DefaultTemperature+HeatStep, s.Temperature)
	require.True(t, s.Act(ActionSeekCool))
	require.True(t, s.Act(ActionSeekCool))
	assert.Equal(t, DefaultTemperature-HeatStep, s.Temperature)

	before := *s
	require.True(t, s.Act(ActionIdle))
	assert.Equal(t, before, *s)

	assert.False(t, s.Act(Action("dance")))
	assert.Equal(t, before, *s)
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	s := New()
	s.Remember(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "first")
	snap := s.Snapshot()
	s.Memory[0].Text = "changed"
	s.Energy = 1
	assert.Equal(t, "first", snap.Memory[0].Text)
	assert.Equal(t, DefaultEnergy, snap.Energy)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("seek_cool")
	assert.True(t, ok)
	assert.Equal(t, ActionSeekCool, a)
	_, ok = ParseAction("fly")
	assert.False(t, ok)
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	s, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, New(), s)

	s.Energy = 42
	s.Advance()
	s.Remember(time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), "saw heat")
	require.NoError(t, st.Save(ctx, s))

	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42.0, loaded.Energy)
	assert.Equal(t, 1, loaded.Step)
	require.Len(t, loaded.Memory, 1)
	assert.Equal(t, "saw heat", loaded.Memory[0].Text)
	assert.True(t, loaded.Memory[0].At.Equal(s.Memory[0].At))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	st, err := NewFileStore(path)
	require.NoError(t, err)
	exerciseStore(t, st)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"energy": 42`)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = st.Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	st, err := NewSQLiteStore(dsn, "")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	exerciseStore(t, st)

	require.NoError(t, st.Close())
	_, err = st.Load(context.Background())
	assert.True(t, errors.Is(err, ErrStoreClosed))
	assert.True(t, errors.Is(st.Save(context.Background(), New()), ErrStoreClosed))
}

func TestSQLiteStoreRejectsEmptyLocations(t *testing.T) {
	_, err := NewSQLiteStore("", "alpha")
	assert.EqualError(t, err, "sqlite state store: empty dsn")
	_, err = SQLiteDSNForFile("")
	assert.EqualError(t, err, "sqlite state store: empty path")
}

func TestSQLiteStoreReopen(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)

	first, err := NewSQLiteStore(dsn, "alpha")
	require.NoError(t, err)
	s := New()
	s.Step = 7
	require.NoError(t, first.Save(context.Background(), s))

	var step int
	require.NoError(t, first.db.QueryRow(`SELECT step FROM agent_state WHERE agent = ?`, "alpha").Scan(&step))
	assert.Equal(t, 7, step)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dsn, "alpha")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	loaded, err := second.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Step)

	other, err := NewSQLiteStore(dsn, "beta")
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	fresh, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Step)
}

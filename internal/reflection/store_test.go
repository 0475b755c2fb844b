package reflection

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStore_SaveAndLatest(t *testing.T) {
	s, err := NewStore(setupDB(t))
	require.NoError(t, err)

	got, err := s.Latest("")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save("t1", "companion", Feedback{Reflection: "first", IntegrityDelta: 0.2, ReflectionHonest: true}))
	require.NoError(t, s.Save("t2", "sage", Feedback{Reflection: ForcedDisclosure, IntegrityDelta: 1, Violations: []string{DishonestReflectionViolation}}))

	latest, err := s.Latest("")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "t2", latest.TurnID)
	assert.False(t, latest.ReflectionHonest)
	assert.Equal(t, []string{DishonestReflectionViolation}, latest.Violations)
	assert.False(t, latest.CreatedAt.IsZero())

	companion, err := s.Latest("companion")
	require.NoError(t, err)
	require.NotNil(t, companion)
	assert.Equal(t, "first", companion.Reflection)
	assert.True(t, companion.ReflectionHonest)
	assert.Empty(t, companion.Violations)
	assert.InDelta(t, 0.2, companion.IntegrityDelta, 1e-12)
}

func TestStore_ClosedDB(t *testing.T) {
	db := setupDB(t)
	s, err := NewStore(db)
	require.NoError(t, err)
	db.Close()
	assert.Error(t, s.Save("t", "p", Feedback{}))
}

func TestStore_CorruptTimestamp(t *testing.T) {
	db := setupDB(t)
	s, err := NewStore(db)
	require.NoError(t, err)
	require.NoError(t, s.Save("t1", "companion", Feedback{Reflection: "r", ReflectionHonest: true}))
	_, err = db.Exec(`UPDATE reflections SET created_at = 'garbage'`)
	require.NoError(t, err)

	_, err = s.Latest("")
	assert.ErrorContains(t, err, "created_at")
}

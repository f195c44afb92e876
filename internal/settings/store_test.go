package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGetMissing(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Get("alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAndGet(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Set("alice", "theme = \"dark\"\n"))

	text, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "theme = \"dark\"\n", text)
}

func TestSetOverwrites(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Set("alice", "theme = \"dark\"\n"))
	require.NoError(t, st.Set("alice", "theme = \"light\"\n"))

	text, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "theme = \"light\"\n", text)
}

func TestSettingsPerUser(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Set("alice", "a"))
	require.NoError(t, st.Set("bob", "b"))

	text, err := st.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "a", text)

	text, err = st.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "b", text)
}

func TestDelete(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Set("alice", "a"))
	require.NoError(t, st.Delete("alice"))

	_, err := st.Get("alice")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, st.Delete("nobody"))
}

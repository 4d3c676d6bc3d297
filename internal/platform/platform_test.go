package platform

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSystemClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := SystemClock{}.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after))
}

func TestPageHasherDeterministic(t *testing.T) {
	t.Parallel()

	got, err := PageHasher{}.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)

	again, err := PageHasher{}.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestRunIDsAreOrderedUUIDs(t *testing.T) {
	t.Parallel()

	first, err := RunIDs{}.NewID()
	require.NoError(t, err)
	second, err := RunIDs{}.NewID()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
	require.Less(t, first, second)
}

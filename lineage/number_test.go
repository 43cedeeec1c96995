package lineage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidNumber(t *testing.T) {
	n := Parse("CZ0001.251703V1")
	require.True(t, n.IsValid)
	assert.Equal(t, "CZ", n.Prefix)
	assert.Equal(t, 1, n.Sequential)
	assert.Equal(t, "25", n.YearCode)
	assert.Equal(t, "1703", n.TimeCode)
	assert.Equal(t, 1, n.Version)
}

func TestParseInvalidNumbers(t *testing.T) {
	cases := []string{
		"",
		"CZ0001.251703",      // missing version suffix
		"CZ001.251703V1",     // sequential too short
		"CZ0001.25703V1",     // time code too short
		"cz0001.251703V1",    // lowercase prefix
		"CZ0001.251703V0",    // version zero never assigned
		"CZ0001251703V1",     // missing dot
		"CZ0001.251703V1.2",  // trailing garbage
		"CZ0001.251703Vtwo",  // non-numeric version
	}
	for _, c := range cases {
		n := Parse(c)
		assert.False(t, n.IsValid, "expected %q to be invalid", c)
		assert.Empty(t, n.String())
		assert.Empty(t, n.Base())
	}
}

func TestRoundTripStability(t *testing.T) {
	for _, s := range []string{"CZ0001.251703V1", "QT9999.991159V42", "A0042.010000V7"} {
		parsed := Parse(s)
		require.True(t, parsed.IsValid, s)
		reparsed := Parse(parsed.String())
		assert.Equal(t, parsed, reparsed, s)
	}
}

func TestBase(t *testing.T) {
	n := Parse("CZ0001.251703V3")
	assert.Equal(t, "CZ0001.251703", n.Base())
	assert.True(t, ValidBase(n.Base()))
	assert.False(t, ValidBase("CZ0001.251703V3"))
	assert.False(t, ValidBase("CZ001.251703"))
}

func TestNextForNewLineage(t *testing.T) {
	now := time.Date(2025, 6, 1, 17, 3, 0, 0, time.UTC)
	n, err := NextForNewLineage("CZ", 0, now)
	require.NoError(t, err)

	assert.Equal(t, "CZ0001.251703V1", n.String())

	n, err = NextForNewLineage("CZ", 41, now)
	require.NoError(t, err)
	assert.Equal(t, "CZ0042.251703V1", n.String())
}

func TestNextForNewLineageSequentialBounds(t *testing.T) {
	now := time.Date(2025, 6, 1, 17, 3, 0, 0, time.UTC)

	// The last slot of the 4-digit field still round-trips.
	n, err := NextForNewLineage("CZ", 9998, now)
	require.NoError(t, err)
	assert.Equal(t, "CZ9999.251703V1", n.String())
	assert.True(t, Parse(n.String()).IsValid)

	// Past it no parseable number exists; issuing one must fail, not render
	// a 5-digit sequential the parser rejects.
	_, err = NextForNewLineage("CZ", 9999, now)
	assert.Error(t, err)

	_, err = NextForNewLineage("CZ", -1, now)
	assert.Error(t, err)
}

func TestNextVersionPreservesIdentity(t *testing.T) {
	next, err := NextVersionForLineage("CZ0001.251703V1", 2)
	require.NoError(t, err)

	assert.Equal(t, "CZ0001.251703V2", next.String())
	assert.True(t, next.SameLineage(Parse("CZ0001.251703V1")))
}

func TestNextVersionRejectsNonAdvancingOrdinal(t *testing.T) {
	_, err := NextVersionForLineage("CZ0001.251703V3", 3)
	assert.Error(t, err)
	_, err = NextVersionForLineage("CZ0001.251703V3", 2)
	assert.Error(t, err)
}

func TestNextVersionRejectsInvalidCurrent(t *testing.T) {
	_, err := NextVersionForLineage("garbage", 2)
	assert.Error(t, err)
}

func TestIncrementVersionChangesOnlyOrdinal(t *testing.T) {
	next, err := IncrementVersion("CZ0007.240930V4")
	require.NoError(t, err)

	original := Parse("CZ0007.240930V4")
	assert.Equal(t, original.Prefix, next.Prefix)
	assert.Equal(t, original.Sequential, next.Sequential)
	assert.Equal(t, original.YearCode, next.YearCode)
	assert.Equal(t, original.TimeCode, next.TimeCode)
	assert.Equal(t, original.Version+1, next.Version)
}

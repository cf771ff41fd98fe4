package whr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGamesAcceptsFourToSixFields(t *testing.T) {
	base := NewBase(Config{})
	err := base.LoadGames([]string{
		"black;white;B;1",
		"black;white;W;2;3",
		`black;white;W;3;{"komi":0.5}`,
		`black;white;B;4;2;{"komi":5.5}`,
	}, ";")
	require.NoError(t, err)
	require.Len(t, base.Games(), 4)

	games := base.Games()
	assert.Equal(t, 0.0, games[0].Handicap)
	assert.Equal(t, 3.0, games[1].Handicap)
	assert.Equal(t, 0.5, games[2].Extras["komi"])
	assert.Equal(t, 2.0, games[3].Handicap)
	assert.Equal(t, 5.5, games[3].Extras["komi"])
}

func TestLoadGamesTrimsWhitespaceAroundFields(t *testing.T) {
	base := NewBase(Config{})
	err := base.LoadGames([]string{" shusaku ; shusai ;W ; 3"}, ";")
	require.NoError(t, err)
	g := base.Games()[0]
	assert.Equal(t, "shusaku", g.Black.Name)
	assert.Equal(t, "shusai", g.White.Name)
	assert.Equal(t, 3, g.Day)
}

func TestLoadGamesDefaultSeparatorIsSpace(t *testing.T) {
	base := NewBase(Config{})
	err := base.LoadGames([]string{"black white B 1"}, "")
	require.NoError(t, err)
	assert.Len(t, base.Games(), 1)
}

func TestLoadGamesRejectsMalformedRecords(t *testing.T) {
	cases := []string{
		"black;white;B",                      // too few fields
		"black;white;B;1;0;{};extra",         // too many fields
		"black;white;B;one",                  // day not an integer
		"black;white;B;1;notanumber",         // neither handicap nor extras
		`black;white;B;1;x;{"komi":0.5}`,     // handicap must be an integer
		"black;white;B;1;2;alsonotanobject",  // extras must be a JSON object
	}
	for _, record := range cases {
		base := NewBase(Config{})
		err := base.LoadGames([]string{record}, ";")
		assert.ErrorIs(t, err, ErrBadRecord, "record %q", record)
	}
}

func TestLoadGamesPropagatesEngineErrors(t *testing.T) {
	base := NewBase(Config{})
	err := base.LoadGames([]string{"alice;alice;B;1"}, ";")
	assert.ErrorIs(t, err, ErrSelfPlay)

	err = base.LoadGames([]string{"alice;bob;Q;1"}, ";")
	assert.ErrorIs(t, err, ErrInvalidWinner)
}

func TestLoadGamesStopsAtFirstBadRecord(t *testing.T) {
	base := NewBase(Config{})
	err := base.LoadGames([]string{
		"black;white;B;1",
		"broken",
		"black;white;W;2",
	}, ";")
	require.Error(t, err)
	assert.Len(t, base.Games(), 1)
}

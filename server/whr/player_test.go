package whr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLikelihoodLiterals(t *testing.T) {
	// Fixed ratings isolate the term and prior math from the solver.
	base := NewBase(Config{})
	_, err := base.CreateGame("shusaku", "shusai", "B", 1, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("shusaku", "shusai", "W", 4, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("shusaku", "shusai", "W", 10, 0, nil)
	require.NoError(t, err)

	player := base.PlayerByName("shusaku")
	days := player.Days()
	require.Len(t, days, 3)
	days[0].R = 1
	days[1].R = 2
	days[2].R = 0

	ll, err := player.LogLikelihood()
	require.NoError(t, err)
	assert.InDelta(t, -69.65648196168772, ll, 1e-4)

	for i, want := range []float64{
		-1.9397850625546684,
		-2.1269280110429727,
		-0.6931471805599453,
	} {
		got, err := days[i].LogLikelihood()
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-4)
	}
}

func TestComputeSigma2(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("shusaku", "shusai", "B", 1, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("shusaku", "shusai", "W", 4, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("shusaku", "shusai", "W", 10, 0, nil)
	require.NoError(t, err)

	w2 := math.Pow(math.Sqrt(300.0)*math.Ln10/400, 2)
	sigma2 := base.PlayerByName("shusaku").ComputeSigma2()
	require.Len(t, sigma2, 2)
	assert.InDelta(t, 3*w2, sigma2[0], 1e-12)
	assert.InDelta(t, 6*w2, sigma2[1], 1e-12)

	assert.Nil(t, base.PlayerByName("loner").ComputeSigma2())
}

func TestTimelineStaysSortedWithOutOfOrderGames(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("a", "b", "W", 5, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("a", "b", "W", 3, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("a", "b", "W", 4, 0, nil)
	require.NoError(t, err)
	_, err = base.CreateGame("a", "b", "W", 4, 0, nil) // same day, no new state

	require.NoError(t, err)
	days := base.PlayerByName("a").Days()
	require.Len(t, days, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{days[0].Day, days[1].Day, days[2].Day})
}

func TestNewDayInheritsGammaFromNearestEarlierDay(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("a", "b", "W", 3, 0, nil)
	require.NoError(t, err)

	player := base.PlayerByName("a")
	player.Days()[0].SetGamma(4)

	// Day 7 arrives later: inherits day 3's gamma.
	_, err = base.CreateGame("a", "b", "W", 7, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 4, player.Day(7).Gamma(), 1e-12)

	// Day 1 predates all known days: no earlier day, defaults to gamma 1.
	_, err = base.CreateGame("a", "b", "W", 1, 0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1, player.Day(1).Gamma(), 1e-12)
	assert.False(t, player.Day(1).IsFirstDay)
	assert.True(t, player.Day(3).IsFirstDay)
}

func TestFirstDayCarriesAnchorTerms(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("a", "b", "W", 1, 0, nil)
	require.NoError(t, err)

	day := base.PlayerByName("b").Days()[0]
	won, err := day.WonGameTerms()
	require.NoError(t, err)
	lost, err := day.LostGameTerms()
	require.NoError(t, err)

	// One real win plus the virtual anchor win; the loss list holds only
	// the anchor loss.
	require.Len(t, won, 2)
	require.Len(t, lost, 1)
	assert.Equal(t, gameTerm{1, 0, 1, 1}, won[1])
	assert.Equal(t, gameTerm{0, 1, 1, 1}, lost[0])
}

func TestGameTermsCacheInvalidation(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("a", "b", "W", 1, 0, nil)
	require.NoError(t, err)

	day := base.PlayerByName("b").Days()[0]
	won, err := day.WonGameTerms()
	require.NoError(t, err)
	again, err := day.WonGameTerms()
	require.NoError(t, err)
	assert.Same(t, &won[0], &again[0], "terms should be served from cache")

	// Opponent's rating moves; a cleared cache must see the new gamma.
	base.PlayerByName("a").Days()[0].SetElo(100)
	day.ClearGameTermsCache()
	fresh, err := day.WonGameTerms()
	require.NoError(t, err)
	assert.NotEqual(t, won[0].d, fresh[0].d)
}

func TestUncertaintyUnsetUntilComputed(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("a", "b", "W", 1, 0, nil)
	require.NoError(t, err)

	day := base.PlayerByName("a").Days()[0]
	assert.Equal(t, -1.0, day.Uncertainty)

	require.NoError(t, base.Iterate(1))
	assert.Greater(t, day.Uncertainty, 0.0)
}

func TestEloRoundTrip(t *testing.T) {
	base := NewBase(Config{})
	_, err := base.CreateGame("a", "b", "W", 1, 0, nil)
	require.NoError(t, err)

	day := base.PlayerByName("a").Days()[0]
	day.SetElo(123.4)
	assert.InDelta(t, 123.4, day.Elo(), 1e-9)
	assert.InDelta(t, math.Pow(10, 123.4/400), day.Gamma(), 1e-9)
}
